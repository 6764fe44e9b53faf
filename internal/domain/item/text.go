package item

import "strings"

// EmbeddingText builds the normalized text sent to the embedding provider:
// labelled title, description and category, whitespace runs collapsed, trimmed.
// Any change here changes match behaviour for newly embedded items.
func EmbeddingText(i *Item) string {
	var b strings.Builder
	b.WriteString("Title: ")
	b.WriteString(i.Title())
	b.WriteString(" Description: ")
	b.WriteString(i.Description())
	b.WriteString(" Category: ")
	b.WriteString(i.Category())
	return strings.Join(strings.Fields(b.String()), " ")
}
