package item

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the report polarity. Matching always pairs opposite kinds.
type Kind string

const (
	// KindLost is a report of something that went missing.
	KindLost Kind = "Lost"
	// KindFound is a report of something that was picked up.
	KindFound Kind = "Found"
)

// ParseKind validates a stored or submitted kind (case-sensitive).
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindLost, KindFound:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown item kind %q", s)
	}
}

// Opposite returns the kind this kind is matched against.
func (k Kind) Opposite() Kind {
	if k == KindLost {
		return KindFound
	}
	return KindLost
}

// MaxTextSize bounds the free-text fields in bytes.
const MaxTextSize = 8192

// Details holds the author-supplied fields of a report.
type Details struct {
	Title       string
	Description string
	Category    string
	Location    string
	// OccurredAt is kept as submitted; see Item.OccurredDate.
	OccurredAt string
}

// Item is a lost-or-found report (aggregate).
// Embedding and matches are owned by the matching engine.
type Item struct {
	id        string
	kind      Kind
	details   Details
	createdAt time.Time
	embedding []float32
	matches   Matches
}

// New validates and creates an Item with no embedding and no matches.
func New(id string, kind Kind, d Details, createdAt time.Time) (Item, error) {
	if strings.TrimSpace(id) == "" {
		return Item{}, fmt.Errorf("item ID is required")
	}
	if _, err := ParseKind(string(kind)); err != nil {
		return Item{}, err
	}
	if strings.TrimSpace(d.Title) == "" {
		return Item{}, fmt.Errorf("title is required")
	}
	for name, v := range map[string]string{
		"title": d.Title, "description": d.Description, "category": d.Category, "location": d.Location,
	} {
		if len(v) > MaxTextSize {
			return Item{}, fmt.Errorf("%s too large (max %d bytes)", name, MaxTextSize)
		}
	}

	return Item{
		id:        id,
		kind:      kind,
		details:   d,
		createdAt: createdAt.UTC(),
		matches:   Matches{},
	}, nil
}

// Reconstruct creates an Item without validation (storage hydration).
func Reconstruct(
	id string, kind Kind, d Details, createdAt time.Time,
	embedding []float32, matches Matches,
) Item {
	return Item{id: id, kind: kind, details: d, createdAt: createdAt, embedding: embedding, matches: matches}
}

// ID returns the item identifier.
func (i *Item) ID() string { return i.id }

// Kind returns the report polarity.
func (i *Item) Kind() Kind { return i.kind }

// Details returns the author-supplied fields.
func (i *Item) Details() Details { return i.details }

// Title returns the item title.
func (i *Item) Title() string { return i.details.Title }

// Description returns the item description.
func (i *Item) Description() string { return i.details.Description }

// Category returns the item category as stored.
func (i *Item) Category() string { return i.details.Category }

// Location returns the free-text location, possibly empty.
func (i *Item) Location() string { return i.details.Location }

// CreatedAt returns the creation time.
func (i *Item) CreatedAt() time.Time { return i.createdAt }

// Embedding returns the embedding vector, nil until the first matching run.
func (i *Item) Embedding() []float32 { return i.embedding }

// HasEmbedding reports whether the item has been embedded.
func (i *Item) HasEmbedding() bool { return len(i.embedding) > 0 }

// Matches returns the recorded match list.
func (i *Item) Matches() Matches { return i.matches }

// SetEmbedding sets the vector in place (mutation).
func (i *Item) SetEmbedding(v []float32) { i.embedding = v }

// SetMatches replaces the match list in place (mutation).
func (i *Item) SetMatches(m Matches) { i.matches = m }

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// OccurredDate parses the incident date. Unparseable or empty dates report false.
func (i *Item) OccurredDate() (time.Time, bool) {
	raw := strings.TrimSpace(i.details.OccurredAt)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
