package item

import (
	"cmp"
	"slices"
)

// MatchEntry is a directed edge to a similar item of the opposite kind.
// DisplayTitle is a snapshot taken at match time and is never refreshed.
type MatchEntry struct {
	TargetID     string
	DisplayTitle string
	Score        float64
	Reasons      []string
}

// Matches is an item's match list: sorted by score descending, unique by TargetID.
type Matches []MatchEntry

// Contains reports whether an entry for targetID is already recorded.
func (m Matches) Contains(targetID string) bool {
	return slices.ContainsFunc(m, func(e MatchEntry) bool { return e.TargetID == targetID })
}

// SortMatches orders entries by score descending. Ties keep insertion order.
func SortMatches(m Matches) {
	slices.SortStableFunc(m, func(a, b MatchEntry) int {
		return cmp.Compare(b.Score, a.Score)
	})
}

// WithEntry returns a copy with e appended and re-sorted.
// If an entry for e.TargetID exists, it returns the list unchanged and false.
func (m Matches) WithEntry(e MatchEntry) (Matches, bool) {
	if m.Contains(e.TargetID) {
		return m, false
	}
	out := make(Matches, 0, len(m)+1)
	out = append(out, m...)
	out = append(out, e)
	SortMatches(out)
	return out, true
}
