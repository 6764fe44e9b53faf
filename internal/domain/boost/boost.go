// Package boost layers rule-based adjustments on top of the base semantic score.
package boost

import (
	"math"
	"strings"

	"github.com/lostlink/matcher/internal/domain/item"
)

// Reason labels recorded on a match when a rule fires.
const (
	ReasonLocation    = "Location match"
	ReasonCategory    = "Category match"
	ReasonDate        = "Close date"
	ReasonDescription = "Description match"
)

// Config holds the bonus amounts and rule parameters.
type Config struct {
	LocationBonus    float64
	CategoryBonus    float64
	DateBonus        float64
	DateWindowDays   int
	DescriptionBonus float64
	// MinTokenLen is the minimum token length kept for description overlap.
	MinTokenLen     int
	MinSharedTokens int
	// IncludeTitle adds the title to the text tokenized for keyword overlap.
	IncludeTitle bool
}

// DefaultConfig returns the production rule parameters.
func DefaultConfig() Config {
	return Config{
		LocationBonus:    0.05,
		CategoryBonus:    0.03,
		DateBonus:        0.05,
		DateWindowDays:   3,
		DescriptionBonus: 0.05,
		MinTokenLen:      4,
		MinSharedTokens:  2,
		IncludeTitle:     true,
	}
}

// Result is the adjusted score and the labels of the rules that fired.
type Result struct {
	Score   float64
	Reasons []string
}

// Engine applies independent, additive boost rules. Safe for concurrent use.
type Engine struct {
	cfg Config
}

// New creates a rule engine.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Apply adds every applicable bonus to base. Rules never suppress each other and
// the sum is not capped. Reasons are listed in rule order.
func (e *Engine) Apply(newItem, candidate *item.Item, base float64) Result {
	res := Result{Score: base, Reasons: []string{}}

	if locationOverlap(newItem.Location(), candidate.Location()) {
		res.add(e.cfg.LocationBonus, ReasonLocation)
	}
	if newItem.Category() == candidate.Category() {
		res.add(e.cfg.CategoryBonus, ReasonCategory)
	}
	if e.datesClose(newItem, candidate) {
		res.add(e.cfg.DateBonus, ReasonDate)
	}
	if e.keywordOverlap(e.keywordText(newItem), e.keywordText(candidate)) {
		res.add(e.cfg.DescriptionBonus, ReasonDescription)
	}

	return res
}

func (r *Result) add(bonus float64, reason string) {
	r.Score += bonus
	r.Reasons = append(r.Reasons, reason)
}

func locationOverlap(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	la, lb := strings.ToLower(a), strings.ToLower(b)
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}

// datesClose compares whole days, rounding the absolute difference up.
func (e *Engine) datesClose(a, b *item.Item) bool {
	da, okA := a.OccurredDate()
	db, okB := b.OccurredDate()
	if !okA || !okB {
		return false
	}
	diff := da.Sub(db)
	if diff < 0 {
		diff = -diff
	}
	days := math.Ceil(diff.Hours() / 24)
	return days <= float64(e.cfg.DateWindowDays)
}

// keywordText is the text tokenized for the description rule. With IncludeTitle
// the title joins a non-empty description, so shared title words alone can
// earn "Description match" even when the descriptions have no token in common.
func (e *Engine) keywordText(it *item.Item) string {
	if e.cfg.IncludeTitle && it.Description() != "" {
		return it.Title() + " " + it.Description()
	}
	return it.Description()
}

// keywordOverlap counts distinct candidate tokens present in the new item's token set.
func (e *Engine) keywordOverlap(newDesc, candDesc string) bool {
	if newDesc == "" || candDesc == "" {
		return false
	}
	newTokens := Tokens(newDesc, e.cfg.MinTokenLen)
	shared := 0
	for tok := range Tokens(candDesc, e.cfg.MinTokenLen) {
		if _, ok := newTokens[tok]; ok {
			shared++
			if shared >= e.cfg.MinSharedTokens {
				return true
			}
		}
	}
	return false
}
