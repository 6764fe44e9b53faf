// Package match turns scored candidates into an item's ordered match list.
package match

import (
	"math"

	"github.com/lostlink/matcher/internal/domain/item"
)

// DefaultThreshold is the minimum adjusted score for a candidate to be accepted.
const DefaultThreshold = 0.82

// Scored is a candidate with its adjusted score, in candidate-scan order.
type Scored struct {
	Candidate *item.Item
	Score     float64
	Reasons   []string
}

// Classifier applies the acceptance threshold.
type Classifier struct {
	threshold float64
}

// NewClassifier creates a classifier. A non-positive threshold uses DefaultThreshold.
func NewClassifier(threshold float64) *Classifier {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Classifier{threshold: threshold}
}

// Threshold returns the acceptance threshold.
func (c *Classifier) Threshold() float64 { return c.threshold }

// Classify keeps candidates scoring at least the threshold, rounds their scores to
// four decimals and orders them by score descending. Ties keep scan order.
func (c *Classifier) Classify(scored []Scored) item.Matches {
	out := item.Matches{}
	for _, s := range scored {
		if s.Score < c.threshold {
			continue
		}
		out = append(out, item.MatchEntry{
			TargetID:     s.Candidate.ID(),
			DisplayTitle: s.Candidate.Title(),
			Score:        Round(s.Score),
			Reasons:      s.Reasons,
		})
	}
	item.SortMatches(out)
	return out
}

// Round rounds a score to four decimal places for storage.
func Round(score float64) float64 {
	return math.Round(score*1e4) / 1e4
}
