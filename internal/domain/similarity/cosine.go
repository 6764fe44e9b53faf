// Package similarity computes the base semantic score between two embeddings.
package similarity

import (
	"fmt"
	"math"

	"github.com/lostlink/matcher/internal/domain"
)

// Cosine returns dot(a,b) / (|a|*|b|). The result is not rounded.
// Mismatched or empty vectors fail with domain.ErrVectorDimMismatch,
// a zero-norm vector fails with domain.ErrDegenerateVector.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, fmt.Errorf("cosine of %d and %d dimensions: %w", len(a), len(b), domain.ErrVectorDimMismatch)
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("cosine: zero-norm vector: %w", domain.ErrDegenerateVector)
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
