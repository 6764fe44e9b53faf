package matching

import (
	"context"

	"github.com/lostlink/matcher/internal/domain"
	domitem "github.com/lostlink/matcher/internal/domain/item"
)

// Repository defines the storage contract for the matching pipeline.
type Repository interface {
	Get(ctx context.Context, id string) (domitem.Item, error)
	SetEmbedding(ctx context.Context, it *domitem.Item) error
	Candidates(ctx context.Context, kind domitem.Kind) ([]domitem.Item, error)
	SetMatches(ctx context.Context, id string, matches domitem.Matches) error
	// AppendMatch inserts entry into the target's list unless one for the same item exists.
	AppendMatch(ctx context.Context, targetID string, entry domitem.MatchEntry) (added bool, err error)
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
