package matcher

import "github.com/lostlink/matcher/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrItemNotFound           = domain.ErrItemNotFound
	ErrInvalidItem            = domain.ErrInvalidItem
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrVectorDimMismatch      = domain.ErrVectorDimMismatch
	ErrStoreWrite             = domain.ErrStoreWrite
)
