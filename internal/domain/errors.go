package domain

import "errors"

var (
	// ErrItemNotFound signals that the triggering or counterpart item does not exist.
	ErrItemNotFound = errors.New("item not found")
	// ErrInvalidItem signals a malformed item or item identifier.
	ErrInvalidItem = errors.New("invalid item")
	// ErrEmbeddingProviderError signals an embedding provider failure or malformed response.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrVectorDimMismatch signals vectors of different lengths.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrDegenerateVector signals a zero-norm vector, for which cosine similarity is undefined.
	ErrDegenerateVector = errors.New("degenerate vector")
	// ErrStoreWrite signals a persistence failure on any write.
	ErrStoreWrite = errors.New("store write failure")
)
