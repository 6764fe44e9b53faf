// Package api holds the HTTP contract of the matcher: wire types, the server
// interface and the chi router that binds requests to it.
package api

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
)

// ErrorResponseCode is the machine-readable error code.
type ErrorResponseCode string

// Error codes.
const (
	ErrorResponseCodeBadRequest             ErrorResponseCode = "bad_request"
	ErrorResponseCodeValidationFailed       ErrorResponseCode = "validation_failed"
	ErrorResponseCodeUnauthorized           ErrorResponseCode = "unauthorized"
	ErrorResponseCodeItemNotFound           ErrorResponseCode = "item_not_found"
	ErrorResponseCodeMethodNotAllowed       ErrorResponseCode = "method_not_allowed"
	ErrorResponseCodeVectorDimMismatch      ErrorResponseCode = "vector_dim_mismatch"
	ErrorResponseCodeEmbeddingProviderError ErrorResponseCode = "embedding_provider_error"
	ErrorResponseCodeUnavailable            ErrorResponseCode = "unavailable"
	ErrorResponseCodeInternalError          ErrorResponseCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorResponseCode `json:"code"`
	Message string            `json:"message"`
}

// ItemKind is the report kind on the wire.
type ItemKind string

const (
	ItemKindLost  ItemKind = "Lost"
	ItemKindFound ItemKind = "Found"
)

// MatchRequest triggers a matching run for an existing item.
type MatchRequest struct {
	ItemId string `json:"item_id"`
}

// MatchResponse reports a completed run.
type MatchResponse struct {
	Success bool `json:"success"`
	Matches int  `json:"matches"`
}

// CreateItemRequest submits a new lost or found report.
type CreateItemRequest struct {
	Kind        ItemKind `json:"kind"`
	Title       string   `json:"title"`
	Description *string  `json:"description,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Location    *string  `json:"location,omitempty"`
	// Date of the incident, YYYY-MM-DD or RFC 3339.
	Date *string `json:"date,omitempty"`
}

// MatchEntry is one recorded match as exposed to clients.
type MatchEntry struct {
	Id      string   `json:"id"`
	Title   string   `json:"title"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// ItemResponse is an item with its matches. The embedding is never exposed.
type ItemResponse struct {
	Id          openapi_types.UUID `json:"id"`
	Kind        ItemKind           `json:"kind"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Category    string             `json:"category"`
	Location    *string            `json:"location,omitempty"`
	Date        *string            `json:"date,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	Embedded    bool               `json:"embedded"`
	Matches     []MatchEntry       `json:"matches"`
}

// HealthResponseStatus is the overall health verdict.
type HealthResponseStatus string

// HealthResponseChecks is the result of one dependency probe.
type HealthResponseChecks string

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status HealthResponseStatus            `json:"status"`
	Checks map[string]HealthResponseChecks `json:"checks"`
}
