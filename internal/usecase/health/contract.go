package health

import "context"

// StorePinger reports whether the item store answers.
type StorePinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker reports whether the embedding provider answers.
// A degraded provider blocks matching but not submissions.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
