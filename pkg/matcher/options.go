package matcher

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lostlink/matcher/internal/domain/boost"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "valkey", "redis" or "memory"
	addrs    []string
	password string

	embedder Embedder

	threshold   float64
	boosts      boost.Config
	linkRetries int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithValkey stores items in a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis stores items in a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithMemory keeps items in process memory. Data is lost on Close.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "memory"
		c.addrs = nil
	})
}

// WithEmbedder sets the text embedding provider. Required for Match.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithThreshold sets the minimum adjusted score for a match. Default 0.82.
func WithThreshold(t float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.threshold = t
	})
}

// WithBonuses overrides the location, category, date and description bonuses.
func WithBonuses(location, category, date, description float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.boosts.LocationBonus = location
		c.boosts.CategoryBonus = category
		c.boosts.DateBonus = date
		c.boosts.DescriptionBonus = description
	})
}

// WithLinkRetries bounds attempts to record a match on the counterpart. Default 3.
func WithLinkRetries(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.linkRetries = n
	})
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default).
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
