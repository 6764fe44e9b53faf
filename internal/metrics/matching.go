package metrics

import "github.com/prometheus/client_golang/prometheus"

// Matching Prometheus metrics.
var (
	MatchRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lostfound",
			Name:      "match_runs_total",
			Help:      "Total matching runs by outcome",
		},
		[]string{"status"}, // "ok" / "not_found" / "embedding_error" / "store_error" / "error"
	)

	MatchRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lostfound",
			Name:      "match_run_duration_seconds",
			Help:      "Matching run duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	MatchCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "lostfound",
			Name:      "match_candidates",
			Help:      "Candidates scanned per run",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	MatchesFoundTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lostfound",
			Name:      "matches_found_total",
			Help:      "Accepted matches across all runs",
		},
	)

	MatchLinkFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lostfound",
			Name:      "match_link_failures_total",
			Help:      "Counterpart updates that failed",
		},
	)

	MatchScoreErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lostfound",
			Name:      "match_score_errors_total",
			Help:      "Candidates skipped because they could not be scored",
		},
	)

	MatchQueueInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "lostfound",
			Name:      "match_runs_in_flight",
			Help:      "Asynchronous matching runs currently executing",
		},
	)
)

var matchMetricsRegistered bool

// RegisterMatchingMetrics registers Prometheus matching metrics. Must be called once from main.
func RegisterMatchingMetrics() {
	if matchMetricsRegistered {
		return
	}
	prometheus.MustRegister(MatchRunsTotal)
	prometheus.MustRegister(MatchRunDuration)
	prometheus.MustRegister(MatchCandidates)
	prometheus.MustRegister(MatchesFoundTotal)
	prometheus.MustRegister(MatchLinkFailuresTotal)
	prometheus.MustRegister(MatchScoreErrorsTotal)
	prometheus.MustRegister(MatchQueueInFlight)
	matchMetricsRegistered = true
}
