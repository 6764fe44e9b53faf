package matcher

import "time"

// Kind is the report polarity.
type Kind string

// Report kinds. Lost reports are matched against Found reports and vice versa.
const (
	Lost  Kind = "Lost"
	Found Kind = "Found"
)

// Report is a new lost or found submission.
type Report struct {
	// ID is assigned when empty.
	ID          string
	Kind        Kind
	Title       string
	Description string
	Category    string
	Location    string
	// Date of the incident, YYYY-MM-DD or RFC 3339. Unparseable dates never earn the date bonus.
	Date string
}

// Match is one accepted pairing, as recorded on an item.
type Match struct {
	ItemID  string
	Title   string
	Score   float64
	Reasons []string
}

// Item is a stored report with its matches.
type Item struct {
	ID          string
	Kind        Kind
	Title       string
	Description string
	Category    string
	Location    string
	Date        string
	CreatedAt   time.Time
	Embedded    bool
	Matches     []Match
}

// MatchResult summarizes one matching run.
type MatchResult struct {
	ItemID       string
	Matches      []Match
	Candidates   int
	Linked       int
	LinkFailures int
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // component -> "ok"/"error"
}
