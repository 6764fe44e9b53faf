// Package version holds build metadata injected via ldflags, e.g.
//
//	go build -ldflags "-X github.com/lostlink/matcher/internal/version.Version=v1.0.0"
package version

import "fmt"

//nolint:revive // Set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// String formats the build metadata for humans.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, Date)
}
