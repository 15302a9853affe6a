// Package version exposes build metadata injected with -ldflags -X.
package version

import "fmt"

var (
	// Version is reported by the status endpoint and the version command.
	Version = "dev"
	// Commit is the git revision.
	Commit = "unknown"
	// BuildDate is an RFC3339 timestamp when set by the build.
	BuildDate = "unknown"
)

// String renders all build fields on one line.
func String() string {
	return fmt.Sprintf("tvwebhook %s (commit %s, built %s)", Version, Commit, BuildDate)
}
