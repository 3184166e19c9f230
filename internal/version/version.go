// Package version holds build metadata, set with -ldflags -X at release time.
package version

import (
	"fmt"
	"runtime"
	"time"
)

var (
	Version   = "dev"                           // ex: v0.3.0
	Commit    = "none"                          // ex: 1f2e3d4
	BuildDate = time.Now().Format(time.RFC3339) // ex: 2026-03-02T09:15:00Z
	GoVersion = runtime.Version()
)

// String is the one-line build summary logged at startup.
func String() string {
	return fmt.Sprintf("shelf %s (commit=%s, built=%s, %s)", Version, Commit, BuildDate, GoVersion)
}
