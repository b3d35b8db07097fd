// Package version reports how the netscope binary was built. The variables
// are set with -ldflags "-X github.com/HerbHall/netscope/internal/version.Version=...".
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Build is the build information of the running binary.
type Build struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func Current() Build {
	return Build{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Info is the one-line form printed by --version.
func Info() string {
	b := Current()
	return fmt.Sprintf("netscope %s (commit: %s, built: %s, %s %s)",
		b.Version, b.GitCommit, b.BuildDate, b.GoVersion, b.Platform)
}

func Short() string {
	return Version
}
