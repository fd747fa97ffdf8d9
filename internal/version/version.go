// Package version exposes build metadata stamped in via ldflags:
//
//	-X github.com/skobelev/warden/internal/version.Version=v1.2.3
//	-X github.com/skobelev/warden/internal/version.GitCommit=abc1234
//	-X github.com/skobelev/warden/internal/version.BuildDate=2026-01-01
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

// Info bundles version and build metadata for the API.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build metadata of the running binary.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String formats the version with its commit for log lines.
func String() string {
	return fmt.Sprintf("%s (%s)", Version, GitCommit)
}
