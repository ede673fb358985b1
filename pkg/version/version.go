// Package version holds build-time identification for the snowcap binaries.
package version

import "fmt"

// Version, GitCommit, and BuildDate are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/nsg-ethz/snowcap-go/pkg/version.Version=v1.0.0 \
//	  -X github.com/nsg-ethz/snowcap-go/pkg/version.GitCommit=abc1234 \
//	  -X github.com/nsg-ethz/snowcap-go/pkg/version.BuildDate=2026-07-30"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info renders a one-line build identification string.
func Info() string {
	if Version == "dev" {
		return "dev build"
	}
	return fmt.Sprintf("%s (%s, built %s)", Version, GitCommit, BuildDate)
}
