// Package buildinfo exposes version information stamped in at link time:
//
//	go build -ldflags "-X github.com/nomis52/featurebatch/buildinfo.version=v1.2.0 \
//	    -X github.com/nomis52/featurebatch/buildinfo.gitCommit=$(git rev-parse --short HEAD) \
//	    -X github.com/nomis52/featurebatch/buildinfo.buildTime=$(date -u +%FT%TZ)"
package buildinfo

import "fmt"

// Properties describes the running binary.
type Properties struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

// String formats the properties for the version command.
func (p Properties) String() string {
	return fmt.Sprintf("featurebatch %s (commit %s, built %s)", p.Version, p.GitCommit, p.BuildTime)
}

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// Get returns the properties of the running binary.
func Get() Properties {
	return Properties{
		Version:   version,
		BuildTime: buildTime,
		GitCommit: gitCommit,
	}
}
