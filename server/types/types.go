// Package types holds values shared by the server and its handlers.
package types

import (
	"os"
	"time"

	"github.com/nomis52/featurebatch/buildinfo"
)

// ServerProperties describes the running server instance.
type ServerProperties struct {
	Build     buildinfo.Properties `json:"build"`
	StartedAt time.Time            `json:"started_at"`
	Hostname  string               `json:"hostname"`
	TLS       bool                 `json:"tls"`
}

// NewServerProperties captures the build and host of a server starting now.
// An unreadable hostname is reported as empty.
func NewServerProperties(tls bool) ServerProperties {
	hostname, _ := os.Hostname()
	return ServerProperties{
		Build:     buildinfo.Get(),
		StartedAt: time.Now(),
		Hostname:  hostname,
		TLS:       tls,
	}
}
