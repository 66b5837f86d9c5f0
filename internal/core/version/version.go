// Package version provides information about the build and the cluster protocol.
package version

// ProtocolVersion is the cluster protocol version announced to the center.
const ProtocolVersion = "1.7.3"

// UserAgent is sent on every handshake with the center.
func UserAgent() string { return "openbmclapi-cluster/" + ProtocolVersion }

// BuildInfo holds version information about the binary.
type BuildInfo struct {
	Service  string `json:"service"`
	Version  string `json:"version"`
	Commit   string `json:"commit"`
	Date     string `json:"date"`
	Protocol string `json:"protocol"`
}

// Info returns the build information. The version, commit, and date variables
// are intended to be set at build time using -ldflags.
func Info() BuildInfo {
	// Set via -ldflags "-X 'clustercert/internal/core/version.version=v0.0.1'
	// -X 'clustercert/internal/core/version.commit=abcd' -X 'clustercert/internal/core/version.date=2026-10-19'"
	return BuildInfo{
		Service:  "clustercert",
		Version:  version,
		Commit:   commit,
		Date:     date,
		Protocol: ProtocolVersion,
	}
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)
