// Package version reports what build of the chat client is running.
//
// Release builds stamp the variables with ldflags:
//
//	go build -ldflags "-X github.com/rickgao/chatstream/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/chatstream/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/chatstream/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// Unstamped builds fall back to the VCS data the Go toolchain embeds.
package version

import (
	"runtime"
	"runtime/debug"
)

// Stamped at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Product is the client name sent to the chat server.
const Product = "chatstream"

// Info describes the running build, as served on /health.
type Info struct {
	Product   string `json:"product"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	Modified  bool   `json:"modified,omitempty"` // Built from a dirty tree
	GoVersion string `json:"go_version"`
}

// readBuildInfo is swapped in tests.
var readBuildInfo = debug.ReadBuildInfo

// Get returns the build info, filling unstamped fields from the embedded VCS data.
func Get() Info {
	info := Info{
		Product:   Product,
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}

	bi, ok := readBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "unknown" && s.Value != "" {
				info.Commit = shortRevision(s.Value)
			}
		case "vcs.time":
			if info.BuildTime == "unknown" && s.Value != "" {
				info.BuildTime = s.Value
			}
		case "vcs.modified":
			info.Modified = s.Value == "true"
		}
	}
	return info
}

// String formats the build for logs, e.g. "1.2.0 (abc1234) built 2024-01-15T10:00:00Z".
func (i Info) String() string {
	s := i.Version + " (" + i.Commit
	if i.Modified {
		s += "-dirty"
	}
	return s + ") built " + i.BuildTime
}

// String formats the running build.
func String() string {
	return Get().String()
}

// UserAgent is the User-Agent header sent on the WebSocket handshake.
func UserAgent() string {
	return Product + "/" + Version + " (" + runtime.GOOS + "; " + runtime.GOARCH + ")"
}

func shortRevision(rev string) string {
	if len(rev) > 7 {
		return rev[:7]
	}
	return rev
}
