package version

import (
	"runtime"
	"runtime/debug"
	"strings"
	"testing"
)

// stamp replaces the ldflags variables and the embedded build info for one test.
func stamp(t *testing.T, v, c, b string, settings ...debug.BuildSetting) {
	t.Helper()
	origVersion, origCommit, origBuildTime, origRead := Version, Commit, BuildTime, readBuildInfo
	t.Cleanup(func() {
		Version, Commit, BuildTime, readBuildInfo = origVersion, origCommit, origBuildTime, origRead
	})
	Version, Commit, BuildTime = v, c, b
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		if settings == nil {
			return nil, false
		}
		return &debug.BuildInfo{Settings: settings}, true
	}
}

func TestGet(t *testing.T) {
	t.Run("ldflags win", func(t *testing.T) {
		stamp(t, "1.2.3", "abc1234", "2024-01-15T10:00:00Z",
			debug.BuildSetting{Key: "vcs.revision", Value: "ffffffffffffffff"},
			debug.BuildSetting{Key: "vcs.time", Value: "2020-01-01T00:00:00Z"},
		)

		info := Get()
		if info.Commit != "abc1234" || info.BuildTime != "2024-01-15T10:00:00Z" {
			t.Errorf("Get() = %+v, want stamped values", info)
		}
		if info.Product != Product || info.GoVersion != runtime.Version() {
			t.Errorf("Get() = %+v", info)
		}
	})

	t.Run("falls back to vcs data", func(t *testing.T) {
		stamp(t, "dev", "unknown", "unknown",
			debug.BuildSetting{Key: "vcs.revision", Value: "0123456789abcdef"},
			debug.BuildSetting{Key: "vcs.time", Value: "2024-02-01T08:30:00Z"},
			debug.BuildSetting{Key: "vcs.modified", Value: "true"},
		)

		info := Get()
		if info.Commit != "0123456" {
			t.Errorf("Commit = %q, want short revision", info.Commit)
		}
		if info.BuildTime != "2024-02-01T08:30:00Z" {
			t.Errorf("BuildTime = %q", info.BuildTime)
		}
		if !info.Modified {
			t.Error("Modified = false, want true")
		}
	})

	t.Run("no build info", func(t *testing.T) {
		stamp(t, "dev", "unknown", "unknown")

		if info := Get(); info.Commit != "unknown" || info.Modified {
			t.Errorf("Get() = %+v", info)
		}
	})
}

func TestString(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{"clean", Info{Version: "1.2.3", Commit: "abc1234", BuildTime: "2024-01-15T10:00:00Z"}, "1.2.3 (abc1234) built 2024-01-15T10:00:00Z"},
		{"dirty", Info{Version: "dev", Commit: "0123456", BuildTime: "unknown", Modified: true}, "dev (0123456-dirty) built unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserAgent(t *testing.T) {
	stamp(t, "0.4.0", "abc1234", "unknown")

	ua := UserAgent()
	if !strings.HasPrefix(ua, "chatstream/0.4.0 (") {
		t.Errorf("UserAgent() = %q, want chatstream/0.4.0 prefix", ua)
	}
	if !strings.Contains(ua, runtime.GOOS) {
		t.Errorf("UserAgent() = %q, want platform", ua)
	}
}
