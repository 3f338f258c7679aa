// Package version reports the version of the jah binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// Set with -ldflags "-X github.com/conneroisu/jah/internal/version.Version=...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	BuildTime time.Time `json:"build_time"`
	GoVersion string    `json:"go_version"`
	Platform  string    `json:"platform"`
	Dirty     bool      `json:"dirty"`
}

var vcs = sync.OnceValue(func() map[string]string {
	settings := map[string]string{}
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			settings["module.version"] = info.Main.Version
		}
		for _, s := range info.Settings {
			if strings.HasPrefix(s.Key, "vcs.") {
				settings[s.Key] = s.Value
			}
		}
	}

	return settings
})

// Get returns the build information, preferring linker-set values over
// the module and VCS data embedded by the go tool.
func Get() *BuildInfo {
	return &BuildInfo{
		Version:   version(),
		GitCommit: commit(),
		BuildTime: parseTime(BuildTime),
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Dirty:     vcs()["vcs.modified"] == "true",
	}
}

func version() string {
	if Version != "" && Version != "dev" {
		return Version
	}
	if v := vcs()["module.version"]; v != "" {
		return v
	}
	if rev := vcs()["vcs.revision"]; len(rev) >= 7 {
		return "dev-" + rev[:7]
	}

	return "dev"
}

func commit() string {
	if GitCommit != "" && GitCommit != "unknown" {
		return GitCommit
	}
	if rev := vcs()["vcs.revision"]; rev != "" {
		return rev
	}

	return "unknown"
}

// Short returns "version (commit)" or just the version.
func (b *BuildInfo) Short() string {
	if b.GitCommit == "unknown" || len(b.GitCommit) < 7 || strings.HasSuffix(b.Version, b.GitCommit[:7]) {
		return b.Version
	}

	return fmt.Sprintf("%s (%s)", b.Version, b.GitCommit[:7])
}

// String returns a multi-line description.
func (b *BuildInfo) String() string {
	lines := []string{"jah " + b.Short()}
	if !b.BuildTime.IsZero() {
		lines = append(lines, "Built: "+b.BuildTime.UTC().Format(time.RFC3339))
	}
	lines = append(lines, "Go: "+b.GoVersion, "Platform: "+b.Platform)
	if b.Dirty {
		lines = append(lines, "Working directory: dirty")
	}

	return strings.Join(lines, "\n")
}

// IsRelease reports whether the binary carries a release version.
func (b *BuildInfo) IsRelease() bool {
	return b.Version != "dev" && !strings.HasPrefix(b.Version, "dev-")
}

func parseTime(s string) time.Time {
	if s == "" || s == "unknown" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}

	return time.Time{}
}
