// Package version holds build metadata injected with -ldflags:
//
//	go build -ldflags "-X github.com/longkey1/lome/internal/version.Version=v0.1.0 \
//	  -X github.com/longkey1/lome/internal/version.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/longkey1/lome/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	Version   = "dev"
	Commit    = ""
	BuildTime = ""
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// commit returns the injected commit, falling back to VCS build info.
func commit() string {
	if Commit != "" {
		return Commit
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, setting := range info.Settings {
		if setting.Key == "vcs.revision" && len(setting.Value) >= 7 {
			return setting.Value[:7]
		}
	}
	return "unknown"
}

// Current returns the metadata of this build.
func Current() BuildInfo {
	buildTime := BuildTime
	if buildTime == "" {
		buildTime = "unknown"
	}
	return BuildInfo{
		Version:   Version,
		Commit:    commit(),
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Short returns the version number only.
func Short() string {
	return Version
}

// Info returns the version with commit, build time and Go version.
func Info() string {
	b := Current()
	return fmt.Sprintf("lome %s\n  commit:     %s\n  built:      %s\n  go version: %s %s",
		b.Version, b.Commit, b.BuildTime, b.GoVersion, b.Platform)
}
