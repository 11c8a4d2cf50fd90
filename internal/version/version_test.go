package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func setBuild(t *testing.T, version, commit, buildTime string) {
	t.Helper()
	origVersion, origCommit, origTime := Version, Commit, BuildTime
	t.Cleanup(func() {
		Version, Commit, BuildTime = origVersion, origCommit, origTime
	})
	Version, Commit, BuildTime = version, commit, buildTime
}

func TestInfo(t *testing.T) {
	setBuild(t, "v1.2.3", "abc1234", "")

	assert.Equal(t, "v1.2.3", Short())
	info := Info()
	assert.Contains(t, info, "lome v1.2.3")
	assert.Contains(t, info, "abc1234")
	assert.Contains(t, info, "built:      unknown")
	assert.Contains(t, info, runtime.Version())
}

func TestCurrent(t *testing.T) {
	setBuild(t, "v0.4.0", "deadbee", "2025-01-02T03:04:05Z")

	assert.Equal(t, BuildInfo{
		Version:   "v0.4.0",
		Commit:    "deadbee",
		BuildTime: "2025-01-02T03:04:05Z",
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}, Current())
}
