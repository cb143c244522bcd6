package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromBuildInfo(t *testing.T) {
	oldV, oldC, oldD := Version, Commit, Date

	t.Cleanup(func() { Version, Commit, Date = oldV, oldC, oldD })

	Version, Commit, Date = "dev", unknown, unknown

	fromBuildInfo(&debug.BuildInfo{
		Main: debug.Module{Version: "v1.2.3"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
		},
	})

	assert.Equal(t, "v1.2.3", Version)
	assert.Equal(t, "abc123", Commit)
	assert.Equal(t, "2026-01-02T03:04:05Z", Date)
	assert.Contains(t, String(), "prescan v1.2.3 (commit: abc123")
}

func TestFromBuildInfo_KeepsLinkerValues(t *testing.T) {
	oldV, oldC, oldD := Version, Commit, Date

	t.Cleanup(func() { Version, Commit, Date = oldV, oldC, oldD })

	Version, Commit = "v9.9.9", "stamped"

	fromBuildInfo(&debug.BuildInfo{
		Main:     debug.Module{Version: "(devel)"},
		Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "other"}},
	})

	assert.Equal(t, "v9.9.9", Version)
	assert.Equal(t, "stamped", Commit)
}
