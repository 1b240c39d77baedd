package tracker

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	return &Config{
		SharedDir:     filepath.Join(dir, "shared"),
		LocalDir:      filepath.Join(dir, "local"),
		Timezone:      "UTC",
		DurableWrites: true,
	}
}

func TestOpenAppSharesStateBetweenRoles(t *testing.T) {
	cfg := testConfig(t)

	hostApp, err := OpenApp(cfg, RoleHost, nil)
	require.NoError(t, err)
	defer hostApp.Close()
	companionApp, err := OpenApp(cfg, RoleCompanion, nil)
	require.NoError(t, err)
	defer companionApp.Close()

	assert.False(t, hostApp.Stores.Degraded())
	assert.False(t, companionApp.Stores.Degraded())

	h := hostApp.Host()
	require.NoError(t, h.CommitFetchResult("A", 42, "Ada", time.Now()))

	c := companionApp.Companion()
	assert.True(t, c.Check())
	snapshot := c.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, 42, *snapshot[0].MetricValue)

	_, err = os.Stat(filepath.Join(cfg.LocalDir, "host"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(cfg.LocalDir, "companion"))
	assert.NoError(t, err)
}

func TestOpenAppDegraded(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))
	cfg.SharedDir = filepath.Join(blocker, "shared")

	app, err := OpenApp(cfg, RoleHost, nil)
	require.NoError(t, err)
	defer app.Close()

	assert.True(t, app.Stores.Degraded())
	h := app.Host()
	require.NoError(t, h.CommitFetchResult("A", 1, "Ada", time.Now()))
	assert.Len(t, h.ListEntities(), 1)
}

func TestOpenAppInvalidTimezone(t *testing.T) {
	cfg := testConfig(t)
	cfg.Timezone = "Mars/Olympus"

	_, err := OpenApp(cfg, RoleHost, nil)
	assert.Error(t, err)
}
