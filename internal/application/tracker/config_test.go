package tracker

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidateFillsDefaults(t *testing.T) {
	cfg := &Config{SharedDir: "/tmp/shared"}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "Local", cfg.Timezone)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 5*time.Minute, cfg.StaleRefreshTimeout)
	assert.Equal(t, "scholars.changed", cfg.Topic)
	assert.Equal(t, "/tmp/shared", cfg.SharedDir)
}

func TestConfigValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "log format", cfg: Config{LogFormat: "xml"}},
		{name: "poll interval", cfg: Config{PollInterval: -time.Second}},
		{name: "stale timeout", cfg: Config{StaleRefreshTimeout: -time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".go-scholar-sync", "shared"), cfg.SharedDir)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.True(t, cfg.DurableWrites)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
shared_dir: `+filepath.Join(dir, "shared")+`
poll_interval: 10s
log_level: debug
durable_writes: false
`), 0644))

	t.Setenv("SCHOLAR_SYNC_POLL_INTERVAL", "2s")
	t.Setenv("SCHOLAR_SYNC_TOPIC", "custom.topic")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "shared"), cfg.SharedDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.False(t, cfg.DurableWrites)
	assert.Equal(t, 2*time.Second, cfg.PollInterval, "environment wins over file")
	assert.Equal(t, "custom.topic", cfg.Topic)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigInvalidValue(t *testing.T) {
	t.Setenv("SCHOLAR_SYNC_LOG_FORMAT", "xml")
	_, err := LoadConfig("")
	assert.Error(t, err)
}
