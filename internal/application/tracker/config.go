package tracker

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/penwyp/go-scholar-sync/internal/core/constants"
	"github.com/penwyp/go-scholar-sync/internal/core/notify"
	"github.com/penwyp/go-scholar-sync/internal/util"
)

// EnvPrefix prefixes every environment override, e.g. SCHOLAR_SYNC_SHARED_DIR.
const EnvPrefix = "SCHOLAR_SYNC_"

// Config contains configuration shared by the host and companion commands
type Config struct {
	// Storage
	SharedDir string `koanf:"shared_dir"`
	LocalDir  string `koanf:"local_dir"`

	// Logging
	LogFile   string `koanf:"log_file"`
	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`

	// Display settings
	Timezone string `koanf:"timezone"`

	// Change detection
	PollInterval        time.Duration `koanf:"poll_interval"`
	StaleRefreshTimeout time.Duration `koanf:"stale_refresh_timeout"`
	Topic               string        `koanf:"topic"`

	// Write durability for entity data
	DurableWrites bool `koanf:"durable_writes"`
}

// DefaultConfig returns the defaults applied before any file or environment layer.
func DefaultConfig() *Config {
	return &Config{
		SharedDir:           "~/.go-scholar-sync/shared",
		LocalDir:            "~/.go-scholar-sync/local",
		LogFile:             "~/.go-scholar-sync/logs/app.log",
		LogLevel:            "info",
		LogFormat:           string(util.FormatText),
		Timezone:            "Local",
		PollInterval:        constants.DefaultPollInterval,
		StaleRefreshTimeout: constants.StaleRefreshTimeout,
		Topic:               notify.TopicEntities,
		DurableWrites:       true,
	}
}

// Validate fills defaults and checks values
func (c *Config) Validate() error {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = string(util.FormatText)
	}
	if c.LogFormat != string(util.FormatText) && c.LogFormat != string(util.FormatJSON) {
		return fmt.Errorf("invalid log format %q (text or json)", c.LogFormat)
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.PollInterval == 0 {
		c.PollInterval = constants.DefaultPollInterval
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.StaleRefreshTimeout == 0 {
		c.StaleRefreshTimeout = constants.StaleRefreshTimeout
	}
	if c.StaleRefreshTimeout < 0 {
		return fmt.Errorf("stale refresh timeout must be positive, got %s", c.StaleRefreshTimeout)
	}
	if c.Topic == "" {
		c.Topic = notify.TopicEntities
	}

	c.SharedDir = util.ExpandPath(c.SharedDir)
	c.LocalDir = util.ExpandPath(c.LocalDir)
	c.LogFile = util.ExpandPath(c.LogFile)
	return nil
}

// LoadConfig layers defaults, an optional YAML file and SCHOLAR_SYNC_*
// environment variables, later layers winning.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if path != "" {
		if err := k.Load(file.Provider(util.ExpandPath(path)), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// Layer 3: environment
	// SCHOLAR_SYNC_POLL_INTERVAL -> poll_interval
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func envTransformFunc(key string) string {
	return strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
}
