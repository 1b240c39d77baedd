package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/penwyp/go-scholar-sync/internal/application/tracker"
	"github.com/penwyp/go-scholar-sync/internal/util"
	"github.com/spf13/cobra"
)

// rootOptions holds the flags every subcommand inherits.
type rootOptions struct {
	// Configuration sources
	configPath string

	// Storage overrides
	sharedDir string
	localDir  string

	// Logging related
	logFile string
	debug   bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "go-scholar-sync",
		Short: "Citation tracking shared between a host process and a widget",
		Long: `go-scholar-sync keeps a list of scholars and their citation counts in a
shared directory that a long-running host process and a lightweight widget
process both read and write.

Examples:
  go-scholar-sync track abc123 --name "Ada Lovelace"   # Start tracking a scholar
  go-scholar-sync commit abc123 1250                   # Record a fetched citation count
  go-scholar-sync list --output json                   # Show every tracked scholar
  go-scholar-sync growth abc123 --days 30              # Citation growth over 30 days
  go-scholar-sync changes --days 7                     # What moved this week
  go-scholar-sync history -o csv > history.csv         # Export every snapshot
  go-scholar-sync host                                 # Run the host loop
  go-scholar-sync widget show                          # Print the widget snapshot`,
		SilenceUsage: true,
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"YAML config file (environment: SCHOLAR_SYNC_*)")
	cmd.PersistentFlags().StringVar(&opts.sharedDir, "shared-dir", "",
		"Directory shared by the host and the widget")
	cmd.PersistentFlags().StringVar(&opts.localDir, "local-dir", "",
		"Directory for process-private state")
	cmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "",
		"Log file path")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false,
		"Enable debug mode")

	cmd.AddCommand(
		newHostCmd(opts),
		newTrackCmd(opts),
		newCommitCmd(opts),
		newListCmd(opts),
		newPinCmd(opts),
		newUnpinCmd(opts),
		newMoveCmd(opts),
		newRemoveCmd(opts),
		newGrowthCmd(opts),
		newHistoryCmd(opts),
		newChangesCmd(opts),
		newImportCmd(opts),
		newStatusCmd(opts),
		newMigrateCmd(opts),
		newSyncCmd(opts),
		newWidgetCmd(opts),
	)
	return cmd
}

func Execute() error {
	return newRootCmd(os.Stdout, os.Stderr).Execute()
}

// loadConfig resolves the configuration and applies flag overrides.
func (o *rootOptions) loadConfig() (*tracker.Config, error) {
	cfg, err := tracker.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.sharedDir != "" {
		cfg.SharedDir = o.sharedDir
	}
	if o.localDir != "" {
		cfg.LocalDir = o.localDir
	}
	if o.logFile != "" {
		cfg.LogFile = o.logFile
	}
	if o.debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session is one opened App plus the logger it owns.
type session struct {
	app    *tracker.App
	logger *util.Logger
}

func (s *session) Close() error {
	err := s.app.Close()
	s.logger.Close()
	return err
}

func (o *rootOptions) open(role tracker.Role) (*session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := util.NewLogger(util.LoggerOptions{
		Level:     cfg.LogLevel,
		Format:    util.LogFormat(cfg.LogFormat),
		File:      cfg.LogFile,
		ToConsole: o.debug,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	app, err := tracker.OpenApp(cfg, role, logger)
	if err != nil {
		logger.Close()
		return nil, err
	}
	return &session{app: app, logger: logger}, nil
}

func (o *rootOptions) withHost(fn func(s *session, host *tracker.Host) error) error {
	s, err := o.open(tracker.RoleHost)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s, s.app.Host())
}

func (o *rootOptions) withCompanion(fn func(s *session, c *tracker.Companion) error) error {
	s, err := o.open(tracker.RoleCompanion)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s, s.app.Companion())
}
