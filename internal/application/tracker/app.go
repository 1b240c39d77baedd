package tracker

import (
	"fmt"
	"path/filepath"

	"github.com/penwyp/go-scholar-sync/internal/core/migration"
	"github.com/penwyp/go-scholar-sync/internal/core/notify"
	"github.com/penwyp/go-scholar-sync/internal/data/store"
	"github.com/penwyp/go-scholar-sync/internal/util"
)

// Role selects which process-local store an App opens. The two processes
// never share their local stores.
type Role string

const (
	RoleHost      Role = "host"
	RoleCompanion Role = "companion"
)

// App wires stores, the notifier and the facades for one process.
type App struct {
	Config *Config
	Role   Role
	Stores *store.Opened
	Hub    *notify.Hub
	Clock  *util.TimeProvider
	Log    util.LoggerInterface
}

func OpenApp(cfg *Config, role Role, log util.LoggerInterface) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log = util.OrNop(log)

	clock, err := util.NewTimeProvider(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize timezone: %w", err)
	}

	localDir := ""
	if cfg.LocalDir != "" {
		localDir = filepath.Join(cfg.LocalDir, string(role))
	}
	stores := store.Open(store.Options{
		SharedDir: cfg.SharedDir,
		LocalDir:  localDir,
		Log:       log,
	})

	var transport notify.Transport
	if !stores.Degraded() {
		ft, err := notify.NewFileTransport(cfg.SharedDir, log)
		if err != nil {
			log.Warn("push signals unavailable, relying on poll", util.Field{Key: "error", Value: err})
		} else {
			transport = ft
		}
	}

	if stores.File != nil {
		stores.File.CleanTemp(cfg.StaleRefreshTimeout)
	}

	return &App{
		Config: cfg,
		Role:   role,
		Stores: stores,
		Hub:    notify.NewHub(transport, log),
		Clock:  clock,
		Log:    log,
	}, nil
}

func (a *App) deps() Deps {
	return Deps{
		Shared:       a.Stores.Shared,
		Clock:        a.Clock,
		Notifier:     a.Hub,
		Log:          a.Log,
		Topic:        a.Config.Topic,
		StaleTimeout: a.Config.StaleRefreshTimeout,
		Durable:      a.Config.DurableWrites,
	}
}

func (a *App) Host() *Host {
	return NewHost(a.deps())
}

func (a *App) Companion() *Companion {
	return NewCompanion(a.deps(), a.Stores.Local)
}

// Migration copies legacy data from this process's local store.
func (a *App) Migration() *migration.Service {
	return migration.NewService(a.Stores.Shared, a.Stores.Local, a.Log)
}

func (a *App) Runner(host *Host, opts RunnerOptions) *Runner {
	if opts.PollInterval == 0 {
		opts.PollInterval = a.Config.PollInterval
	}
	if opts.Migration == nil {
		opts.Migration = a.Migration()
	}
	return NewRunner(host, a.Hub, opts)
}

func (a *App) Close() error {
	hubErr := a.Hub.Close()
	if err := a.Stores.Close(); err != nil {
		return err
	}
	return hubErr
}
