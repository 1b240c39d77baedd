package store

import (
	"github.com/penwyp/go-scholar-sync/internal/util"
)

// Options configures Open.
type Options struct {
	// SharedDir is the namespace shared by every cooperating process.
	SharedDir string
	// LocalDir holds this process's private store. Empty means in-memory.
	LocalDir string
	Log      util.LoggerInterface
}

// Opened bundles the shared and process-local stores.
type Opened struct {
	Shared   Store
	Local    Store
	File     *FileStore
	degraded bool
	closers  []func() error
}

// Degraded reports whether Shared fell back to process-local storage.
func (o *Opened) Degraded() bool {
	return o.degraded
}

func (o *Opened) Close() error {
	var firstErr error
	for i := len(o.closers) - 1; i >= 0; i-- {
		if err := o.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	o.closers = nil
	return firstErr
}

// Open never fails. When the shared namespace cannot be opened, Shared is the
// local store and a single warning is logged; the system keeps working with a
// wider resync window.
func Open(opts Options) *Opened {
	log := util.Component(opts.Log, "store")
	o := &Opened{}

	local, err := openLocal(opts.LocalDir, opts.Log)
	if err != nil {
		log.Warn("local store unavailable, using memory", util.Field{Key: "error", Value: err})
		o.Local = NewMemoryStore()
	} else {
		o.Local = local
		o.closers = append(o.closers, local.Close)
	}

	fs, err := NewFileStore(opts.SharedDir, opts.Log)
	if err != nil {
		log.Warn("shared namespace unavailable, running in degraded process-local mode",
			util.Field{Key: "shared_dir", Value: opts.SharedDir},
			util.Field{Key: "error", Value: err})
		o.Shared = o.Local
		o.degraded = true
		return o
	}

	o.Shared = fs
	o.File = fs
	o.closers = append(o.closers, fs.Close)
	return o
}

func openLocal(dir string, log util.LoggerInterface) (*BadgerStore, error) {
	cfg := InMemoryBadgerConfig()
	if dir != "" {
		cfg = DefaultBadgerConfig(dir)
	}
	return OpenBadger(cfg, log)
}
