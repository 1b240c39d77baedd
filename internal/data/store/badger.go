package store

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/penwyp/go-scholar-sync/internal/util"
)

// BadgerConfig holds configuration for the process-local store.
type BadgerConfig struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	InMemory bool

	// SyncWrites makes every write synchronous, regardless of the durable flag.
	SyncWrites bool

	// GCInterval is how often to run value log garbage collection. 0 disables it.
	GCInterval time.Duration
}

// DefaultBadgerConfig returns production defaults for a local store at path.
func DefaultBadgerConfig(path string) BadgerConfig {
	return BadgerConfig{
		Path:       path,
		GCInterval: 10 * time.Minute,
	}
}

// InMemoryBadgerConfig returns a configuration for tests.
func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

// badgerLogger adapts util.LoggerInterface to BadgerDB's Logger interface.
type badgerLogger struct {
	log util.LoggerInterface
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.log.Errorf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.log.Warnf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}

// BadgerStore is the process-local persistent store. Badger takes an exclusive
// lock on its directory, so only one process can ever hold it open.
type BadgerStore struct {
	db       *badger.DB
	log      util.LoggerInterface
	inMemory bool
	stopGC   chan struct{}
	doneGC   chan struct{}
}

// OpenBadger opens the local store.
func OpenBadger(cfg BadgerConfig, log util.LoggerInterface) (*BadgerStore, error) {
	log = util.Component(log, "local-store")

	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent local store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create local store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{log: log})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}

	s := &BadgerStore{db: db, log: log, inMemory: cfg.InMemory}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.stopGC = make(chan struct{})
		s.doneGC = make(chan struct{})
		go s.runGC(cfg.GCInterval)
	}
	return s, nil
}

func (s *BadgerStore) Get(key string) ([]byte, bool) {
	if validateKey(key) != nil {
		return nil, false
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			s.log.Debug("read failed", util.Field{Key: "key", Value: key}, util.Field{Key: "error", Value: err})
		}
		return nil, false
	}
	return value, true
}

func (s *BadgerStore) Set(key string, value []byte, durable bool) error {
	if err := validateKey(key); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), cloneBytes(value))
	})
	if err != nil {
		if errors.Is(err, badger.ErrDBClosed) {
			return ErrClosed
		}
		return fmt.Errorf("set %s: %w", key, err)
	}

	if durable && !s.inMemory {
		if err := s.db.Sync(); err != nil {
			return fmt.Errorf("sync %s: %w", key, err)
		}
	}
	return nil
}

func (s *BadgerStore) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (s *BadgerStore) runGC(interval time.Duration) {
	defer close(s.doneGC)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			// ErrNoRewrite means no GC was needed, not an error
			if err := s.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.log.Warn("value log GC failed", util.Field{Key: "error", Value: err})
			}
		}
	}
}

func (s *BadgerStore) Close() error {
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.doneGC
		s.stopGC = nil
	}
	return s.db.Close()
}
