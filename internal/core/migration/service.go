// Package migration moves data written by older, single-process installs from
// the process-local store into the shared store, once.
package migration

import (
	"fmt"

	"github.com/penwyp/go-scholar-sync/internal/core/model"
	"github.com/penwyp/go-scholar-sync/internal/core/reconcile"
	"github.com/penwyp/go-scholar-sync/internal/data/store"
	"github.com/penwyp/go-scholar-sync/internal/util"
)

// Outcome describes what RunOnce did.
type Outcome string

const (
	OutcomeAlreadyMigrated Outcome = "already_migrated"
	OutcomeSharedHasData   Outcome = "shared_has_data"
	OutcomeNothingToCopy   Outcome = "nothing_to_copy"
	OutcomeCopied          Outcome = "copied"
)

type Service struct {
	shared store.Store
	legacy store.Store
	log    util.LoggerInterface
}

func NewService(shared, legacy store.Store, log util.LoggerInterface) *Service {
	return &Service{
		shared: shared,
		legacy: legacy,
		log:    util.Component(log, "migration"),
	}
}

// Migrated reports whether the completion flag is set.
func (s *Service) Migrated() bool {
	var done bool
	return store.GetJSON(s.shared, store.KeyMigrated, &done, s.log) && done
}

// RunOnce is safe to call on every start. Existing shared data is never
// overwritten; legacy blobs are copied byte for byte.
func (s *Service) RunOnce() (Outcome, error) {
	if s.Migrated() {
		return OutcomeAlreadyMigrated, nil
	}

	if hasAny(s.shared) {
		s.log.Info("shared store already populated, skipping migration")
		return OutcomeSharedHasData, s.markDone()
	}

	if s.legacy == nil || s.legacy == s.shared || !hasAny(s.legacy) {
		return OutcomeNothingToCopy, s.markDone()
	}

	copied := 0
	for _, key := range store.DataKeys {
		data, ok := s.legacy.Get(key)
		if !ok {
			continue
		}
		if err := s.shared.Set(key, data, true); err != nil {
			return "", fmt.Errorf("copy %s: %w", key, err)
		}
		copied++
	}

	// Legacy installs never recorded fetch times; without one the sync
	// marker would stand in for every entity and reconciliation would drift.
	var entities []model.TrackedEntity
	seeded := 0
	if store.GetJSON(s.shared, store.KeyEntities, &entities, s.log) {
		n, err := reconcile.SeedFetchTimes(s.shared, entities, s.log)
		if err != nil {
			return "", fmt.Errorf("seed fetch times: %w", err)
		}
		seeded = n
	}

	if err := s.markDone(); err != nil {
		return "", err
	}
	s.log.Info("legacy data migrated",
		util.Field{Key: "keys", Value: copied},
		util.Field{Key: "fetch_times", Value: seeded})
	return OutcomeCopied, nil
}

func (s *Service) markDone() error {
	if err := store.SetJSON(s.shared, store.KeyMigrated, true, true); err != nil {
		return fmt.Errorf("set migrated flag: %w", err)
	}
	return nil
}

func hasAny(s store.Store) bool {
	for _, key := range store.DataKeys {
		if data, ok := s.Get(key); ok && len(data) > 0 {
			return true
		}
	}
	return false
}
