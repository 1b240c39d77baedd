// Package refresh implements the advisory per-entity fetch lease. It prevents
// duplicate concurrent network work between processes but is not mutual
// exclusion: racing fetches are tolerated because completion always writes the
// freshest value.
package refresh

import (
	"time"

	"github.com/penwyp/go-scholar-sync/internal/core/constants"
	"github.com/penwyp/go-scholar-sync/internal/core/model"
	"github.com/penwyp/go-scholar-sync/internal/data/store"
	"github.com/penwyp/go-scholar-sync/internal/util"
)

type Coordinator struct {
	store        store.Store
	clock        util.Clock
	staleTimeout time.Duration
	log          util.LoggerInterface
}

// NewCoordinator creates a coordinator. A non-positive staleTimeout uses the default.
func NewCoordinator(s store.Store, clock util.Clock, staleTimeout time.Duration, log util.LoggerInterface) *Coordinator {
	if staleTimeout <= 0 {
		staleTimeout = constants.StaleRefreshTimeout
	}
	return &Coordinator{
		store:        s,
		clock:        clock,
		staleTimeout: staleTimeout,
		log:          util.Component(log, "refresh"),
	}
}

// Marker returns the stored marker of entityID.
func (c *Coordinator) Marker(entityID string) (model.RefreshMarker, bool) {
	var m model.RefreshMarker
	if !store.GetJSON(c.store, store.RefreshKey(entityID), &m, c.log) {
		return model.RefreshMarker{}, false
	}
	return m, true
}

// Begin marks entityID in progress from now. Calling it again while in
// progress refreshes StartedAt.
func (c *Coordinator) Begin(entityID string) error {
	now := c.clock.Now()
	m := model.RefreshMarker{
		EntityID:  entityID,
		State:     model.RefreshInProgress,
		StartedAt: &now,
	}
	if prev, ok := c.Marker(entityID); ok && prev.CompletedAt != nil {
		m.CompletedAt = model.TimePtr(*prev.CompletedAt)
	}
	c.log.Debug("refresh started", util.Field{Key: "entity", Value: entityID})
	return store.SetJSON(c.store, store.RefreshKey(entityID), m, false)
}

// TryBegin begins only when no live lease exists and reports whether it did.
func (c *Coordinator) TryBegin(entityID string) (bool, error) {
	if c.IsInProgress(entityID) {
		return false, nil
	}
	if err := c.Begin(entityID); err != nil {
		return false, err
	}
	return true, nil
}

// Complete records a finished fetch and clears StartedAt.
func (c *Coordinator) Complete(entityID string, at time.Time) error {
	m := model.RefreshMarker{
		EntityID:    entityID,
		State:       model.RefreshDone,
		CompletedAt: &at,
	}
	c.log.Debug("refresh completed", util.Field{Key: "entity", Value: entityID})
	return store.SetJSON(c.store, store.RefreshKey(entityID), m, false)
}

// IsInProgress reports a live lease. A lease older than the stale timeout is
// reclaimable and reported as not in progress; nothing is cleared.
func (c *Coordinator) IsInProgress(entityID string) bool {
	m, ok := c.Marker(entityID)
	if !ok || !m.InProgress() || m.StartedAt == nil {
		return false
	}
	if c.clock.Now().Sub(*m.StartedAt) > c.staleTimeout {
		c.log.Debug("stale refresh lease ignored",
			util.Field{Key: "entity", Value: entityID},
			util.Field{Key: "started_at", Value: m.StartedAt.Format(time.RFC3339)})
		return false
	}
	return true
}

// Forget removes the marker of entityID.
func (c *Coordinator) Forget(entityID string) error {
	return c.store.Delete(store.RefreshKey(entityID))
}
