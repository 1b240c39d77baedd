package tracker

import (
	"fmt"
	"time"

	"github.com/penwyp/go-scholar-sync/internal/core/model"
	"github.com/penwyp/go-scholar-sync/internal/core/notify"
	"github.com/penwyp/go-scholar-sync/internal/core/reconcile"
	"github.com/penwyp/go-scholar-sync/internal/data/store"
	"github.com/penwyp/go-scholar-sync/internal/util"
)

// Companion is the short-lived widget side. It has no timers: every
// invocation re-derives state from the shared store. It never writes the
// entity collection, the display order or the pin set.
type Companion struct {
	deps Deps
	components
	local store.Store
	log   util.LoggerInterface
}

// NewCompanion creates a companion. local keeps the last sync marker this
// process observed and must not be shared with the host.
func NewCompanion(d Deps, local store.Store) *Companion {
	d = d.withDefaults()
	if local == nil {
		local = store.NewMemoryStore()
	}
	return &Companion{
		deps:       d,
		components: newComponents(d),
		local:      local,
		log:        util.Component(d.Log, "companion"),
	}
}

// Check compares the sync marker with the one seen on the previous
// invocation and records the current one. True means the snapshot changed.
func (c *Companion) Check() bool {
	current := notify.ReadSyncMarker(c.deps.Shared, c.log)

	var seen model.SyncMarker
	store.GetJSON(c.local, store.KeyCompanionSeen, &seen, c.log)
	if notify.SameMarker(current, seen) {
		return false
	}

	c.remember(current)
	return true
}

func (c *Companion) remember(m model.SyncMarker) {
	if err := store.SetJSON(c.local, store.KeyCompanionSeen, m, false); err != nil {
		c.log.Warn("failed to record sync marker", util.Field{Key: "error", Value: err})
	}
}

// Snapshot returns the current widget projections. A missing or undecodable
// blob is an empty snapshot.
func (c *Companion) Snapshot() []model.WidgetProjection {
	var projections []model.WidgetProjection
	if !store.GetJSON(c.deps.Shared, store.KeyProjections, &projections, c.log) {
		return []model.WidgetProjection{}
	}
	return projections
}

// BeginFetch takes the advisory lease for entityID.
func (c *Companion) BeginFetch(entityID string) (bool, error) {
	if entityID == "" {
		return false, ErrInvalidEntity
	}
	return c.refresh.TryBegin(entityID)
}

// CommitFetchResult records a fetch made by the companion. Only the entity's
// own projection is rewritten; the host folds it into the model on its next
// reconciliation.
func (c *Companion) CommitFetchResult(entityID string, value int, displayName string, at time.Time) error {
	if err := validateCommit(entityID, value); err != nil {
		return err
	}

	projections := c.Snapshot()
	idx := -1
	for i, p := range projections {
		if p.EntityID == entityID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}

	if _, err := c.history.Append(entityID, value, at); err != nil {
		return fmt.Errorf("append history for %s: %w", entityID, err)
	}
	if err := reconcile.RecordFetch(c.deps.Shared, entityID, at); err != nil {
		return fmt.Errorf("record fetch for %s: %w", entityID, err)
	}
	if err := c.refresh.Complete(entityID, at); err != nil {
		return fmt.Errorf("complete refresh for %s: %w", entityID, err)
	}

	name := projections[idx].DisplayName
	if name == "" {
		name = displayName
	}
	projections[idx] = c.growth.Projection(model.TrackedEntity{
		ID:          entityID,
		DisplayName: name,
		MetricValue: model.IntPtr(value),
		LastUpdated: model.TimePtr(at),
	})
	if err := store.SetJSON(c.deps.Shared, store.KeyProjections, projections, false); err != nil {
		return fmt.Errorf("save projections: %w", err)
	}

	marker, err := notify.BumpSyncMarker(c.deps.Shared, c.deps.Clock, c.log)
	if err != nil {
		return fmt.Errorf("bump sync marker: %w", err)
	}
	c.remember(marker)

	if c.deps.Notifier != nil {
		c.deps.Notifier.Publish(c.deps.Topic)
	}
	c.log.Info("fetch committed",
		util.Field{Key: "entity", Value: entityID},
		util.Field{Key: "value", Value: value})
	return nil
}
