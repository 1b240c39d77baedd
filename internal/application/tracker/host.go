package tracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/penwyp/go-scholar-sync/internal/core/growth"
	"github.com/penwyp/go-scholar-sync/internal/core/history"
	"github.com/penwyp/go-scholar-sync/internal/core/model"
	"github.com/penwyp/go-scholar-sync/internal/core/notify"
	"github.com/penwyp/go-scholar-sync/internal/core/reconcile"
	"github.com/penwyp/go-scholar-sync/internal/data/store"
	"github.com/penwyp/go-scholar-sync/internal/util"
)

// Host owns the authoritative entity model. It is the only writer of the
// entity collection, the display order and the pin set.
type Host struct {
	deps Deps
	components
	log util.LoggerInterface

	mu       sync.Mutex
	entities map[string]model.TrackedEntity
	order    []string // display order
	pinned   []string // pin order
}

func NewHost(d Deps) *Host {
	d = d.withDefaults()
	h := &Host{
		deps:       d,
		components: newComponents(d),
		log:        util.Component(d.Log, "host"),
	}
	h.Load()
	return h
}

// History exposes the history log for imports and maintenance.
func (h *Host) History() *history.Log {
	return h.history
}

// Growth exposes the calculator used for projections.
func (h *Host) Growth() *growth.Calculator {
	return h.growth
}

// Load replaces the in-memory model with what the shared store holds.
// Undecodable blobs load as empty.
func (h *Host) Load() {
	var entities []model.TrackedEntity
	var order, pinned []string
	if !store.GetJSON(h.deps.Shared, store.KeyEntities, &entities, h.log) {
		entities = nil
	}
	if !store.GetJSON(h.deps.Shared, store.KeyDisplayOrder, &order, h.log) {
		order = nil
	}
	if !store.GetJSON(h.deps.Shared, store.KeyPinnedIDs, &pinned, h.log) {
		pinned = nil
	}

	// Data written before fetch times existed gets one seeded from LastUpdated.
	if n, err := reconcile.SeedFetchTimes(h.deps.Shared, entities, h.log); err != nil {
		h.log.Warn("seeding fetch times failed", util.Field{Key: "error", Value: err})
	} else if n > 0 {
		h.log.Info("seeded fetch times", util.Field{Key: "entities", Value: n})
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.entities = make(map[string]model.TrackedEntity, len(entities))
	fallback := make([]string, 0, len(entities))
	for _, e := range entities {
		if e.ID == "" {
			continue
		}
		if _, dup := h.entities[e.ID]; !dup {
			fallback = append(fallback, e.ID)
		}
		h.entities[e.ID] = e
	}

	// Order entries for unknown ids are dropped; entities missing from the
	// order keep their collection position at the end.
	h.order = h.order[:0]
	seen := make(map[string]bool, len(h.entities))
	for _, id := range append(order, fallback...) {
		if _, ok := h.entities[id]; ok && !seen[id] {
			seen[id] = true
			h.order = append(h.order, id)
		}
	}

	h.pinned = h.pinned[:0]
	pinSeen := make(map[string]bool, len(pinned))
	for _, id := range pinned {
		if _, ok := h.entities[id]; ok && !pinSeen[id] {
			pinSeen[id] = true
			h.pinned = append(h.pinned, id)
		}
	}
}

// ListEntities returns pinned entities in pin order, then the rest in
// display order.
func (h *Host) ListEntities() []model.TrackedEntity {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.listLocked()
}

func (h *Host) listLocked() []model.TrackedEntity {
	index := make(map[string]int, len(h.order))
	for i, id := range h.order {
		index[id] = i
	}
	isPinned := make(map[string]bool, len(h.pinned))
	for _, id := range h.pinned {
		isPinned[id] = true
	}

	result := make([]model.TrackedEntity, 0, len(h.order))
	add := func(id string) {
		e := h.entities[id]
		e.Pinned = isPinned[id]
		e.OrderIndex = index[id]
		result = append(result, e)
	}
	for _, id := range h.pinned {
		add(id)
	}
	for _, id := range h.order {
		if !isPinned[id] {
			add(id)
		}
	}
	return result
}

// byOrderLocked returns entities in display order, ignoring pins.
func (h *Host) byOrderLocked() []model.TrackedEntity {
	result := make([]model.TrackedEntity, 0, len(h.order))
	for i, id := range h.order {
		e := h.entities[id]
		e.OrderIndex = i
		result = append(result, e)
	}
	return result
}

// Entity returns one entity.
func (h *Host) Entity(entityID string) (model.TrackedEntity, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.entities[entityID]
	return e, ok
}

// Track registers an entity that has not been fetched yet.
func (h *Host) Track(entityID, displayName string) error {
	if entityID == "" {
		return ErrInvalidEntity
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.entities[entityID]; ok {
		return nil
	}
	h.entities[entityID] = model.TrackedEntity{ID: entityID, DisplayName: displayName}
	h.order = append(h.order, entityID)

	if err := h.saveEntitiesLocked(); err != nil {
		return err
	}
	if err := h.saveOrderLocked(); err != nil {
		return err
	}
	return h.announceLocked()
}

// BeginFetch takes the advisory lease for entityID. False means another
// fetch is already running and the caller should skip its own.
func (h *Host) BeginFetch(entityID string) (bool, error) {
	if entityID == "" {
		return false, ErrInvalidEntity
	}
	return h.refresh.TryBegin(entityID)
}

// IsFetching reports a live lease for entityID.
func (h *Host) IsFetching(entityID string) bool {
	return h.refresh.IsInProgress(entityID)
}

// CommitFetchResult is the sole write path for fetched values.
func (h *Host) CommitFetchResult(entityID string, value int, displayName string, at time.Time) error {
	if err := validateCommit(entityID, value); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	e, exists := h.entities[entityID]
	if !exists {
		e = model.TrackedEntity{ID: entityID}
		h.order = append(h.order, entityID)
		if err := h.saveOrderLocked(); err != nil {
			return err
		}
	}
	if displayName != "" {
		e.DisplayName = displayName
	}
	e.MetricValue = model.IntPtr(value)
	e.LastUpdated = model.TimePtr(at)
	h.entities[entityID] = e

	if err := h.saveEntitiesLocked(); err != nil {
		return err
	}
	if _, err := h.history.Append(entityID, value, at); err != nil {
		return fmt.Errorf("append history for %s: %w", entityID, err)
	}
	if err := reconcile.RecordFetch(h.deps.Shared, entityID, at); err != nil {
		return fmt.Errorf("record fetch for %s: %w", entityID, err)
	}
	if err := h.refresh.Complete(entityID, at); err != nil {
		return fmt.Errorf("complete refresh for %s: %w", entityID, err)
	}

	h.log.Info("fetch committed",
		util.Field{Key: "entity", Value: entityID},
		util.Field{Key: "value", Value: value},
		util.Field{Key: "new", Value: !exists})
	return h.announceLocked()
}

// Pin moves entityID to the end of the pin order.
func (h *Host) Pin(entityID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.entities[entityID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}
	for _, id := range h.pinned {
		if id == entityID {
			return nil
		}
	}
	h.pinned = append(h.pinned, entityID)
	if err := h.savePinsLocked(); err != nil {
		return err
	}
	return h.announceLocked()
}

// Unpin returns entityID to its display-order position.
func (h *Host) Unpin(entityID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.entities[entityID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}
	idx := indexOf(h.pinned, entityID)
	if idx < 0 {
		return nil
	}
	h.pinned = append(h.pinned[:idx], h.pinned[idx+1:]...)
	if err := h.savePinsLocked(); err != nil {
		return err
	}
	return h.announceLocked()
}

// Move places entityID at index of the display order.
func (h *Host) Move(entityID string, index int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	from := indexOf(h.order, entityID)
	if from < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}
	if index < 0 || index >= len(h.order) {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrInvalidIndex, index, len(h.order))
	}
	if from == index {
		return nil
	}

	order := append(h.order[:from:from], h.order[from+1:]...)
	order = append(order[:index], append([]string{entityID}, order[index:]...)...)
	h.order = order
	if err := h.saveOrderLocked(); err != nil {
		return err
	}
	return h.announceLocked()
}

// Remove stops tracking entityID and drops its history and markers.
func (h *Host) Remove(entityID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.entities[entityID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}
	delete(h.entities, entityID)
	if idx := indexOf(h.order, entityID); idx >= 0 {
		h.order = append(h.order[:idx], h.order[idx+1:]...)
	}
	if idx := indexOf(h.pinned, entityID); idx >= 0 {
		h.pinned = append(h.pinned[:idx], h.pinned[idx+1:]...)
	}

	if err := h.saveEntitiesLocked(); err != nil {
		return err
	}
	if err := h.saveOrderLocked(); err != nil {
		return err
	}
	if err := h.savePinsLocked(); err != nil {
		return err
	}
	if err := h.history.Forget(entityID); err != nil {
		return fmt.Errorf("drop history for %s: %w", entityID, err)
	}
	if err := h.refresh.Forget(entityID); err != nil {
		return fmt.Errorf("drop refresh marker for %s: %w", entityID, err)
	}
	if err := h.deps.Shared.Delete(store.FetchedAtKey(entityID)); err != nil {
		return fmt.Errorf("drop fetch time for %s: %w", entityID, err)
	}
	h.log.Info("entity removed", util.Field{Key: "entity", Value: entityID})
	return h.announceLocked()
}

// GetGrowth returns the metric delta over windowDays, or nil when the entity
// is unknown or was never fetched.
func (h *Host) GetGrowth(entityID string, windowDays int) *int {
	result, ok := h.GrowthDetail(entityID, windowDays)
	if !ok {
		return nil
	}
	return model.IntPtr(result.Delta)
}

// GrowthDetail is GetGrowth with the previous value and percentage.
func (h *Host) GrowthDetail(entityID string, windowDays int) (model.GrowthResult, bool) {
	e, ok := h.Entity(entityID)
	if !ok || !e.HasValue() {
		return model.GrowthResult{}, false
	}
	return h.growth.Growth(entityID, e.Value(), windowDays), true
}

// ImportHistory merges externally collected records. Growth derives from
// history, so peers are told when anything was added.
func (h *Host) ImportHistory(records []model.HistoryRecord) (int, error) {
	for _, r := range records {
		if err := validateCommit(r.EntityID, r.MetricValue); err != nil {
			return 0, err
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	n, err := h.history.ImportBatch(records)
	if err != nil || n == 0 {
		return n, err
	}
	return n, h.announceLocked()
}

// RecentChanges lists value changes recorded at or after since, newest first,
// with display names of entities still tracked.
func (h *Host) RecentChanges(since time.Time) []model.MetricChange {
	changes := h.history.Changes(since)

	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range changes {
		if e, ok := h.entities[changes[i].EntityID]; ok {
			changes[i].DisplayName = e.DisplayName
		}
	}
	return changes
}

// Projections builds the widget view from the current model.
func (h *Host) Projections() []model.WidgetProjection {
	return h.growth.Projections(h.ListEntities())
}

// Reconcile merges the peer-written projections into the model. Storage is
// only written when something changed; no signal is published, so two
// processes never ping-pong.
func (h *Host) Reconcile() (reconcile.Result, error) {
	var remote []model.WidgetProjection
	if !store.GetJSON(h.deps.Shared, store.KeyProjections, &remote, h.log) {
		remote = nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	result := reconcile.Reconcile(h.byOrderLocked(), remote, reconcile.StoreTimestamps{Store: h.deps.Shared, Log: h.log})
	if !result.Changed {
		return result, nil
	}

	for _, e := range result.Merged {
		e.OrderIndex = 0
		h.entities[e.ID] = e
	}
	if err := h.saveEntitiesLocked(); err != nil {
		return result, err
	}
	if err := h.saveProjectionsLocked(); err != nil {
		return result, err
	}
	h.log.Info("reconciled peer changes", util.Field{Key: "entities", Value: result.ChangedIDs})
	return result, nil
}

// RegenerateProjections rewrites the widget view without announcing it.
func (h *Host) RegenerateProjections() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.foldPeerFetchesLocked(); err != nil {
		return err
	}
	return h.saveProjectionsLocked()
}

// announceLocked regenerates projections, bumps the sync marker and signals peers.
func (h *Host) announceLocked() error {
	if err := h.foldPeerFetchesLocked(); err != nil {
		return err
	}
	if err := h.saveProjectionsLocked(); err != nil {
		return err
	}
	if _, err := notify.BumpSyncMarker(h.deps.Shared, h.deps.Clock, h.log); err != nil {
		return fmt.Errorf("bump sync marker: %w", err)
	}
	if h.deps.Notifier != nil {
		h.deps.Notifier.Publish(h.deps.Topic)
	}
	return nil
}

// foldPeerFetchesLocked adopts peer-fetched values that are still only in the
// stored projections, before those projections are rewritten from the model.
func (h *Host) foldPeerFetchesLocked() error {
	var stored []model.WidgetProjection
	if !store.GetJSON(h.deps.Shared, store.KeyProjections, &stored, h.log) {
		return nil
	}

	result := reconcile.FoldConfirmed(h.byOrderLocked(), stored, reconcile.StoreTimestamps{Store: h.deps.Shared, Log: h.log})
	if !result.Changed {
		return nil
	}
	for _, e := range result.Merged {
		e.OrderIndex = 0
		h.entities[e.ID] = e
	}
	h.log.Info("kept peer fetches before rewriting projections", util.Field{Key: "entities", Value: result.ChangedIDs})
	return h.saveEntitiesLocked()
}

func (h *Host) saveEntitiesLocked() error {
	entities := h.byOrderLocked()
	for i := range entities {
		entities[i].OrderIndex = 0
	}
	if err := store.SetJSON(h.deps.Shared, store.KeyEntities, entities, h.deps.Durable); err != nil {
		return fmt.Errorf("save entities: %w", err)
	}
	return nil
}

func (h *Host) saveOrderLocked() error {
	if err := store.SetJSON(h.deps.Shared, store.KeyDisplayOrder, h.order, h.deps.Durable); err != nil {
		return fmt.Errorf("save display order: %w", err)
	}
	return nil
}

func (h *Host) savePinsLocked() error {
	if err := store.SetJSON(h.deps.Shared, store.KeyPinnedIDs, h.pinned, h.deps.Durable); err != nil {
		return fmt.Errorf("save pins: %w", err)
	}
	return nil
}

func (h *Host) saveProjectionsLocked() error {
	projections := h.growth.Projections(h.listLocked())
	if err := store.SetJSON(h.deps.Shared, store.KeyProjections, projections, false); err != nil {
		return fmt.Errorf("save projections: %w", err)
	}
	return nil
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
