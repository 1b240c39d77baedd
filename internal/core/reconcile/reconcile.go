// Package reconcile merges peer-written widget projections into the local
// entity model. Only the metric value and its timestamp are ever taken from a
// projection; identity, name, pin state and order stay local.
package reconcile

import (
	"time"

	"github.com/penwyp/go-scholar-sync/internal/core/model"
	"github.com/penwyp/go-scholar-sync/internal/data/store"
	"github.com/penwyp/go-scholar-sync/internal/util"
)

// Timestamps supplies the first two links of the precedence chain.
type Timestamps interface {
	// EntityTimestamp is the time of the last confirmed fetch of entityID.
	EntityTimestamp(entityID string) (time.Time, bool)
	// MarkerTimestamp is the time of the last global sync marker bump.
	MarkerTimestamp() (time.Time, bool)
}

// Result is the outcome of one reconciliation pass.
type Result struct {
	Merged     []model.TrackedEntity
	Changed    bool
	ChangedIDs []string
}

// Reconcile is pure: it never touches storage and never mutates local.
// When a projection's value or resolved timestamp differs from the local
// entity, the projection wins.
func Reconcile(local []model.TrackedEntity, remote []model.WidgetProjection, ts Timestamps) Result {
	if ts == nil {
		ts = NoTimestamps{}
	}

	byID := make(map[string]model.WidgetProjection, len(remote))
	for _, p := range remote {
		byID[p.EntityID] = p
	}

	result := Result{Merged: make([]model.TrackedEntity, len(local))}
	for i, e := range local {
		merged := clone(e)
		result.Merged[i] = merged

		p, ok := byID[e.ID]
		if !ok || p.MetricValue == nil {
			continue
		}

		at := candidateTime(e.ID, p, ts)
		if model.SameValue(merged.MetricValue, p.MetricValue) && model.SameInstant(merged.LastUpdated, at) {
			continue
		}

		merged.MetricValue = model.IntPtr(*p.MetricValue)
		if at != nil {
			merged.LastUpdated = model.TimePtr(*at)
		} else {
			merged.LastUpdated = nil
		}
		result.Merged[i] = merged
		result.Changed = true
		result.ChangedIDs = append(result.ChangedIDs, e.ID)
	}
	return result
}

func candidateTime(entityID string, p model.WidgetProjection, ts Timestamps) *time.Time {
	if at, ok := ts.EntityTimestamp(entityID); ok {
		return &at
	}
	if at, ok := ts.MarkerTimestamp(); ok {
		return &at
	}
	if p.LastUpdated != nil {
		return model.TimePtr(*p.LastUpdated)
	}
	return nil
}

func clone(e model.TrackedEntity) model.TrackedEntity {
	out := e
	if e.MetricValue != nil {
		out.MetricValue = model.IntPtr(*e.MetricValue)
	}
	if e.LastUpdated != nil {
		out.LastUpdated = model.TimePtr(*e.LastUpdated)
	}
	return out
}

// NoTimestamps falls straight through to the projection's own timestamp.
type NoTimestamps struct{}

func (NoTimestamps) EntityTimestamp(string) (time.Time, bool) { return time.Time{}, false }
func (NoTimestamps) MarkerTimestamp() (time.Time, bool)       { return time.Time{}, false }

// StoreTimestamps reads per-entity fetch times and the sync marker from a store.
type StoreTimestamps struct {
	Store store.Store
	Log   util.LoggerInterface
}

func (s StoreTimestamps) EntityTimestamp(entityID string) (time.Time, bool) {
	var at time.Time
	if !store.GetJSON(s.Store, store.FetchedAtKey(entityID), &at, s.Log) || at.IsZero() {
		return time.Time{}, false
	}
	return at, true
}

func (s StoreTimestamps) MarkerTimestamp() (time.Time, bool) {
	var m model.SyncMarker
	if !store.GetJSON(s.Store, store.KeySyncMarker, &m, s.Log) || m.UpdatedAt.IsZero() {
		return time.Time{}, false
	}
	return m.UpdatedAt, true
}

// RecordFetch stores the authoritative timestamp of a confirmed fetch.
func RecordFetch(s store.Store, entityID string, at time.Time) error {
	return store.SetJSON(s, store.FetchedAtKey(entityID), at, false)
}

// SeedFetchTimes records fetched_at/<id> from LastUpdated for every valued
// entity that has no fetch time yet, so the per-entity tier of the precedence
// chain applies to data that predates it. Existing fetch times are kept.
func SeedFetchTimes(s store.Store, entities []model.TrackedEntity, log util.LoggerInterface) (int, error) {
	ts := StoreTimestamps{Store: s, Log: log}
	seeded := 0
	for _, e := range entities {
		if e.ID == "" || e.MetricValue == nil || e.LastUpdated == nil {
			continue
		}
		if _, ok := ts.EntityTimestamp(e.ID); ok {
			continue
		}
		if err := RecordFetch(s, e.ID, *e.LastUpdated); err != nil {
			return seeded, err
		}
		seeded++
	}
	return seeded, nil
}

// FoldConfirmed takes from remote only the values backed by a confirmed fetch
// that is newer than the local value: the projection must carry the time
// recorded in fetched_at/<id>, and that time must be after the local
// LastUpdated. Run it before overwriting projections so a peer's fetch that
// has not been reconciled yet survives the rewrite.
func FoldConfirmed(local []model.TrackedEntity, remote []model.WidgetProjection, ts Timestamps) Result {
	if ts == nil {
		ts = NoTimestamps{}
	}

	byID := make(map[string]model.WidgetProjection, len(remote))
	for _, p := range remote {
		byID[p.EntityID] = p
	}

	result := Result{Merged: make([]model.TrackedEntity, len(local))}
	for i, e := range local {
		merged := clone(e)
		result.Merged[i] = merged

		p, ok := byID[e.ID]
		if !ok || p.MetricValue == nil || p.LastUpdated == nil {
			continue
		}
		fetched, ok := ts.EntityTimestamp(e.ID)
		if !ok || p.LastUpdated.Before(fetched) {
			continue
		}
		if merged.LastUpdated != nil && !fetched.After(*merged.LastUpdated) {
			continue
		}

		merged.MetricValue = model.IntPtr(*p.MetricValue)
		merged.LastUpdated = model.TimePtr(fetched)
		result.Merged[i] = merged
		result.Changed = true
		result.ChangedIDs = append(result.ChangedIDs, e.ID)
	}
	return result
}
