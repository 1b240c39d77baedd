// Package history keeps the append-only, deduplicated per-entity time series
// of metric snapshots. It is observational: current values never come from it.
package history

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/penwyp/go-scholar-sync/internal/core/constants"
	"github.com/penwyp/go-scholar-sync/internal/core/model"
	"github.com/penwyp/go-scholar-sync/internal/data/store"
	"github.com/penwyp/go-scholar-sync/internal/util"
)

// Log is the HistoryLog over a shared store. All records live in one blob
// keyed by entity id, each series sorted ascending by timestamp.
type Log struct {
	store store.Store
	clock util.Clock
	log   util.LoggerInterface
	mu    sync.Mutex
}

// ErrInvalidRecord rejects records without an entity id.
var ErrInvalidRecord = errors.New("history record has no entity id")

type series map[string][]model.HistoryRecord

func NewLog(s store.Store, clock util.Clock, log util.LoggerInterface) *Log {
	return &Log{
		store: s,
		clock: clock,
		log:   util.Component(log, "history"),
	}
}

func (l *Log) load() series {
	data := make(series)
	if !store.GetJSON(l.store, store.KeyHistory, &data, l.log) {
		return make(series)
	}
	return data
}

func (l *Log) save(data series) error {
	return store.SetJSON(l.store, store.KeyHistory, data, false)
}

// Append stores a new record unless the most recent record for the entity in
// the preceding 24 hours already carries the same value. It reports whether a
// record was added.
func (l *Log) Append(entityID string, value int, ts time.Time) (bool, error) {
	if entityID == "" {
		return false, ErrInvalidRecord
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	data := l.load()
	records := data[entityID]

	if prev, ok := latestAtOrBefore(records, ts); ok &&
		!prev.Timestamp.Before(ts.Add(-constants.HistoryDedupWindow)) &&
		prev.MetricValue == value {
		l.log.Debug("duplicate snapshot suppressed",
			util.Field{Key: "entity", Value: entityID},
			util.Field{Key: "value", Value: value})
		return false, nil
	}

	data[entityID] = insertSorted(records, model.HistoryRecord{
		EntityID:    entityID,
		MetricValue: value,
		Timestamp:   ts,
	})
	if err := l.save(data); err != nil {
		return false, err
	}
	return true, nil
}

// Query returns the records of entityID with from <= timestamp <= to, ascending.
func (l *Log) Query(entityID string, from, to time.Time) []model.HistoryRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	records := l.load()[entityID]
	result := make([]model.HistoryRecord, 0)
	for _, r := range records {
		if r.Timestamp.Before(from) {
			continue
		}
		if r.Timestamp.After(to) {
			break
		}
		result = append(result, r)
	}
	return result
}

// ImportBatch adds records that have no existing record for the same entity
// within the import tolerance. Earlier records of the same batch count as
// existing. It returns how many were added.
func (l *Log) ImportBatch(records []model.HistoryRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	data := l.load()
	imported := 0
	for _, r := range records {
		if r.EntityID == "" {
			continue
		}
		existing := data[r.EntityID]
		if hasNear(existing, r.Timestamp, constants.ImportDedupTolerance) {
			continue
		}
		data[r.EntityID] = insertSorted(existing, r)
		imported++
	}

	if imported == 0 {
		return 0, nil
	}
	if err := l.save(data); err != nil {
		return 0, err
	}
	l.log.Info("history imported",
		util.Field{Key: "imported", Value: imported},
		util.Field{Key: "skipped", Value: len(records) - imported})
	return imported, nil
}

// Latest returns the newest record of entityID.
func (l *Log) Latest(entityID string) (model.HistoryRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records := l.load()[entityID]
	if len(records) == 0 {
		return model.HistoryRecord{}, false
	}
	return records[len(records)-1], true
}

// Count returns the total number of records across all entities.
func (l *Log) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := 0
	for _, records := range l.load() {
		total += len(records)
	}
	return total
}

// All returns every record, grouped by entity id and ascending in time.
func (l *Log) All() []model.HistoryRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	data := l.load()
	ids := make([]string, 0, len(data))
	total := 0
	for id, records := range data {
		ids = append(ids, id)
		total += len(records)
	}
	sort.Strings(ids)

	result := make([]model.HistoryRecord, 0, total)
	for _, id := range ids {
		result = append(result, data[id]...)
	}
	return result
}

// Changes pairs consecutive records at or after since and returns the pairs
// whose value moved, newest first. The first record in the window has no
// predecessor and only serves as the baseline.
func (l *Log) Changes(since time.Time) []model.MetricChange {
	l.mu.Lock()
	data := l.load()
	l.mu.Unlock()

	var changes []model.MetricChange
	for id, records := range data {
		idx := sort.Search(len(records), func(i int) bool {
			return !records[i].Timestamp.Before(since)
		})
		window := records[idx:]
		for i := 1; i < len(window); i++ {
			prev, cur := window[i-1], window[i]
			if cur.MetricValue == prev.MetricValue {
				continue
			}
			changes = append(changes, model.MetricChange{
				EntityID: id,
				OldValue: prev.MetricValue,
				NewValue: cur.MetricValue,
				Delta:    cur.MetricValue - prev.MetricValue,
				At:       cur.Timestamp,
			})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		if !changes[i].At.Equal(changes[j].At) {
			return changes[i].At.After(changes[j].At)
		}
		return changes[i].EntityID < changes[j].EntityID
	})
	return changes
}

// Prune drops records older than before and returns how many were removed.
func (l *Log) Prune(before time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data := l.load()
	removed := 0
	for id, records := range data {
		idx := sort.Search(len(records), func(i int) bool {
			return !records[i].Timestamp.Before(before)
		})
		if idx == 0 {
			continue
		}
		removed += idx
		if idx == len(records) {
			delete(data, id)
			continue
		}
		data[id] = append([]model.HistoryRecord(nil), records[idx:]...)
	}

	if removed == 0 {
		return 0, nil
	}
	if err := l.save(data); err != nil {
		return 0, err
	}
	l.log.Info("history pruned", util.Field{Key: "removed", Value: removed})
	return removed, nil
}

// PruneExpired applies the default retention span relative to the clock.
func (l *Log) PruneExpired() (int, error) {
	return l.Prune(l.clock.Now().Add(-constants.HistoryRetentionSpan))
}

// Forget drops every record of entityID.
func (l *Log) Forget(entityID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data := l.load()
	if _, ok := data[entityID]; !ok {
		return nil
	}
	delete(data, entityID)
	return l.save(data)
}

func latestAtOrBefore(records []model.HistoryRecord, ts time.Time) (model.HistoryRecord, bool) {
	idx := sort.Search(len(records), func(i int) bool {
		return records[i].Timestamp.After(ts)
	})
	if idx == 0 {
		return model.HistoryRecord{}, false
	}
	return records[idx-1], true
}

func hasNear(records []model.HistoryRecord, ts time.Time, tolerance time.Duration) bool {
	for _, r := range records {
		d := r.Timestamp.Sub(ts)
		if d < 0 {
			d = -d
		}
		if d <= tolerance {
			return true
		}
	}
	return false
}

// insertSorted keeps equal timestamps in insertion order.
func insertSorted(records []model.HistoryRecord, r model.HistoryRecord) []model.HistoryRecord {
	idx := sort.Search(len(records), func(i int) bool {
		return records[i].Timestamp.After(r.Timestamp)
	})
	records = append(records, model.HistoryRecord{})
	copy(records[idx+1:], records[idx:])
	records[idx] = r
	return records
}
