package notify

import (
	"github.com/penwyp/go-scholar-sync/internal/core/model"
	"github.com/penwyp/go-scholar-sync/internal/data/store"
	"github.com/penwyp/go-scholar-sync/internal/util"
)

// ReadSyncMarker returns the stored global sync marker, or the zero marker.
func ReadSyncMarker(s store.Store, log util.LoggerInterface) model.SyncMarker {
	var m model.SyncMarker
	if !store.GetJSON(s, store.KeySyncMarker, &m, log) {
		return model.SyncMarker{}
	}
	return m
}

// BumpSyncMarker advances the global sync marker. Concurrent bumps from two
// processes may collapse into one version; UpdatedAt still changes.
func BumpSyncMarker(s store.Store, clock util.Clock, log util.LoggerInterface) (model.SyncMarker, error) {
	m := ReadSyncMarker(s, log)
	m.Version++
	m.UpdatedAt = clock.Now()
	if err := store.SetJSON(s, store.KeySyncMarker, m, false); err != nil {
		return model.SyncMarker{}, err
	}
	return m, nil
}

// SameMarker compares two markers by version and timestamp.
func SameMarker(a, b model.SyncMarker) bool {
	return a.Version == b.Version && a.UpdatedAt.Equal(b.UpdatedAt)
}
