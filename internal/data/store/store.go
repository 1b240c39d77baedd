// Package store is the key/value medium shared by the host and companion
// processes. Every key is last-writer-wins on its own; there is no atomicity
// across keys.
package store

import (
	"errors"
	"net/url"
	"strings"
)

// Store is the shared key/value contract.
type Store interface {
	// Get returns the stored bytes, or false when the key is absent or unreadable.
	Get(key string) ([]byte, bool)
	// Set replaces the value of key. durable asks the backend to flush to stable storage.
	Set(key string, value []byte, durable bool) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
	// Close releases backend resources.
	Close() error
}

var (
	ErrClosed     = errors.New("store closed")
	ErrInvalidKey = errors.New("invalid key")
)

// Persisted key names.
const (
	KeyEntities        = "entities"
	KeyHistory         = "history"
	KeyDisplayOrder    = "display_order"
	KeyPinnedIDs       = "pinned_ids"
	KeyProjections     = "projections"
	KeySyncMarker      = "sync_marker"
	KeyMigrated        = "migrated"
	KeyCompanionSeen   = "companion/last_seen"
	refreshKeyPrefix   = "refresh/"
	fetchedAtKeyPrefix = "fetched_at/"
)

// RefreshKey is the key of one entity's refresh marker.
func RefreshKey(entityID string) string {
	return refreshKeyPrefix + entityID
}

// FetchedAtKey is the key of the authoritative timestamp of one entity's last confirmed fetch.
func FetchedAtKey(entityID string) string {
	return fetchedAtKeyPrefix + entityID
}

// DataKeys are the keys that hold entity or history data.
var DataKeys = []string{KeyEntities, KeyHistory, KeyDisplayOrder, KeyPinnedIDs}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	return nil
}

// fileName maps a key onto a single path element.
func fileName(key string) string {
	return url.PathEscape(key) + blobExt
}

// keyFromFileName reverses fileName.
func keyFromFileName(name string) (string, bool) {
	if !strings.HasSuffix(name, blobExt) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimSuffix(name, blobExt))
	if err != nil {
		return "", false
	}
	return key, true
}
