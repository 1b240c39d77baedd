package store

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFileStore(t *testing.T) {
	tempDir := filepath.Join(t.TempDir(), "shared")

	s, err := NewFileStore(tempDir, nil)

	require.NoError(t, err)
	assert.NotNil(t, s)
	assert.Equal(t, tempDir, s.Dir())

	info, err := os.Stat(tempDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewFileStoreInvalidDirectory(t *testing.T) {
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "file.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("content"), 0644))

	s, err := NewFileStore(filepath.Join(filePath, "subdir"), nil)

	assert.Error(t, err)
	assert.Nil(t, s)
}

func TestNewFileStoreEmptyDirectory(t *testing.T) {
	s, err := NewFileStore("", nil)
	assert.Error(t, err)
	assert.Nil(t, s)
}

func TestFileNameRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{name: "plain", key: "entities"},
		{name: "with slash", key: "refresh/scholar-1"},
		{name: "with spaces", key: "fetched_at/Ada Lovelace"},
		{name: "unicode", key: "refresh/学者"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name := fileName(tt.key)
			assert.NotContains(t, name, "/")
			key, ok := keyFromFileName(name)
			require.True(t, ok)
			assert.Equal(t, tt.key, key)
		})
	}

	_, ok := keyFromFileName("entities.tmp")
	assert.False(t, ok)
}

func TestFileStoreSetAndGet(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, s.Set("refresh/A", []byte(`{"state":"idle"}`), false))

	data, ok := s.Get("refresh/A")
	require.True(t, ok)
	assert.Equal(t, `{"state":"idle"}`, string(data))

	_, err = os.Stat(filepath.Join(s.Dir(), fileName("refresh/A")))
	require.NoError(t, err)
}

func TestFileStoreDurableSet(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, s.Set("entities", []byte("[]"), true))
	data, ok := s.Get("entities")
	require.True(t, ok)
	assert.Equal(t, "[]", string(data))
}

func TestFileStoreGetNonExistent(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	data, ok := s.Get("missing")
	assert.False(t, ok)
	assert.Nil(t, data)

	_, ok = s.Get("")
	assert.False(t, ok)
}

func TestFileStoreRejectsEmptyKey(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Set(" ", []byte("x"), false), ErrInvalidKey)
	assert.ErrorIs(t, s.Delete(""), ErrInvalidKey)
}

func TestFileStoreSeesOtherWriter(t *testing.T) {
	dir := t.TempDir()
	host, err := NewFileStore(dir, nil)
	require.NoError(t, err)
	companion, err := NewFileStore(dir, nil)
	require.NoError(t, err)

	require.NoError(t, host.Set("sync_marker", []byte("1"), false))
	data, ok := companion.Get("sync_marker")
	require.True(t, ok)
	assert.Equal(t, "1", string(data))

	// Companion overwrites; host's memoized copy must be invalidated.
	require.NoError(t, companion.Set("sync_marker", []byte("2"), false))
	data, ok = host.Get("sync_marker")
	require.True(t, ok)
	assert.Equal(t, "2", string(data))

	require.NoError(t, companion.Delete("sync_marker"))
	_, ok = host.Get("sync_marker")
	assert.False(t, ok)
}

func TestFileStoreMemoryCache(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, s.Set("entities", []byte("[1]"), false))
	assert.Equal(t, 1, s.GetCacheStats())

	data, ok := s.Get("entities")
	require.True(t, ok)
	data[0] = 'X'

	again, ok := s.Get("entities")
	require.True(t, ok)
	assert.Equal(t, "[1]", string(again), "callers must not be able to mutate the cache")
}

func TestFileStoreSeesInPlaceRewriteWithinSecond(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Set("sync_marker", []byte("1"), false))
	path := s.path("sync_marker")
	require.NoError(t, os.Chtimes(path, base, base))
	data, ok := s.Get("sync_marker")
	require.True(t, ok)
	assert.Equal(t, "1", string(data))

	// Same inode and size, mtime differs only below the second.
	require.NoError(t, os.WriteFile(path, []byte("2"), 0644))
	later := base.Add(300 * time.Millisecond)
	require.NoError(t, os.Chtimes(path, later, later))

	data, ok = s.Get("sync_marker")
	require.True(t, ok)
	assert.Equal(t, "2", string(data))
}

func TestFileStoreDelete(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, s.Set("migrated", []byte("true"), false))
	require.NoError(t, s.Delete("migrated"))
	require.NoError(t, s.Delete("migrated"))

	_, ok := s.Get("migrated")
	assert.False(t, ok)
}

func TestFileStoreKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, s.Set("entities", []byte("[]"), false))
	require.NoError(t, s.Set("refresh/A", []byte("{}"), false))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "stray.blob-1.tmp"), []byte("x"), 0644))

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"entities", "refresh/A"}, keys)
}

func TestFileStoreCleanTemp(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	stale := filepath.Join(s.Dir(), "entities.blob-1.tmp")
	fresh := filepath.Join(s.Dir(), "entities.blob-2.tmp")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0644))
	require.NoError(t, os.WriteFile(fresh, []byte("x"), 0644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	assert.Equal(t, 1, s.CleanTemp(time.Minute))
	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestFileStoreClosed(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, s.Set("entities", []byte("[]"), false))
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Set("entities", []byte("[]"), false), ErrClosed)
	_, ok := s.Get("entities")
	assert.False(t, ok)
}

func TestFileStoreConcurrentWriters(t *testing.T) {
	dir := t.TempDir()
	a, err := NewFileStore(dir, nil)
	require.NoError(t, err)
	b, err := NewFileStore(dir, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, a.Set("projections", []byte(`"from-a"`), false))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, b.Set("projections", []byte(`"from-b"`), false))
		}()
	}
	wg.Wait()

	// Last writer wins; the value is always one complete write.
	data, ok := a.Get("projections")
	require.True(t, ok)
	assert.Contains(t, []string{`"from-a"`, `"from-b"`}, string(data))
}
