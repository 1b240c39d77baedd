package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/penwyp/go-scholar-sync/internal/util"
	"golang.org/x/sys/unix"
)

const (
	blobExt = ".blob"
	tempExt = ".tmp"
)

// cachedBlob is valid while the file's util.FileInfo is unchanged. Every Set
// renames a fresh temp file into place, so the inode changes on every write
// from any process.
type cachedBlob struct {
	stamp util.FileInfo
	data  []byte
}

// FileStore keeps one file per key in a directory visible to every process.
// Reads are served from memory while the file on disk is unchanged.
type FileStore struct {
	baseDir     string
	log         util.LoggerInterface
	mu          sync.RWMutex
	memoryCache map[string]cachedBlob
	closed      bool
}

// NewFileStore opens (creating if needed) a shared directory and verifies it is writable.
func NewFileStore(baseDir string, log util.LoggerInterface) (*FileStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("shared directory not configured")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	check, err := os.CreateTemp(baseDir, ".writable-*")
	if err != nil {
		return nil, fmt.Errorf("shared directory not writable: %w", err)
	}
	check.Close()
	os.Remove(check.Name())

	return &FileStore{
		baseDir:     baseDir,
		log:         util.Component(log, "file-store"),
		memoryCache: make(map[string]cachedBlob),
	}, nil
}

// Dir returns the shared directory.
func (s *FileStore) Dir() string {
	return s.baseDir
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.baseDir, fileName(key))
}

func (s *FileStore) Get(key string) ([]byte, bool) {
	if validateKey(key) != nil {
		return nil, false
	}
	path := s.path(key)

	stamp, err := util.GetFileInfo(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Debug("stat failed", util.Field{Key: "key", Value: key}, util.Field{Key: "error", Value: err})
		}
		s.mu.Lock()
		delete(s.memoryCache, key)
		s.mu.Unlock()
		return nil, false
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, false
	}
	cached, ok := s.memoryCache[key]
	s.mu.RUnlock()
	if ok && cached.stamp == stamp {
		return cloneBytes(cached.data), true
	}

	data, err := os.ReadFile(path)
	if err != nil {
		s.log.Debug("read failed", util.Field{Key: "key", Value: key}, util.Field{Key: "error", Value: err})
		return nil, false
	}

	// Stamp again: another process may have replaced the file between stat and read.
	if after, err := util.GetFileInfo(path); err == nil && after == stamp {
		s.mu.Lock()
		s.memoryCache[key] = cachedBlob{stamp: stamp, data: cloneBytes(data)}
		s.mu.Unlock()
	}
	return data, true
}

func (s *FileStore) Set(key string, value []byte, durable bool) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	target := s.path(key)

	// Write to temp file first, then rename (atomic per key)
	tmp, err := os.CreateTemp(s.baseDir, fileName(key)+"-*"+tempExt)
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", key, err)
	}
	tempPath := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tempPath)
		return fmt.Errorf("write %s: %w", key, err)
	}
	if durable {
		if err := unix.Fsync(int(tmp.Fd())); err != nil {
			tmp.Close()
			os.Remove(tempPath)
			return fmt.Errorf("fsync %s: %w", key, err)
		}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("close %s: %w", key, err)
	}

	if err := os.Rename(tempPath, target); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename %s: %w", key, err)
	}

	if durable {
		if err := syncDir(s.baseDir); err != nil {
			s.log.Warn("directory fsync failed", util.Field{Key: "error", Value: err})
		}
	}

	if stamp, err := util.GetFileInfo(target); err == nil {
		s.memoryCache[key] = cachedBlob{stamp: stamp, data: cloneBytes(value)}
	} else {
		delete(s.memoryCache, key)
	}
	return nil
}

func syncDir(dir string) error {
	fd, err := unix.Open(dir, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	return unix.Fsync(fd)
}

func (s *FileStore) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	delete(s.memoryCache, key)
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Keys lists every key currently on disk.
func (s *FileStore) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), tempExt) {
			continue
		}
		if key, ok := keyFromFileName(entry.Name()); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// CleanTemp removes temp files older than olderThan, abandoned by a crashed writer.
func (s *FileStore) CleanTemp(olderThan time.Duration) int {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), tempExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil || time.Since(info.ModTime()) < olderThan {
			continue
		}
		if os.Remove(filepath.Join(s.baseDir, entry.Name())) == nil {
			removed++
		}
	}
	if removed > 0 {
		s.log.Info(fmt.Sprintf("Removed %d abandoned temp files", removed))
	}
	return removed
}

// GetCacheStats reports how many blobs are memoized.
func (s *FileStore) GetCacheStats() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.memoryCache)
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.memoryCache = make(map[string]cachedBlob)
	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
