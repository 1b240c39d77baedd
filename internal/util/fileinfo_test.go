package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetFileInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	info, err := GetFileInfo(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size)
	assert.NotZero(t, info.Inode)

	again, err := GetFileInfo(path)
	require.NoError(t, err)
	assert.Equal(t, info, again)
}

func TestGetFileInfoSeesSubSecondRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(path, []byte("aaaa"), 0644))
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, base, base))
	before, err := GetFileInfo(path)
	require.NoError(t, err)

	// Same size, same inode, same second: only the nanoseconds differ.
	require.NoError(t, os.WriteFile(path, []byte("bbbb"), 0644))
	later := base.Add(500 * time.Millisecond)
	require.NoError(t, os.Chtimes(path, later, later))
	after, err := GetFileInfo(path)
	require.NoError(t, err)

	assert.Equal(t, before.Inode, after.Inode)
	assert.Equal(t, before.Size, after.Size)
	assert.NotEqual(t, before, after)
}

func TestGetFileInfoReplacedByRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob")
	require.NoError(t, os.WriteFile(path, []byte("aaaa"), 0644))
	before, err := GetFileInfo(path)
	require.NoError(t, err)

	tmp := filepath.Join(dir, "blob.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("bbbb"), 0644))
	require.NoError(t, os.Rename(tmp, path))
	after, err := GetFileInfo(path)
	require.NoError(t, err)

	assert.NotEqual(t, before.Inode, after.Inode)
}

func TestGetFileInfoMissing(t *testing.T) {
	_, err := GetFileInfo(filepath.Join(t.TempDir(), "absent"))
	assert.True(t, os.IsNotExist(err))
}
