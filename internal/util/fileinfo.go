package util

import (
	"fmt"
	"os"
	"syscall"
)

// FileInfo identifies one version of a file. Two stats of the same path
// compare equal only if nothing replaced or rewrote it in between.
type FileInfo struct {
	ModTime int64  // Modification time in nanoseconds since the epoch
	Size    int64  // File size in bytes
	Inode   uint64 // Changes whenever the path is replaced by a rename
}

// GetFileInfo stats filepath, including its inode. Supported on Linux and macOS.
// Errors from os.Stat are returned unwrapped so os.IsNotExist still applies.
func GetFileInfo(filepath string) (FileInfo, error) {
	stat, err := os.Stat(filepath)
	if err != nil {
		return FileInfo{}, err
	}

	sysStat, ok := stat.Sys().(*syscall.Stat_t)
	if !ok {
		return FileInfo{}, fmt.Errorf("failed to get file system information: %s", filepath)
	}

	return FileInfo{
		ModTime: stat.ModTime().UnixNano(),
		Size:    stat.Size(),
		Inode:   uint64(sysStat.Ino),
	}, nil
}
