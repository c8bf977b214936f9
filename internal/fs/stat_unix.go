//go:build unix

package fs

import (
	"fmt"
	"io/fs"
	"syscall"
)

// fileID returns the inode number, which stays stable across renames and edits.
func fileID(info fs.FileInfo) (int64, error) {
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, fmt.Errorf("cannot extract file id: expected *syscall.Stat_t, got %T", info.Sys())
	}
	return int64(stat.Ino), nil
}
