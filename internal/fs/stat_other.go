//go:build !unix

package fs

import (
	"errors"
	"io/fs"
)

func fileID(fs.FileInfo) (int64, error) {
	return 0, errors.New("file ids require a unix filesystem")
}
