package vault

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileSystemVault keeps snapshots as files in a single directory:
//
//	<root>/
//	  <instance>-<timestamp>.db       plain snapshots
//	  <instance>-<timestamp>.db.age   encrypted snapshots
type FileSystemVault struct {
	root string
}

// NewFileSystemVault creates a vault rooted at root, creating the directory if needed.
func NewFileSystemVault(root string) (*FileSystemVault, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &FileSystemVault{root: root}, nil
}

func (v *FileSystemVault) Put(name string, r io.Reader) (int64, error) {
	if err := validName(name); err != nil {
		return 0, err
	}
	destPath := filepath.Join(v.root, name)
	if _, err := os.Stat(destPath); err == nil {
		return 0, fmt.Errorf("snapshot %s already exists", name)
	}
	return v.writeFile(destPath, r)
}

func (v *FileSystemVault) Get(name string, w io.Writer) error {
	if err := validName(name); err != nil {
		return err
	}
	f, err := os.Open(filepath.Join(v.root, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	return nil
}

func (v *FileSystemVault) List(prefix string) ([]Snapshot, error) {
	entries, err := os.ReadDir(v.root)
	if err != nil {
		return nil, fmt.Errorf("listing backup directory: %w", err)
	}

	var snaps []Snapshot
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, tmpPrefix) || !strings.HasPrefix(name, prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		snaps = append(snaps, Snapshot{Name: name, Size: info.Size(), CreatedAt: info.ModTime().UTC()})
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Name < snaps[j].Name })
	return snaps, nil
}

func (v *FileSystemVault) Delete(name string) error {
	if err := validName(name); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(v.root, name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	return nil
}

func (v *FileSystemVault) Location(name string) string {
	return filepath.Join(v.root, name)
}

// writeFile writes r to destPath through a temp file in the same directory and
// hard-links it into place, so a crashed write never leaves a partial snapshot
// and a concurrent writer of the same name can never be overwritten.
func (v *FileSystemVault) writeFile(destPath string, r io.Reader) (int64, error) {
	tmpFile, err := os.CreateTemp(v.root, tmpPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return 0, fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return 0, fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Link(tmpPath, destPath); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return 0, fmt.Errorf("snapshot %s already exists", filepath.Base(destPath))
		}
		return 0, fmt.Errorf("failed to link snapshot into place: %w", err)
	}
	return written, nil
}

var _ Vault = (*FileSystemVault)(nil)
