// Package vault keeps ledger backup snapshots.
package vault

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ErrNotFound is returned when a named snapshot does not exist.
var ErrNotFound = errors.New("snapshot not found")

// tmpPrefix marks in-flight writes; such names are never listed.
const tmpPrefix = ".tmp-"

// Snapshot describes a stored backup.
type Snapshot struct {
	Name      string
	Size      int64
	CreatedAt time.Time
}

// Vault stores backup snapshots by flat name. Names carry a sortable
// timestamp, so lexical order is chronological order.
type Vault interface {
	// Put stores the contents of r under name, replacing nothing: an existing
	// name is an error. It returns the number of bytes stored.
	Put(name string, r io.Reader) (int64, error)
	// Get writes the named snapshot to w.
	Get(name string, w io.Writer) error
	// List returns the snapshots whose names start with prefix, ordered by name.
	List(prefix string) ([]Snapshot, error)
	// Delete removes the named snapshot.
	Delete(name string) error
	// Location describes where the named snapshot lives, for display.
	Location(name string) string
}

func validName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("invalid snapshot name %q", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("snapshot name %q must not contain a path separator", name)
	case strings.HasPrefix(name, tmpPrefix):
		return fmt.Errorf("snapshot name %q uses a reserved prefix", name)
	}
	return nil
}

// Prune deletes the oldest snapshots starting with prefix until at most keep
// remain. keep <= 0 keeps everything. It returns the names it deleted.
func Prune(v Vault, prefix string, keep int) ([]string, error) {
	if keep <= 0 {
		return nil, nil
	}
	snaps, err := v.List(prefix)
	if err != nil {
		return nil, err
	}
	if len(snaps) <= keep {
		return nil, nil
	}

	var deleted []string
	for _, s := range snaps[:len(snaps)-keep] {
		if err := v.Delete(s.Name); err != nil {
			return deleted, fmt.Errorf("pruning %s: %w", s.Name, err)
		}
		deleted = append(deleted, s.Name)
	}
	return deleted, nil
}
