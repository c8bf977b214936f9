package tracker

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned by a NodeResolver when the node does not exist for the user.
// It is an expected outcome (for example a delete racing an edit) and never fatal.
var ErrNotFound = errors.New("node not found")

// Node is a resolved file or directory owned by a user.
// Nodes are created by NodeResolver implementations, which validate that the
// node exists and capture its stable, filesystem-assigned identifier.
type Node struct {
	ID      int64
	UserID  string
	Path    string // relative to the user's root, always starting with "/"
	IsDir   bool
	Size    int64
	ModTime time.Time
}

// Name returns the last element of the node's path.
func (n *Node) Name() string {
	for i := len(n.Path) - 1; i >= 0; i-- {
		if n.Path[i] == '/' {
			return n.Path[i+1:]
		}
	}
	return n.Path
}

// NodeResolver turns user-relative paths and file identifiers into nodes.
// Implementations must return an error wrapping ErrNotFound when the node is
// absent, and any other error for transient failures.
type NodeResolver interface {
	// ResolvePath looks up the user's root and returns the node at path.
	ResolvePath(ctx context.Context, userID, path string) (*Node, error)

	// ResolveID returns the node with the given file identifier in the user's tree.
	ResolveID(ctx context.Context, userID string, fileID int64) (*Node, error)

	// Open opens a file node for reading.
	Open(ctx context.Context, node *Node) (io.ReadCloser, error)
}
