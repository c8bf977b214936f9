package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"recoledger/internal/tracker"
)

// DefaultIDCacheSize is the number of id→path entries kept when none is configured.
const DefaultIDCacheSize = 4096

type cacheKey struct {
	userID string
	fileID int64
}

// OSResolver resolves nodes on the real filesystem. Each user owns the tree
// under <root>/<userID>; node paths are relative to it and file ids are inode numbers.
type OSResolver struct {
	root   string
	ignore *IgnoreMatcher
	ids    *lru.Cache[cacheKey, string]
}

// NewOSResolver creates a resolver rooted at root.
func NewOSResolver(root string, cacheSize int, ignore *IgnoreMatcher) (*OSResolver, error) {
	if root == "" {
		return nil, fmt.Errorf("files root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving files root: %w", err)
	}
	if cacheSize <= 0 {
		cacheSize = DefaultIDCacheSize
	}
	cache, err := lru.New[cacheKey, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating id cache: %w", err)
	}
	if ignore == nil {
		ignore = NewIgnoreMatcher(nil)
	}

	return &OSResolver{root: abs, ignore: ignore, ids: cache}, nil
}

// ResolvePath returns the node at the user-relative path.
func (r *OSResolver) ResolvePath(ctx context.Context, userID, rawPath string) (*tracker.Node, error) {
	userRoot, err := r.userRoot(userID)
	if err != nil {
		return nil, err
	}
	nodePath, err := cleanNodePath(rawPath)
	if err != nil {
		return nil, err
	}
	if r.ignore.Match(nodePath) {
		return nil, fmt.Errorf("%s is ignored: %w", nodePath, tracker.ErrNotFound)
	}

	node, err := r.stat(userID, userRoot, nodePath)
	if err != nil {
		return nil, err
	}
	r.ids.Add(cacheKey{userID, node.ID}, node.Path)
	return node, nil
}

// ResolveID returns the node with the given inode number in the user's tree.
// A cached path is trusted only if it still carries the same inode; otherwise
// the tree is walked.
func (r *OSResolver) ResolveID(ctx context.Context, userID string, fileID int64) (*tracker.Node, error) {
	userRoot, err := r.userRoot(userID)
	if err != nil {
		return nil, err
	}

	key := cacheKey{userID, fileID}
	if cached, ok := r.ids.Get(key); ok {
		node, err := r.stat(userID, userRoot, cached)
		if err == nil && node.ID == fileID {
			return node, nil
		}
		r.ids.Remove(key)
	}

	node, err := r.walkFor(ctx, userID, userRoot, fileID)
	if err != nil {
		return nil, err
	}
	r.ids.Add(key, node.Path)
	return node, nil
}

// Open opens a file node for reading.
func (r *OSResolver) Open(ctx context.Context, node *tracker.Node) (io.ReadCloser, error) {
	if node.IsDir {
		return nil, fmt.Errorf("cannot open directory as file: %s", node.Path)
	}
	userRoot, err := r.userRoot(node.UserID)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(userRoot, filepath.FromSlash(node.Path)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", node.Path, tracker.ErrNotFound)
		}
		return nil, fmt.Errorf("opening %s: %w", node.Path, err)
	}
	return f, nil
}

// userRoot validates userID and returns the root of the user's tree.
func (r *OSResolver) userRoot(userID string) (string, error) {
	if userID == "" || userID == "." || userID == ".." || strings.ContainsAny(userID, `/\`) {
		return "", fmt.Errorf("invalid user id %q", userID)
	}
	return filepath.Join(r.root, userID), nil
}

// cleanNodePath normalizes a user-relative path to "/a/b" form and rejects
// paths that climb out of the user's root.
func cleanNodePath(raw string) (string, error) {
	slashed := strings.ReplaceAll(raw, `\`, "/")
	for _, seg := range strings.Split(slashed, "/") {
		if seg == ".." {
			return "", fmt.Errorf("path %q escapes the user root", raw)
		}
	}
	return path.Clean("/" + slashed), nil
}

func (r *OSResolver) stat(userID, userRoot, nodePath string) (*tracker.Node, error) {
	info, err := os.Lstat(filepath.Join(userRoot, filepath.FromSlash(nodePath)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", nodePath, tracker.ErrNotFound)
		}
		return nil, fmt.Errorf("stat %s: %w", nodePath, err)
	}
	return newNode(userID, nodePath, info)
}

func newNode(userID, nodePath string, info fs.FileInfo) (*tracker.Node, error) {
	mode := info.Mode()
	if mode&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("symlinks not supported: %s", nodePath)
	}
	if mode&os.ModeDevice != 0 {
		return nil, fmt.Errorf("device files not supported: %s", nodePath)
	}
	if mode&os.ModeNamedPipe != 0 {
		return nil, fmt.Errorf("named pipes not supported: %s", nodePath)
	}
	if mode&os.ModeSocket != 0 {
		return nil, fmt.Errorf("sockets not supported: %s", nodePath)
	}

	id, err := fileID(info)
	if err != nil {
		return nil, err
	}
	return &tracker.Node{
		ID:      id,
		UserID:  userID,
		Path:    nodePath,
		IsDir:   info.IsDir(),
		Size:    info.Size(),
		ModTime: info.ModTime().UTC(),
	}, nil
}

var errFound = errors.New("found")

// walkFor searches the user's tree for the inode. Ignored subtrees and special
// files are skipped.
func (r *OSResolver) walkFor(ctx context.Context, userID, userRoot string, want int64) (*tracker.Node, error) {
	var found *tracker.Node
	err := filepath.WalkDir(userRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == userRoot && errors.Is(err, fs.ErrNotExist) {
				return err
			}
			// Unreadable entries are skipped so one bad subtree does not hide the rest.
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(userRoot, p)
		if err != nil {
			return err
		}
		nodePath := path.Clean("/" + filepath.ToSlash(rel))
		if r.ignore.Match(nodePath) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		id, err := fileID(info)
		if err != nil {
			return err
		}
		if id != want {
			return nil
		}
		found, err = newNode(userID, nodePath, info)
		if err != nil {
			return err
		}
		return errFound
	})

	switch {
	case errors.Is(err, errFound):
		return found, nil
	case err == nil, errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("file %d for %s: %w", want, userID, tracker.ErrNotFound)
	default:
		return nil, fmt.Errorf("searching for file %d: %w", want, err)
	}
}

// Compile-time check that OSResolver implements tracker.NodeResolver interface
var _ tracker.NodeResolver = (*OSResolver)(nil)
