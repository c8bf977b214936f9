package fs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"recoledger/internal/tracker"
)

type memEntry struct {
	id      int64
	isDir   bool
	content []byte
	modTime time.Time
}

// MemoryResolver keeps per-user trees in memory. It backs the "memory" files
// type and tests. Parent directories are created implicitly.
type MemoryResolver struct {
	mu     sync.RWMutex
	nextID int64
	users  map[string]map[string]*memEntry // user -> node path -> entry
}

// NewMemoryResolver creates an empty MemoryResolver.
func NewMemoryResolver() *MemoryResolver {
	return &MemoryResolver{users: make(map[string]map[string]*memEntry)}
}

// AddFile creates or overwrites a file and returns its id. Overwriting keeps the id.
func (m *MemoryResolver) AddFile(userID, nodePath string, content []byte) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := path.Clean("/" + nodePath)
	m.ensureDir(userID, path.Dir(p))
	tree := m.users[userID]
	if e, ok := tree[p]; ok && !e.isDir {
		e.content = content
		e.modTime = time.Now().UTC()
		return e.id
	}
	e := m.newEntry(false)
	e.content = content
	tree[p] = e
	return e.id
}

// AddDir creates a directory and returns its id.
func (m *MemoryResolver) AddDir(userID, nodePath string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := path.Clean("/" + nodePath)
	m.ensureDir(userID, p)
	return m.users[userID][p].id
}

// Remove deletes the node and everything below it.
func (m *MemoryResolver) Remove(userID, nodePath string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := path.Clean("/" + nodePath)
	tree := m.users[userID]
	for k := range tree {
		if k == p || strings.HasPrefix(k, p+"/") {
			delete(tree, k)
		}
	}
}

func (m *MemoryResolver) ResolvePath(_ context.Context, userID, nodePath string) (*tracker.Node, error) {
	p, err := cleanNodePath(nodePath)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.users[userID][p]
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, tracker.ErrNotFound)
	}
	return toNode(userID, p, e), nil
}

func (m *MemoryResolver) ResolveID(_ context.Context, userID string, fileID int64) (*tracker.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for p, e := range m.users[userID] {
		if e.id == fileID {
			return toNode(userID, p, e), nil
		}
	}
	return nil, fmt.Errorf("file %d for %s: %w", fileID, userID, tracker.ErrNotFound)
}

func (m *MemoryResolver) Open(_ context.Context, node *tracker.Node) (io.ReadCloser, error) {
	if node.IsDir {
		return nil, fmt.Errorf("cannot open directory as file: %s", node.Path)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.users[node.UserID][node.Path]
	if !ok || e.id != node.ID {
		return nil, fmt.Errorf("%s: %w", node.Path, tracker.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(e.content)), nil
}

// ensureDir creates p and its parents. Callers hold m.mu.
func (m *MemoryResolver) ensureDir(userID, p string) {
	tree, ok := m.users[userID]
	if !ok {
		tree = make(map[string]*memEntry)
		m.users[userID] = tree
	}
	for {
		if _, ok := tree[p]; !ok {
			tree[p] = m.newEntry(true)
		}
		if p == "/" {
			return
		}
		p = path.Dir(p)
	}
}

func (m *MemoryResolver) newEntry(isDir bool) *memEntry {
	m.nextID++
	return &memEntry{id: m.nextID, isDir: isDir, modTime: time.Now().UTC()}
}

func toNode(userID, p string, e *memEntry) *tracker.Node {
	return &tracker.Node{
		ID:      e.id,
		UserID:  userID,
		Path:    p,
		IsDir:   e.isDir,
		Size:    int64(len(e.content)),
		ModTime: e.modTime,
	}
}

var _ tracker.NodeResolver = (*MemoryResolver)(nil)
