package testutil

import (
	"context"
	"io"
	"sync"

	"recoledger/internal/fs"
	"recoledger/internal/tracker"
)

// NewTestResolver creates an empty in-memory node resolver.
func NewTestResolver() *fs.MemoryResolver {
	return fs.NewMemoryResolver()
}

// FlakyResolver wraps a resolver and fails lookups of chosen file ids with a
// transient (non-NotFound) error.
type FlakyResolver struct {
	tracker.NodeResolver

	mu    sync.Mutex
	fails map[int64]error
}

func NewFlakyResolver(inner tracker.NodeResolver) *FlakyResolver {
	return &FlakyResolver{NodeResolver: inner, fails: make(map[int64]error)}
}

// FailID makes ResolveID for fileID return err until Heal is called.
func (r *FlakyResolver) FailID(fileID int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fails[fileID] = err
}

func (r *FlakyResolver) Heal(fileID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.fails, fileID)
}

func (r *FlakyResolver) ResolveID(ctx context.Context, userID string, fileID int64) (*tracker.Node, error) {
	r.mu.Lock()
	err := r.fails[fileID]
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.NodeResolver.ResolveID(ctx, userID, fileID)
}

// StubReader returns the file's content as its text, or a configured error per file id.
// It records which files were read.
type StubReader struct {
	mu    sync.Mutex
	fails map[int64]error
	reads []int64
}

func NewStubReader() *StubReader {
	return &StubReader{fails: make(map[int64]error)}
}

// FailFile makes reads of fileID fail with err.
func (r *StubReader) FailFile(fileID int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fails[fileID] = err
}

func (r *StubReader) Read(_ context.Context, node *tracker.Node, content io.Reader) (string, error) {
	r.mu.Lock()
	r.reads = append(r.reads, node.ID)
	err := r.fails[node.ID]
	r.mu.Unlock()
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Reads returns the ids of every file read so far, in order.
func (r *StubReader) Reads() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.reads...)
}

var (
	_ tracker.NodeResolver  = (*FlakyResolver)(nil)
	_ tracker.ContentReader = (*StubReader)(nil)
)
