package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"recoledger/internal/tracker"
)

// ErrStorageDown is the error FailingStore injects.
var ErrStorageDown = errors.New("storage unavailable")

// FailingStore wraps a ledger store and fails its writes while an error is set.
type FailingStore struct {
	tracker.LedgerStore

	mu  sync.Mutex
	err error
}

func NewFailingStore(inner tracker.LedgerStore) *FailingStore {
	return &FailingStore{LedgerStore: inner}
}

// SetDown makes writes fail with ErrStorageDown, or heals the store.
func (s *FailingStore) SetDown(down bool) {
	if down {
		s.FailWith(ErrStorageDown)
		return
	}
	s.FailWith(nil)
}

// FailWith makes writes fail with err. A nil err heals the store.
func (s *FailingStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *FailingStore) fail(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return &tracker.StorageError{Op: op, Err: s.err}
	}
	return nil
}

func (s *FailingStore) UpsertChanged(ctx context.Context, fileID int64, userID string, reason tracker.Reason, at time.Time) error {
	if err := s.fail("upsert changed"); err != nil {
		return err
	}
	return s.LedgerStore.UpsertChanged(ctx, fileID, userID, reason, at)
}

func (s *FailingStore) RecordEdit(ctx context.Context, fileID int64, userID, domain string, at time.Time) error {
	if err := s.fail("record edit"); err != nil {
		return err
	}
	return s.LedgerStore.RecordEdit(ctx, fileID, userID, domain, at)
}

func (s *FailingStore) DeleteChanged(ctx context.Context, fileID int64, userID string, reason tracker.Reason) error {
	if err := s.fail("delete changed"); err != nil {
		return err
	}
	return s.LedgerStore.DeleteChanged(ctx, fileID, userID, reason)
}

// RecordingObserver counts observer calls.
type RecordingObserver struct {
	mu        sync.Mutex
	Hooks     map[string]int // "hook/outcome" -> count
	Files     map[string]int
	Runs      int
	Remaining int64
}

func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{Hooks: make(map[string]int), Files: make(map[string]int)}
}

func (o *RecordingObserver) HookEvent(hook, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Hooks[hook+"/"+outcome]++
}

func (o *RecordingObserver) RecomputeFile(outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Files[outcome]++
}

func (o *RecordingObserver) RecomputeRun(_ time.Duration, remaining int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Runs++
	o.Remaining = remaining
}

// HookCount returns how often hook reported outcome.
func (o *RecordingObserver) HookCount(hook, outcome string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Hooks[hook+"/"+outcome]
}

var (
	_ tracker.LedgerStore = (*FailingStore)(nil)
	_ tracker.Observer    = (*RecordingObserver)(nil)
)
