package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	"recoledger/internal/tracker"
)

type interestKey struct {
	user   string
	file   int64
	reason tracker.Reason
}

// memStore is a map-backed Store.
type memStore struct {
	docs      map[int64][]Term
	interests map[interestKey]time.Time
	profiles  map[string][]Term
	failList  error
}

func newMemStore() *memStore {
	return &memStore{
		docs:      make(map[int64][]Term),
		interests: make(map[interestKey]time.Time),
		profiles:  make(map[string][]Term),
	}
}

func (m *memStore) ReplaceDocumentTerms(_ context.Context, fileID int64, terms []Term) error {
	m.docs[fileID] = terms
	return nil
}

func (m *memStore) UpsertInterest(_ context.Context, userID string, fileID int64, reason tracker.Reason, at time.Time) error {
	m.interests[interestKey{userID, fileID, reason}] = at
	return nil
}

func (m *memStore) ListInterestTerms(_ context.Context, userID string) ([]InterestTerm, error) {
	if m.failList != nil {
		return nil, m.failList
	}
	var out []InterestTerm
	for k := range m.interests {
		if k.user != userID {
			continue
		}
		for _, t := range m.docs[k.file] {
			out = append(out, InterestTerm{Reason: k.reason, Term: t.Term, Weight: t.Weight})
		}
	}
	return out, nil
}

func (m *memStore) ReplaceProfile(_ context.Context, userID string, terms []Term, _ time.Time) error {
	m.profiles[userID] = terms
	return nil
}

func (m *memStore) ListProfile(_ context.Context, userID string, limit int) ([]Term, error) {
	p := m.profiles[userID]
	if len(p) > limit {
		p = p[:limit]
	}
	return p, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestBuilder(store Store, settings Settings) *Builder {
	return NewBuilder(store, settings, tracker.NewNopLogger(), fixedClock{time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)})
}

func TestNewBuilder_Defaults(t *testing.T) {
	b := newTestBuilder(newMemStore(), Settings{})

	if b.settings != DefaultSettings() {
		t.Errorf("settings = %+v, want defaults %+v", b.settings, DefaultSettings())
	}
}

func TestBuilder_IndexDocument(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	b := newTestBuilder(store, Settings{MaxTerms: 1})

	if err := b.IndexDocument(ctx, 1, "budget budget report"); err != nil {
		t.Fatalf("IndexDocument() error = %v", err)
	}
	if got := store.docs[1]; len(got) != 1 || got[0].Term != "budget" {
		t.Errorf("stored terms = %v, want only budget", got)
	}

	if err := b.IndexDocument(ctx, 1, ""); err != nil {
		t.Fatalf("IndexDocument(empty) error = %v", err)
	}
	if got := store.docs[1]; len(got) != 0 {
		t.Errorf("stored terms after empty text = %v, want none", got)
	}
}

func TestBuilder_Rebuild(t *testing.T) {
	ctx := context.Background()

	t.Run("favorites outweigh edits", func(t *testing.T) {
		store := newMemStore()
		b := newTestBuilder(store, Settings{MaxTerms: 10, EditWeight: 1, FavoriteWeight: 3})

		store.docs[1] = []Term{{Term: "budget", Weight: 0.5}}
		store.docs[2] = []Term{{Term: "holiday", Weight: 0.5}}
		b.RecordInterest(ctx, "alice", 1, tracker.ReasonEdit)
		b.RecordInterest(ctx, "alice", 2, tracker.ReasonFavorite)

		if err := b.Rebuild(ctx, "alice"); err != nil {
			t.Fatalf("Rebuild() error = %v", err)
		}

		got, err := b.Profile(ctx, "alice", 0)
		if err != nil {
			t.Fatalf("Profile() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("got %d profile terms, want 2", len(got))
		}
		if got[0].Term != "holiday" || got[0].Weight != 1.5 {
			t.Errorf("got[0] = %+v, want holiday/1.5", got[0])
		}
		if got[1].Term != "budget" || got[1].Weight != 0.5 {
			t.Errorf("got[1] = %+v, want budget/0.5", got[1])
		}
	})

	t.Run("scores accumulate across documents", func(t *testing.T) {
		store := newMemStore()
		b := newTestBuilder(store, DefaultSettings())

		store.docs[1] = []Term{{Term: "budget", Weight: 0.5}}
		store.docs[2] = []Term{{Term: "budget", Weight: 0.25}}
		b.RecordInterest(ctx, "alice", 1, tracker.ReasonEdit)
		b.RecordInterest(ctx, "alice", 2, tracker.ReasonEdit)

		b.Rebuild(ctx, "alice")

		got := store.profiles["alice"]
		if len(got) != 1 || got[0].Weight != 0.75 {
			t.Errorf("profile = %v, want budget/0.75", got)
		}
	})

	t.Run("other users are untouched", func(t *testing.T) {
		store := newMemStore()
		b := newTestBuilder(store, DefaultSettings())

		store.docs[1] = []Term{{Term: "budget", Weight: 1}}
		b.RecordInterest(ctx, "bob", 1, tracker.ReasonEdit)

		b.Rebuild(ctx, "alice")

		if len(store.profiles["alice"]) != 0 {
			t.Errorf("alice profile = %v, want empty", store.profiles["alice"])
		}
		if _, ok := store.profiles["bob"]; ok {
			t.Error("bob profile should not have been rebuilt")
		}
	})

	t.Run("store failure is returned", func(t *testing.T) {
		store := newMemStore()
		store.failList = errors.New("disk on fire")
		b := newTestBuilder(store, DefaultSettings())

		if err := b.Rebuild(ctx, "alice"); err == nil {
			t.Error("Rebuild() expected error, got nil")
		}
	})
}
