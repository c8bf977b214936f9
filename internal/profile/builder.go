package profile

import (
	"context"
	"fmt"
	"time"

	"recoledger/internal/tracker"
)

// InterestTerm is a document term reached through one of a user's interest signals.
type InterestTerm struct {
	Reason tracker.Reason
	Term   string
	Weight float64
}

// Store persists document terms, interest signals and built profiles.
type Store interface {
	ReplaceDocumentTerms(ctx context.Context, fileID int64, terms []Term) error
	UpsertInterest(ctx context.Context, userID string, fileID int64, reason tracker.Reason, at time.Time) error
	ListInterestTerms(ctx context.Context, userID string) ([]InterestTerm, error)
	ReplaceProfile(ctx context.Context, userID string, terms []Term, at time.Time) error
	ListProfile(ctx context.Context, userID string, limit int) ([]Term, error)
}

// Settings tunes profile construction.
type Settings struct {
	// MaxTerms caps both the terms kept per document and per profile.
	MaxTerms int
	// EditWeight and FavoriteWeight scale a document's terms by the signal that
	// linked the user to it.
	EditWeight     float64
	FavoriteWeight float64
}

// DefaultSettings returns the settings used when none are configured.
func DefaultSettings() Settings {
	return Settings{
		MaxTerms:       50,
		EditWeight:     1.0,
		FavoriteWeight: 2.0,
	}
}

// Builder maintains interest profiles. It is the ProfileSink the recompute pass feeds.
type Builder struct {
	store     Store
	extractor *Extractor
	settings  Settings
	logger    tracker.Logger
	clock     tracker.Clock
}

// NewBuilder creates a Builder. Zero settings fall back to the defaults.
func NewBuilder(store Store, settings Settings, logger tracker.Logger, clock tracker.Clock) *Builder {
	def := DefaultSettings()
	if settings.MaxTerms <= 0 {
		settings.MaxTerms = def.MaxTerms
	}
	if settings.EditWeight <= 0 {
		settings.EditWeight = def.EditWeight
	}
	if settings.FavoriteWeight <= 0 {
		settings.FavoriteWeight = def.FavoriteWeight
	}

	return &Builder{
		store:     store,
		extractor: NewExtractor(),
		settings:  settings,
		logger:    logger,
		clock:     clock,
	}
}

// IndexDocument replaces the stored terms of a file with those extracted from text.
// Empty text clears the file's terms.
func (b *Builder) IndexDocument(ctx context.Context, fileID int64, text string) error {
	terms := b.extractor.Extract(text, b.settings.MaxTerms)
	if err := b.store.ReplaceDocumentTerms(ctx, fileID, terms); err != nil {
		return fmt.Errorf("storing terms for file %d: %w", fileID, err)
	}
	b.logger.Debug("document indexed", "file_id", fileID, "terms", len(terms))
	return nil
}

func (b *Builder) RecordInterest(ctx context.Context, userID string, fileID int64, reason tracker.Reason) error {
	return b.store.UpsertInterest(ctx, userID, fileID, reason, b.clock.Now())
}

// Rebuild recomputes the user's profile from every document they showed interest in.
func (b *Builder) Rebuild(ctx context.Context, userID string) error {
	interests, err := b.store.ListInterestTerms(ctx, userID)
	if err != nil {
		return fmt.Errorf("loading interests for %s: %w", userID, err)
	}

	scores := make(map[string]float64)
	for _, it := range interests {
		scores[it.Term] += it.Weight * b.reasonWeight(it.Reason)
	}

	terms := make([]Term, 0, len(scores))
	for term, score := range scores {
		terms = append(terms, Term{Term: term, Weight: score})
	}
	terms = topTerms(terms, b.settings.MaxTerms)

	if err := b.store.ReplaceProfile(ctx, userID, terms, b.clock.Now()); err != nil {
		return fmt.Errorf("storing profile for %s: %w", userID, err)
	}
	b.logger.Info("profile rebuilt", "user", userID, "terms", len(terms))
	return nil
}

// Profile returns the user's top terms, highest score first.
func (b *Builder) Profile(ctx context.Context, userID string, limit int) ([]Term, error) {
	if limit <= 0 {
		limit = b.settings.MaxTerms
	}
	return b.store.ListProfile(ctx, userID, limit)
}

func (b *Builder) reasonWeight(r tracker.Reason) float64 {
	switch r {
	case tracker.ReasonFavorite:
		return b.settings.FavoriteWeight
	case tracker.ReasonEdit:
		return b.settings.EditWeight
	}
	return 0
}

var _ tracker.ProfileSink = (*Builder)(nil)
