package tracker

import (
	"context"
	"errors"
	"fmt"
)

// RunReport summarizes one recompute pass.
type RunReport struct {
	Users       int   // users with at least one pending record in the snapshot
	Consumed    int   // records handled and removed from the ledger
	Extracted   int   // files whose content was (re)extracted
	Dropped     int   // records removed because the node vanished or is a directory
	Failed      int   // records left in the ledger for the next cycle
	Remaining   int64 // records pending after the pass
	Interrupted bool  // the pass stopped early because the context was cancelled
}

// Recomputer drains the changed-files ledger. Each record is handled and then
// deleted by row id, so records arriving during a pass are never lost.
type Recomputer struct {
	store    LedgerStore
	resolver NodeResolver
	reader   ContentReader
	profiles ProfileSink
	logger   Logger
	clock    Clock
	observer Observer
	domain   string
}

// NewRecomputer creates a Recomputer for the userprofile domain.
func NewRecomputer(store LedgerStore, resolver NodeResolver, reader ContentReader, profiles ProfileSink, logger Logger, clock Clock, observer Observer) *Recomputer {
	return &Recomputer{
		store:    store,
		resolver: resolver,
		reader:   reader,
		profiles: profiles,
		logger:   logger,
		clock:    clock,
		observer: observer,
		domain:   DomainUserProfile,
	}
}

type userBatch struct {
	userID  string
	records []ChangedFile
}

// groupByUser splits a snapshot ordered by user into per-user batches.
func groupByUser(records []ChangedFile) []userBatch {
	var batches []userBatch
	for _, rec := range records {
		if n := len(batches); n > 0 && batches[n-1].userID == rec.UserID {
			batches[n-1].records = append(batches[n-1].records, rec)
			continue
		}
		batches = append(batches, userBatch{userID: rec.UserID, records: []ChangedFile{rec}})
	}
	return batches
}

type fileOutcome int

const (
	fileConsumed fileOutcome = iota
	fileExtracted
	fileDropped
)

// Run performs one recompute pass over a snapshot of the ledger.
// Cancelling ctx stops the pass between files; already-consumed records stay consumed
// and untouched records stay pending.
func (r *Recomputer) Run(ctx context.Context) (*RunReport, error) {
	start := r.clock.Now()

	pending, err := r.store.ListChanged(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing changed files: %w", err)
	}

	var watermark int64
	for _, rec := range pending {
		watermark = max(watermark, rec.ID)
	}

	report := &RunReport{}
	batches := groupByUser(pending)
	r.logger.Info("recompute started", "pending", len(pending), "users", len(batches))

	for _, batch := range batches {
		if ctx.Err() != nil {
			report.Interrupted = true
			break
		}
		report.Users++

		touched := false
		for _, rec := range batch.records {
			if ctx.Err() != nil {
				report.Interrupted = true
				break
			}

			outcome, err := r.processOne(ctx, rec, watermark)
			if err != nil {
				report.Failed++
				r.observer.RecomputeFile(OutcomeFailed)
				r.logger.Warn("file left pending", "file_id", rec.FileID, "user", rec.UserID, "reason", string(rec.Reason), "error", err)
				continue
			}

			report.Consumed++
			switch outcome {
			case fileDropped:
				report.Dropped++
				r.observer.RecomputeFile(OutcomeSkipped)
			case fileExtracted:
				report.Extracted++
				touched = true
				r.observer.RecomputeFile(OutcomeHandled)
			default:
				touched = true
				r.observer.RecomputeFile(OutcomeHandled)
			}
		}

		if touched {
			if err := r.profiles.Rebuild(ctx, batch.userID); err != nil {
				r.logger.Warn("profile rebuild failed", "user", batch.userID, "error", err)
			}
		}
	}

	// Counting must succeed even when the pass was interrupted.
	remaining, err := r.store.CountChanged(context.WithoutCancel(ctx))
	if err != nil {
		return report, fmt.Errorf("counting remaining changed files: %w", err)
	}
	report.Remaining = remaining

	elapsed := r.clock.Now().Sub(start)
	r.observer.RecomputeRun(elapsed, remaining)
	r.logger.Info("recompute finished",
		"consumed", report.Consumed,
		"extracted", report.Extracted,
		"dropped", report.Dropped,
		"failed", report.Failed,
		"remaining", report.Remaining,
		"interrupted", report.Interrupted,
	)
	return report, nil
}

// processOne handles a single ledger record. Any returned error leaves the record pending.
func (r *Recomputer) processOne(ctx context.Context, rec ChangedFile, watermark int64) (fileOutcome, error) {
	node, err := r.resolver.ResolveID(ctx, rec.UserID, rec.FileID)
	if errors.Is(err, ErrNotFound) {
		if err := r.store.ConsumeChanged(ctx, rec.ID); err != nil {
			return 0, err
		}
		r.logger.Debug("dropped record for missing file", "file_id", rec.FileID, "user", rec.UserID)
		return fileDropped, nil
	}
	if err != nil {
		return 0, fmt.Errorf("resolving file: %w", err)
	}
	if node.IsDir {
		if err := r.store.ConsumeChanged(ctx, rec.ID); err != nil {
			return 0, err
		}
		return fileDropped, nil
	}

	outcome := fileConsumed
	processed, err := r.store.IsProcessed(ctx, node.ID, r.domain)
	if err != nil {
		return 0, err
	}
	if !processed {
		text, err := r.extract(ctx, node)
		if err != nil {
			return 0, err
		}
		if err := r.profiles.IndexDocument(ctx, node.ID, text); err != nil {
			return 0, fmt.Errorf("indexing document: %w", err)
		}
		marked, err := r.store.MarkProcessed(ctx, node.ID, r.domain, watermark, r.clock.Now())
		if err != nil {
			return 0, err
		}
		if !marked {
			r.logger.Debug("file edited during recompute, leaving unprocessed", "file_id", node.ID)
		}
		outcome = fileExtracted
	}

	if err := r.profiles.RecordInterest(ctx, rec.UserID, node.ID, rec.Reason); err != nil {
		return 0, fmt.Errorf("recording interest: %w", err)
	}
	if err := r.store.ConsumeChanged(ctx, rec.ID); err != nil {
		return 0, err
	}
	return outcome, nil
}

func (r *Recomputer) extract(ctx context.Context, node *Node) (string, error) {
	rc, err := r.resolver.Open(ctx, node)
	if err != nil {
		return "", &ExtractionError{FileID: node.ID, Err: err}
	}
	defer rc.Close()

	text, err := r.reader.Read(ctx, node, rc)
	if err != nil {
		return "", &ExtractionError{FileID: node.ID, Err: err}
	}
	return text, nil
}
