package tracker

import (
	"context"
	"fmt"
	"time"
)

// Reason is the cause of a changed-file signal.
type Reason string

const (
	ReasonEdit     Reason = "edit"
	ReasonFavorite Reason = "favorite"
)

// DomainUserProfile tags content extracted for user interest profiles.
const DomainUserProfile = "userprofile"

// ChangedFile is a pending signal that a file needs re-evaluation for a user.
type ChangedFile struct {
	ID        int64 // row id, new on every upsert
	FileID    int64
	UserID    string
	Reason    Reason
	ChangedAt time.Time
}

// ProcessedFile records that a file's content was extracted for a domain.
type ProcessedFile struct {
	FileID      int64
	Domain      string
	ProcessedAt time.Time
}

// LedgerStore owns the changed-files and processed-files tables.
// Implementations must return *StorageError for storage failures.
type LedgerStore interface {
	// UpsertChanged atomically removes any record for (fileID, userID, reason)
	// and inserts a fresh one stamped with at. Concurrent callers on the same
	// key leave exactly one row.
	UpsertChanged(ctx context.Context, fileID int64, userID string, reason Reason, at time.Time) error

	// RecordEdit upserts the edit record for (fileID, userID) and deletes the
	// file's processed record for domain in one transaction, so an accepted edit
	// is either fully recorded or not at all.
	RecordEdit(ctx context.Context, fileID int64, userID, domain string, at time.Time) error

	// DeleteChanged removes the record for the key. Absent records are not an error.
	DeleteChanged(ctx context.Context, fileID int64, userID string, reason Reason) error

	// ListChanged returns a snapshot of all pending records ordered by user, then file.
	ListChanged(ctx context.Context) ([]ChangedFile, error)

	// ConsumeChanged deletes the record with the given row id. A record that was
	// replaced by a newer upsert after the snapshot survives.
	ConsumeChanged(ctx context.Context, id int64) error

	// CountChanged returns the number of pending records.
	CountChanged(ctx context.Context) (int64, error)

	// IsProcessed reports whether the file has a processed record for domain.
	IsProcessed(ctx context.Context, fileID int64, domain string) (bool, error)

	// InsertProcessed records the file as processed for domain. Idempotent.
	InsertProcessed(ctx context.Context, fileID int64, domain string, at time.Time) error

	// MarkProcessed inserts the processed record unless an edit for fileID was
	// recorded with a row id above since. It reports whether the record was written.
	// Checking and inserting happen in one transaction, so an edit that races the
	// extraction either blocks the mark or deletes it afterwards.
	MarkProcessed(ctx context.Context, fileID int64, domain string, since int64, at time.Time) (bool, error)

	// DeleteProcessed removes the processed record. Absent records are not an error.
	DeleteProcessed(ctx context.Context, fileID int64, domain string) error
}

// StorageError reports a ledger read or write failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("ledger %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
