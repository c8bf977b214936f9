package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"recoledger/internal/database/migrations"
	"recoledger/internal/database/sqlc"
	"recoledger/internal/profile"
	"recoledger/internal/tracker"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteDatabase stores the ledger, the interest profiles and the run history in SQLite.
type SQLiteDatabase struct {
	db      *sql.DB
	queries *sqlc.Queries
	path    string
}

// NewSQLiteDatabase creates a new SQLite database connection.
// path can be a file path or ":memory:" for in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return &SQLiteDatabase{
		db:      db,
		queries: sqlc.New(db),
		path:    path,
	}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{
		db:      db,
		queries: sqlc.New(db),
		path:    "",
	}
}

// OpenConnection opens and configures a SQLite database connection.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
//
// Write transactions start with BEGIN IMMEDIATE and wait up to five seconds for the
// lock, so concurrent upserts on the same key serialize instead of failing with SQLITE_BUSY.
func OpenConnection(path string) (*sql.DB, error) {
	dsn := path + "?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	if path != MemoryPath {
		dsn += "&_journal_mode=WAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: gets its own empty database.
	if path == MemoryPath {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func storageErr(op string, err error) error {
	return &tracker.StorageError{Op: op, Err: err}
}

// withTx runs fn inside one transaction. Inside fn only the provided Queries may be
// used: the in-memory pool has a single connection, held by the transaction.
func (s *SQLiteDatabase) withTx(ctx context.Context, fn func(q *sqlc.Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(s.queries.WithTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func toChangedFile(row sqlc.ChangedFile) tracker.ChangedFile {
	return tracker.ChangedFile{
		ID:        row.ID,
		FileID:    row.FileID,
		UserID:    row.UserID,
		Reason:    tracker.Reason(row.Reason),
		ChangedAt: row.ChangedAt,
	}
}

// Changed files

func (s *SQLiteDatabase) UpsertChanged(ctx context.Context, fileID int64, userID string, reason tracker.Reason, at time.Time) error {
	err := s.withTx(ctx, func(q *sqlc.Queries) error {
		err := q.DeleteChangedFile(ctx, sqlc.DeleteChangedFileParams{
			FileID: fileID,
			UserID: userID,
			Reason: string(reason),
		})
		if err != nil {
			return fmt.Errorf("deleting previous record: %w", err)
		}

		_, err = q.InsertChangedFile(ctx, sqlc.InsertChangedFileParams{
			FileID:    fileID,
			UserID:    userID,
			Reason:    string(reason),
			ChangedAt: at.UTC(),
		})
		if err != nil {
			return fmt.Errorf("inserting record: %w", err)
		}
		return nil
	})
	if err != nil {
		return storageErr("upsert changed", err)
	}
	return nil
}

func (s *SQLiteDatabase) RecordEdit(ctx context.Context, fileID int64, userID, domain string, at time.Time) error {
	err := s.withTx(ctx, func(q *sqlc.Queries) error {
		err := q.DeleteChangedFile(ctx, sqlc.DeleteChangedFileParams{
			FileID: fileID,
			UserID: userID,
			Reason: string(tracker.ReasonEdit),
		})
		if err != nil {
			return fmt.Errorf("deleting previous record: %w", err)
		}

		_, err = q.InsertChangedFile(ctx, sqlc.InsertChangedFileParams{
			FileID:    fileID,
			UserID:    userID,
			Reason:    string(tracker.ReasonEdit),
			ChangedAt: at.UTC(),
		})
		if err != nil {
			return fmt.Errorf("inserting record: %w", err)
		}

		err = q.DeleteProcessedFile(ctx, sqlc.DeleteProcessedFileParams{
			FileID: fileID,
			Domain: domain,
		})
		if err != nil {
			return fmt.Errorf("invalidating processed record: %w", err)
		}
		return nil
	})
	if err != nil {
		return storageErr("record edit", err)
	}
	return nil
}

func (s *SQLiteDatabase) DeleteChanged(ctx context.Context, fileID int64, userID string, reason tracker.Reason) error {
	err := s.queries.DeleteChangedFile(ctx, sqlc.DeleteChangedFileParams{
		FileID: fileID,
		UserID: userID,
		Reason: string(reason),
	})
	if err != nil {
		return storageErr("delete changed", err)
	}
	return nil
}

// FindChanged returns the pending record for the key, or nil if there is none.
func (s *SQLiteDatabase) FindChanged(ctx context.Context, fileID int64, userID string, reason tracker.Reason) (*tracker.ChangedFile, error) {
	row, err := s.queries.GetChangedFile(ctx, sqlc.GetChangedFileParams{
		FileID: fileID,
		UserID: userID,
		Reason: string(reason),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, storageErr("find changed", err)
	}
	rec := toChangedFile(row)
	return &rec, nil
}

func (s *SQLiteDatabase) ListChanged(ctx context.Context) ([]tracker.ChangedFile, error) {
	rows, err := s.queries.ListChangedFiles(ctx)
	if err != nil {
		return nil, storageErr("list changed", err)
	}

	result := make([]tracker.ChangedFile, len(rows))
	for i, row := range rows {
		result[i] = toChangedFile(row)
	}
	return result, nil
}

// ListChangedForUser returns the pending records of one user ordered by file.
func (s *SQLiteDatabase) ListChangedForUser(ctx context.Context, userID string) ([]tracker.ChangedFile, error) {
	rows, err := s.queries.ListChangedFilesByUser(ctx, userID)
	if err != nil {
		return nil, storageErr("list changed", err)
	}

	result := make([]tracker.ChangedFile, len(rows))
	for i, row := range rows {
		result[i] = toChangedFile(row)
	}
	return result, nil
}

func (s *SQLiteDatabase) ConsumeChanged(ctx context.Context, id int64) error {
	if err := s.queries.DeleteChangedFileByID(ctx, id); err != nil {
		return storageErr("consume changed", err)
	}
	return nil
}

func (s *SQLiteDatabase) CountChanged(ctx context.Context) (int64, error) {
	n, err := s.queries.CountChangedFiles(ctx)
	if err != nil {
		return 0, storageErr("count changed", err)
	}
	return n, nil
}

// Processed files

func (s *SQLiteDatabase) IsProcessed(ctx context.Context, fileID int64, domain string) (bool, error) {
	_, err := s.queries.GetProcessedFile(ctx, sqlc.GetProcessedFileParams{
		FileID: fileID,
		Domain: domain,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, storageErr("find processed", err)
	}
	return true, nil
}

func (s *SQLiteDatabase) InsertProcessed(ctx context.Context, fileID int64, domain string, at time.Time) error {
	err := s.queries.UpsertProcessedFile(ctx, sqlc.UpsertProcessedFileParams{
		FileID:      fileID,
		Domain:      domain,
		ProcessedAt: at.UTC(),
	})
	if err != nil {
		return storageErr("insert processed", err)
	}
	return nil
}

func (s *SQLiteDatabase) MarkProcessed(ctx context.Context, fileID int64, domain string, since int64, at time.Time) (bool, error) {
	marked := false
	err := s.withTx(ctx, func(q *sqlc.Queries) error {
		edits, err := q.CountEditsSince(ctx, sqlc.CountEditsSinceParams{FileID: fileID, ID: since})
		if err != nil {
			return fmt.Errorf("checking for newer edits: %w", err)
		}
		if edits > 0 {
			return nil
		}

		err = q.UpsertProcessedFile(ctx, sqlc.UpsertProcessedFileParams{
			FileID:      fileID,
			Domain:      domain,
			ProcessedAt: at.UTC(),
		})
		if err != nil {
			return fmt.Errorf("inserting processed record: %w", err)
		}
		marked = true
		return nil
	})
	if err != nil {
		return false, storageErr("mark processed", err)
	}
	return marked, nil
}

func (s *SQLiteDatabase) DeleteProcessed(ctx context.Context, fileID int64, domain string) error {
	err := s.queries.DeleteProcessedFile(ctx, sqlc.DeleteProcessedFileParams{
		FileID: fileID,
		Domain: domain,
	})
	if err != nil {
		return storageErr("delete processed", err)
	}
	return nil
}

// Recompute run tracking

func (s *SQLiteDatabase) StartRun(ctx context.Context, runID, trigger string, at time.Time) (int64, error) {
	run, err := s.queries.InsertRecomputeRun(ctx, sqlc.InsertRecomputeRunParams{
		RunID:       runID,
		TriggeredBy: trigger,
		StartedAt:   at.UTC(),
	})
	if err != nil {
		return 0, fmt.Errorf("creating recompute run: %w", err)
	}
	return run.ID, nil
}

func (s *SQLiteDatabase) FinishRun(ctx context.Context, id int64, status string, at time.Time, consumed, failed int64) error {
	err := s.queries.FinishRecomputeRun(ctx, sqlc.FinishRecomputeRunParams{
		FinishedAt:    sql.NullTime{Time: at.UTC(), Valid: true},
		Status:        status,
		FilesConsumed: consumed,
		FilesFailed:   failed,
		ID:            id,
	})
	if err != nil {
		return fmt.Errorf("finishing recompute run: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListRuns(ctx context.Context, limit int) ([]tracker.RunRecord, error) {
	runs, err := s.queries.ListRecomputeRuns(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("listing recompute runs: %w", err)
	}

	result := make([]tracker.RunRecord, len(runs))
	for i, run := range runs {
		rec := tracker.RunRecord{
			ID:        run.ID,
			RunID:     run.RunID,
			Trigger:   run.TriggeredBy,
			StartedAt: run.StartedAt,
			Status:    run.Status,
			Consumed:  run.FilesConsumed,
			Failed:    run.FilesFailed,
		}
		if run.FinishedAt.Valid {
			finished := run.FinishedAt.Time
			rec.FinishedAt = &finished
		}
		result[i] = rec
	}
	return result, nil
}

// Interest profiles

func (s *SQLiteDatabase) ReplaceDocumentTerms(ctx context.Context, fileID int64, terms []profile.Term) error {
	return s.withTx(ctx, func(q *sqlc.Queries) error {
		if err := q.DeleteDocumentTerms(ctx, fileID); err != nil {
			return fmt.Errorf("deleting document terms: %w", err)
		}
		for _, t := range terms {
			err := q.InsertDocumentTerm(ctx, sqlc.InsertDocumentTermParams{
				FileID: fileID,
				Term:   t.Term,
				Weight: t.Weight,
			})
			if err != nil {
				return fmt.Errorf("inserting document term %q: %w", t.Term, err)
			}
		}
		return nil
	})
}

func (s *SQLiteDatabase) UpsertInterest(ctx context.Context, userID string, fileID int64, reason tracker.Reason, at time.Time) error {
	err := s.queries.UpsertUserInterest(ctx, sqlc.UpsertUserInterestParams{
		UserID:    userID,
		FileID:    fileID,
		Reason:    string(reason),
		UpdatedAt: at.UTC(),
	})
	if err != nil {
		return fmt.Errorf("recording interest: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ListInterestTerms(ctx context.Context, userID string) ([]profile.InterestTerm, error) {
	rows, err := s.queries.ListUserInterestTerms(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing interest terms: %w", err)
	}

	result := make([]profile.InterestTerm, len(rows))
	for i, row := range rows {
		result[i] = profile.InterestTerm{
			Reason: tracker.Reason(row.Reason),
			Term:   row.Term,
			Weight: row.Weight,
		}
	}
	return result, nil
}

func (s *SQLiteDatabase) ReplaceProfile(ctx context.Context, userID string, terms []profile.Term, at time.Time) error {
	return s.withTx(ctx, func(q *sqlc.Queries) error {
		if err := q.DeleteUserProfile(ctx, userID); err != nil {
			return fmt.Errorf("deleting profile: %w", err)
		}
		for _, t := range terms {
			err := q.InsertUserProfileTerm(ctx, sqlc.InsertUserProfileTermParams{
				UserID:    userID,
				Term:      t.Term,
				Score:     t.Weight,
				UpdatedAt: at.UTC(),
			})
			if err != nil {
				return fmt.Errorf("inserting profile term %q: %w", t.Term, err)
			}
		}
		return nil
	})
}

func (s *SQLiteDatabase) ListProfile(ctx context.Context, userID string, limit int) ([]profile.Term, error) {
	rows, err := s.queries.ListUserProfile(ctx, sqlc.ListUserProfileParams{
		UserID: userID,
		Limit:  int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("listing profile: %w", err)
	}

	result := make([]profile.Term, len(rows))
	for i, row := range rows {
		result[i] = profile.Term{Term: row.Term, Weight: row.Score}
	}
	return result, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// Migrate applies all pending schema migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// MigrationStatus reports the schema version of the database.
func (s *SQLiteDatabase) MigrationStatus() (migrations.Status, error) {
	return migrations.GetStatus(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var (
	_ tracker.LedgerStore = (*SQLiteDatabase)(nil)
	_ tracker.RunStore    = (*SQLiteDatabase)(nil)
	_ profile.Store       = (*SQLiteDatabase)(nil)
)
