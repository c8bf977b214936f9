package testutil

import (
	"database/sql"
	"testing"

	"recoledger/internal/database"
)

// NewTestDatabase creates a new in-memory SQLite database with schema applied.
// The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()
	db, _ := NewTestDatabaseConn(t)
	return db
}

// NewTestDatabaseConn is NewTestDatabase that also returns the underlying
// connection, for tests that need to install triggers or inspect raw rows.
func NewTestDatabaseConn(t *testing.T) (*database.SQLiteDatabase, *sql.DB) {
	t.Helper()

	sqlDB, err := database.OpenConnection(database.MemoryPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if _, err := sqlDB.Exec(database.Schema); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	db := database.NewSQLiteDatabaseFromDB(sqlDB)

	t.Cleanup(func() {
		db.Close()
	})

	return db, sqlDB
}

// FailProcessedDeletes makes every delete from processed_files abort with an
// error until the returned function is called.
func FailProcessedDeletes(t *testing.T, conn *sql.DB) (restore func()) {
	t.Helper()
	_, err := conn.Exec(`CREATE TRIGGER fail_processed_delete BEFORE DELETE ON processed_files
		BEGIN SELECT RAISE(ABORT, 'processed delete failed'); END`)
	if err != nil {
		t.Fatalf("creating trigger: %v", err)
	}
	return func() {
		if _, err := conn.Exec(`DROP TRIGGER fail_processed_delete`); err != nil {
			t.Fatalf("dropping trigger: %v", err)
		}
	}
}
