package database

// This file documents code generation for the database package.
//
// To regenerate the schema snapshot and the sqlc query layer:
//   go generate ./internal/database
//
// The schema snapshot is built by applying every migration to an in-memory
// database, so migrations/files/*.sql stay the single source of truth.

//go:generate sh -c "cd ../.. && go run internal/database/tools/generate_schema.go"
//go:generate sh -c "cd ../.. && sqlc generate -f internal/database/sqlc/sqlc.yaml"
