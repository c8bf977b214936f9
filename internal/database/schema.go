package database

import _ "embed"

// Schema is the full schema produced by applying every migration, used by tests
// that need a ready database without running the migrator.
//
//go:embed sqlc/schema.sql
var Schema string
