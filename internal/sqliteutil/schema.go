package sqliteutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrSchemaMismatch reports a database created with another schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Schema is the DDL of one store and the version recorded alongside it.
type Schema struct {
	DDL     string
	Version int
	// Hint is appended to mismatch errors, e.g. which file to delete.
	Hint string
}

// EnsureSchema creates the schema on an empty database and otherwise checks
// the recorded version. A store never migrates in place.
func EnsureSchema(ctx context.Context, db *sql.DB, schema Schema) error {
	ctx = EnsureContext(ctx)
	var tables int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tables); err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tables == 0 {
		return InTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, schema.DDL); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}
			if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schema.Version); err != nil {
				return fmt.Errorf("record schema version: %w", err)
			}
			return nil
		})
	}

	var version int
	if err := db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schema.Version {
		err := fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schema.Version)
		if schema.Hint != "" {
			err = fmt.Errorf("%w (%s)", err, schema.Hint)
		}
		return err
	}
	return nil
}
