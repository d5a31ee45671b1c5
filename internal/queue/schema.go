package queue

import (
	"context"
	_ "embed"

	"panotrack/internal/sqliteutil"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion changes whenever schema.sql does. The queue holds only
// transient work, so a mismatch is resolved by deleting the file.
const schemaVersion = 1

func (s *Store) initSchema(ctx context.Context) error {
	return sqliteutil.EnsureSchema(ctx, s.db, sqliteutil.Schema{
		DDL:     schemaSQL,
		Version: schemaVersion,
		Hint:    "delete " + s.path + " to recreate the queue",
	})
}
