package tracks

import (
	"context"
	_ "embed"

	"panotrack/internal/sqliteutil"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

func (s *Store) initSchema(ctx context.Context) error {
	return sqliteutil.EnsureSchema(ctx, s.db, sqliteutil.Schema{
		DDL:     schemaSQL,
		Version: schemaVersion,
		Hint:    "export your tracks and delete " + s.path,
	})
}
