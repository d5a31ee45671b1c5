package sqliteutil

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

const testDDL = `
CREATE TABLE IF NOT EXISTS widgets (id INTEGER PRIMARY KEY);
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);
`

func TestEnsureSchemaCreatesThenChecksVersion(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()

	schema := Schema{DDL: testDDL, Version: 1, Hint: "delete test.db"}
	if err := EnsureSchema(ctx, db, schema); err != nil {
		t.Fatalf("first EnsureSchema: %v", err)
	}
	if err := EnsureSchema(ctx, db, schema); err != nil {
		t.Fatalf("reopen EnsureSchema: %v", err)
	}
	if _, err := db.ExecContext(ctx, "INSERT INTO widgets (id) VALUES (1)"); err != nil {
		t.Fatalf("schema not applied: %v", err)
	}

	schema.Version = 2
	err = EnsureSchema(ctx, db, schema)
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
	if !strings.Contains(err.Error(), "delete test.db") {
		t.Fatalf("expected hint in %q", err)
	}
}
