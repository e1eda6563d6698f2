package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/ormql/internal/dialect"
	"github.com/roach88/ormql/internal/schema"
)

// createTestStore creates a new SQLite store with the gallery schema applied.
func createTestStore(t *testing.T) (*Store, *schema.Schema) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	sc, err := schema.LoadFile("../schema/testdata/gallery.yaml")
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if err := s.ApplySchema(context.Background(), sc, dialect.MustLookup(dialect.SQLite)); err != nil {
		t.Fatalf("ApplySchema() failed: %v", err)
	}
	return s, sc
}
