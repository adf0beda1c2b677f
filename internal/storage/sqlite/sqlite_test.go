package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/FranksOps/quarry/internal/storage/storagetest"
)

func TestSQLiteBackend(t *testing.T) {
	// Use an in-memory database for testing
	dsn := "file::memory:?cache=shared"
	b, err := New(dsn)
	if err != nil {
		t.Fatalf("Failed to create SQLite backend: %v", err)
	}
	defer b.Close()

	storagetest.Run(t, b)
}

func TestSQLiteBackend_PersistsAcrossReopen(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "quarry.db")
	ctx := context.Background()

	b, err := New(dsn)
	if err != nil {
		t.Fatalf("Failed to create SQLite backend: %v", err)
	}
	if err := b.Set(ctx, "library:history", []byte(`["cats"]`)); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	reopened, err := New(dsn)
	if err != nil {
		t.Fatalf("Failed to reopen SQLite backend: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, "library:history")
	if err != nil {
		t.Fatalf("Failed to get after reopen: %v", err)
	}
	if string(got) != `["cats"]` {
		t.Errorf("Expected [\"cats\"], got %s", got)
	}
}
