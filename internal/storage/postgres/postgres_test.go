package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/FranksOps/quarry/internal/storage/storagetest"
)

func TestPostgresBackend(t *testing.T) {
	// Only run this test if QUARRY_TEST_POSTGRES_DSN is set
	dsn := os.Getenv("QUARRY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("Skipping Postgres backend test: QUARRY_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	b, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to create Postgres backend: %v", err)
	}
	defer b.Close()

	// leftovers from an earlier run
	keys, err := b.Keys(ctx, "suite:")
	if err != nil {
		t.Fatalf("Failed to list keys: %v", err)
	}
	for _, k := range keys {
		_ = b.Delete(ctx, k)
	}

	storagetest.Run(t, b)
}
