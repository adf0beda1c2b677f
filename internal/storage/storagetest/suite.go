// Package storagetest holds the behaviour every storage.Backend must share.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/FranksOps/quarry/internal/storage"
)

// Run exercises b against the storage.Backend contract. The backend must be
// empty for the "suite:" prefix when Run starts.
func Run(t *testing.T, b storage.Backend) {
	t.Helper()
	ctx := context.Background()

	if _, err := b.Get(ctx, "suite:missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing key, got %v", err)
	}

	if err := b.Set(ctx, "suite:b", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	if err := b.Set(ctx, "suite:a", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}
	if err := b.Set(ctx, "other:c", []byte(`x`)); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}

	got, err := b.Get(ctx, "suite:a")
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if string(got) != `{"v":1}` {
		t.Errorf("Expected {\"v\":1}, got %s", got)
	}

	// overwrite
	if err := b.Set(ctx, "suite:a", []byte(`{"v":3}`)); err != nil {
		t.Fatalf("Failed to overwrite: %v", err)
	}
	got, _ = b.Get(ctx, "suite:a")
	if string(got) != `{"v":3}` {
		t.Errorf("Expected overwritten value, got %s", got)
	}

	keys, err := b.Keys(ctx, "suite:")
	if err != nil {
		t.Fatalf("Failed to list keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "suite:a" || keys[1] != "suite:b" {
		t.Errorf("Expected [suite:a suite:b], got %v", keys)
	}

	if err := b.Delete(ctx, "suite:a"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, err := b.Get(ctx, "suite:a"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	// deleting twice is not an error
	if err := b.Delete(ctx, "suite:a"); err != nil {
		t.Errorf("unexpected error deleting missing key: %v", err)
	}

	keys, _ = b.Keys(ctx, "suite:")
	if len(keys) != 1 || keys[0] != "suite:b" {
		t.Errorf("Expected [suite:b], got %v", keys)
	}
}
