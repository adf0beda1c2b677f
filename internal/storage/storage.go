package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("storage: key not found")

// Backend is a small key/value store. Callers treat it as best-effort:
// the cache and the library log and swallow its failures.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys returns every key starting with prefix, sorted ascending.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}
