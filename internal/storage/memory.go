package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// ensure memoryBackend implements Backend
var _ Backend = (*memoryBackend)(nil)

type memoryBackend struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns a process-local Backend. Contents are lost on exit.
func NewMemory() Backend {
	return &memoryBackend{data: make(map[string][]byte)}
}

func (b *memoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (b *memoryBackend) Set(ctx context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = v
	return nil
}

func (b *memoryBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
	return nil
}

func (b *memoryBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var keys []string
	for k := range b.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *memoryBackend) Close() error { return nil }
