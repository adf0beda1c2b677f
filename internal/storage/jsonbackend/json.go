package jsonbackend

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/FranksOps/quarry/internal/storage"
)

// ensure jsonBackend implements storage.Backend
var _ storage.Backend = (*jsonBackend)(nil)

// record is one line of the append-only log.
type record struct {
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

// compactMin is the log length below which the file is never rewritten.
const compactMin = 256

type jsonBackend struct {
	mu    sync.Mutex
	path  string
	file  *os.File
	index map[string][]byte
	// records is the number of lines in the log, live or not.
	records int
}

// New creates a new NDJSON-backed storage.Backend. Every write appends a
// record; the file is replayed on open so the last record per key wins.
// Once superseded and deleted records outnumber live ones the log is
// rewritten with one record per live key.
func New(filePath string) (storage.Backend, error) {
	// Open file for appending, create if it doesn't exist
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open json store: %w", err)
	}

	b := &jsonBackend{
		path:  filePath,
		file:  f,
		index: make(map[string][]byte),
	}
	if err := b.replay(); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := b.terminate(); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := b.maybeCompact(); err != nil {
		_ = b.file.Close()
		return nil, err
	}
	return b, nil
}

func (b *jsonBackend) maybeCompact() error {
	if b.records < compactMin || b.records <= 2*len(b.index) {
		return nil
	}
	return b.compact()
}

// compact writes the live index to a temporary file next to the log and
// renames it over the log, so a crash leaves either the old or the new file.
func (b *jsonBackend) compact() error {
	tmp, err := os.CreateTemp(filepath.Dir(b.path), filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("compact json store: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	keys := make([]string, 0, len(b.index))
	for k := range b.index {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := bufio.NewWriter(tmp)
	for _, k := range keys {
		data, err := json.Marshal(record{Key: k, Value: string(b.index[k])})
		if err != nil {
			_ = tmp.Close()
			return fmt.Errorf("encode json record: %w", err)
		}
		_, _ = w.Write(data)
		_ = w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("compact json store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("compact json store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("compact json store: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("compact json store: %w", err)
	}

	f, err := os.OpenFile(b.path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("reopen json store: %w", err)
	}
	_ = b.file.Close()
	b.file = f
	b.records = len(keys)
	return nil
}

// terminate makes sure the next append starts on a fresh line.
func (b *jsonBackend) terminate() error {
	info, err := b.file.Stat()
	if err != nil {
		return fmt.Errorf("stat json store: %w", err)
	}
	if info.Size() == 0 {
		return nil
	}
	last := make([]byte, 1)
	if _, err := b.file.ReadAt(last, info.Size()-1); err != nil {
		return fmt.Errorf("read json store: %w", err)
	}
	if last[0] != '\n' {
		if _, err := b.file.Write([]byte{'\n'}); err != nil {
			return fmt.Errorf("write json store: %w", err)
		}
	}
	return nil
}

func (b *jsonBackend) replay() error {
	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("replay json store: %w", err)
	}
	defer func() {
		// Restore pointer to end for writing
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	scanner := bufio.NewScanner(b.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		b.records++

		var r record
		if err := json.Unmarshal(line, &r); err != nil {
			// a torn final write must not make the whole store unreadable
			continue
		}
		if r.Deleted {
			delete(b.index, r.Key)
			continue
		}
		b.index[r.Key] = []byte(r.Value)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("replay json store: %w", err)
	}
	return nil
}

func (b *jsonBackend) append(r record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode json record: %w", err)
	}
	if _, err := b.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write json record: %w", err)
	}
	b.records++
	return nil
}

func (b *jsonBackend) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	v, ok := b.index[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (b *jsonBackend) Set(ctx context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.append(record{Key: key, Value: string(value)}); err != nil {
		return err
	}
	v := make([]byte, len(value))
	copy(v, value)
	b.index[key] = v
	return b.maybeCompact()
}

func (b *jsonBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.index[key]; !ok {
		return nil
	}
	if err := b.append(record{Key: key, Deleted: true}); err != nil {
		return err
	}
	delete(b.index, key)
	return b.maybeCompact()
}

func (b *jsonBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var keys []string
	for k := range b.index {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (b *jsonBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
