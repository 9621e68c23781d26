package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore is a MemoryStore mirrored to a single JSON file after every
// mutation. It backs the client-side accessor the way browser local storage
// backed the web client.
type FileStore struct {
	mu   sync.Mutex
	path string
	mem  *MemoryStore
}

// OpenFileStore loads path if it exists and returns a store that rewrites it on
// every change.
func OpenFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path, mem: NewMemoryStore()}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return fs, nil
	}
	var items map[string]json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	for k, v := range items {
		fs.mem.items[k] = v
	}
	return fs, nil
}

func (f *FileStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	return f.mem.Get(ctx, key)
}

func (f *FileStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	if key == "" {
		return ErrEmptyKey
	}
	if value == nil {
		value = json.RawMessage("null")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commit(ctx, map[string]json.RawMessage{key: value})
}

func (f *FileStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commit(ctx, map[string]json.RawMessage{key: nil})
}

func (f *FileStore) Update(ctx context.Context, keys []string, fn UpdateFunc) error {
	if err := validateKeys(keys); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	state := f.mem.snapshot()
	current := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		if v, ok := state[k]; ok {
			current[k] = v
		}
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if err := checkWriteSet(keys, next); err != nil {
		return err
	}
	return f.commit(ctx, next)
}

// commit writes the state with next applied to disk and only then applies
// next in memory, so a failed write leaves both unchanged. f.mu must be held.
func (f *FileStore) commit(ctx context.Context, next map[string]json.RawMessage) error {
	if len(next) == 0 {
		return nil
	}
	candidate := f.mem.snapshot()
	keys := make([]string, 0, len(next))
	for k, v := range next {
		keys = append(keys, k)
		if v == nil {
			delete(candidate, k)
			continue
		}
		candidate[k] = v
	}
	if err := f.flush(candidate); err != nil {
		return err
	}
	return f.mem.Update(ctx, keys, func(map[string]json.RawMessage) (map[string]json.RawMessage, error) {
		return next, nil
	})
}

func (f *FileStore) Ping(context.Context) error {
	_, err := os.Stat(filepath.Dir(f.path))
	return err
}

// flush writes through a temp file and rename so readers never see a torn file.
func (f *FileStore) flush(state map[string]json.RawMessage) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".kv-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}
