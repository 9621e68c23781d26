package kv

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore keeps documents in process memory. Useful for tests and local
// development.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]json.RawMessage
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]json.RawMessage)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	return cloneRaw(v), true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value json.RawMessage) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = cloneRaw(value)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *MemoryStore) Update(_ context.Context, keys []string, fn UpdateFunc) error {
	if err := validateKeys(keys); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	current := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		if v, ok := m.items[k]; ok {
			current[k] = cloneRaw(v)
		}
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if err := checkWriteSet(keys, next); err != nil {
		return err
	}
	for k, v := range next {
		if v == nil {
			delete(m.items, k)
			continue
		}
		m.items[k] = cloneRaw(v)
	}
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

// snapshot copies all entries; FileStore persists it.
func (m *MemoryStore) snapshot() map[string]json.RawMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(m.items))
	for k, v := range m.items {
		out[k] = cloneRaw(v)
	}
	return out
}
