package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrEmptyKey is returned when a caller passes a blank key.
	ErrEmptyKey = errors.New("kv: empty key")

	// ErrConflict indicates an atomic update could not be applied because the
	// watched keys kept changing underneath it.
	ErrConflict = errors.New("kv: update conflict")
)

// UpdateFunc receives the current value of every requested key (missing keys
// are absent from the map) and returns the values to write back. A nil value
// deletes the key; keys left out of the returned map are not touched.
type UpdateFunc func(current map[string]json.RawMessage) (map[string]json.RawMessage, error)

// Store maps string keys to JSON documents. Get and Set act on a single key
// and the last writer wins; Update applies a read-modify-write over one or
// more keys atomically.
type Store interface {
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)
	Set(ctx context.Context, key string, value json.RawMessage) error
	Delete(ctx context.Context, key string) error
	Update(ctx context.Context, keys []string, fn UpdateFunc) error
	Ping(ctx context.Context) error
}

// Key builds a domain key by joining a namespace prefix and an identifier.
func Key(prefix, id string) string {
	return prefix + "_" + id
}

// GetJSON loads key and decodes it into T.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, bool, error) {
	var out T
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return out, false, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, true, nil
}

// SetJSON encodes value and stores it under key.
func SetJSON[T any](ctx context.Context, s Store, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

// Decode unmarshals the value for key from an UpdateFunc snapshot. It reports
// false when the key was absent.
func Decode[T any](current map[string]json.RawMessage, key string, dst *T) (bool, error) {
	raw, ok := current[key]
	if !ok || raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Encode marshals value into the write set of an UpdateFunc.
func Encode[T any](next map[string]json.RawMessage, key string, value T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	next[key] = raw
	return nil
}

// UpdateJSON is a single-key Update for a typed document. fn receives the
// decoded value (zero value when absent) and returns the value to store.
func UpdateJSON[T any](ctx context.Context, s Store, key string, fn func(current T, found bool) (T, error)) (T, error) {
	var result T
	err := s.Update(ctx, []string{key}, func(current map[string]json.RawMessage) (map[string]json.RawMessage, error) {
		var doc T
		found, err := Decode(current, key, &doc)
		if err != nil {
			return nil, err
		}
		next, err := fn(doc, found)
		if err != nil {
			return nil, err
		}
		result = next
		out := make(map[string]json.RawMessage, 1)
		if err := Encode(out, key, next); err != nil {
			return nil, err
		}
		return out, nil
	})
	return result, err
}

func validateKeys(keys []string) error {
	for _, k := range keys {
		if k == "" {
			return ErrEmptyKey
		}
	}
	return nil
}

// checkWriteSet rejects writes to keys the update did not lock.
func checkWriteSet(keys []string, next map[string]json.RawMessage) error {
	for k := range next {
		locked := false
		for _, want := range keys {
			if k == want {
				locked = true
				break
			}
		}
		if !locked {
			return fmt.Errorf("kv: update wrote unrequested key %q", k)
		}
	}
	return nil
}

func cloneRaw(v json.RawMessage) json.RawMessage {
	if v == nil {
		return nil
	}
	return append(json.RawMessage(nil), v...)
}
