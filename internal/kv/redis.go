package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultUpdateRetries = 8

// RedisStore keeps documents as JSON strings in Redis. Keys are stored
// verbatim behind an optional prefix.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	retries int
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, retries: defaultUpdateRetries}
}

func (r *RedisStore) key(k string) string { return r.prefix + k }

func (r *RedisStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return json.RawMessage(val), true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := r.client.Set(ctx, r.key(key), []byte(value), 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Update watches every key, runs fn over a consistent snapshot and commits the
// result in MULTI/EXEC. A concurrent write to a watched key aborts the commit
// and the whole read-modify-write is retried.
func (r *RedisStore) Update(ctx context.Context, keys []string, fn UpdateFunc) error {
	if err := validateKeys(keys); err != nil {
		return err
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
	}

	txf := func(tx *redis.Tx) error {
		vals, err := tx.MGet(ctx, full...).Result()
		if err != nil {
			return err
		}
		current := make(map[string]json.RawMessage, len(keys))
		for i, v := range vals {
			if s, ok := v.(string); ok {
				current[keys[i]] = json.RawMessage(s)
			}
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		if err := checkWriteSet(keys, next); err != nil {
			return err
		}
		if len(next) == 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for k, v := range next {
				if v == nil {
					pipe.Del(ctx, r.key(k))
					continue
				}
				pipe.Set(ctx, r.key(k), []byte(v), 0)
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < r.retries; attempt++ {
		err := r.client.Watch(ctx, txf, full...)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrConflict
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
