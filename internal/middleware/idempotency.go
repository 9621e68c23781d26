package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/benki/benki/internal/kv"
	"github.com/benki/benki/internal/userstate"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "idempotency_"
	inProgressMarker     = "__in_progress__"
	replayTimeout        = 2 * time.Second
)

// Replay is a response recorded under an idempotency key.
type Replay struct {
	Status     int               `json:"status"`
	Body       string            `json:"body"`
	Headers    map[string]string `json:"headers"`
	InProgress bool              `json:"inProgress,omitempty"`
	ExpiresAt  time.Time         `json:"expiresAt"`
}

// ReplayStore reserves idempotency keys and keeps finished responses.
// Reserve returns the existing record when the key is taken, or nil after
// reserving it for the caller.
type ReplayStore interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (*Replay, error)
	Save(ctx context.Context, key string, r Replay, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// RedisReplayStore keeps replays in Redis with native expiry.
type RedisReplayStore struct {
	client *redis.Client
}

// NewRedisReplayStore wraps a Redis client.
func NewRedisReplayStore(client *redis.Client) *RedisReplayStore {
	return &RedisReplayStore{client: client}
}

func (s *RedisReplayStore) Reserve(ctx context.Context, key string, ttl time.Duration) (*Replay, error) {
	ok, err := s.client.SetNX(ctx, idempotencyPrefix+key, inProgressMarker, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if ok {
		return nil, nil
	}
	raw, err := s.client.Get(ctx, idempotencyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return s.Reserve(ctx, key, ttl)
	}
	if err != nil {
		return nil, fmt.Errorf("read idempotency key: %w", err)
	}
	if raw == inProgressMarker {
		return &Replay{InProgress: true}, nil
	}
	var r Replay
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("decode replay: %w", err)
	}
	return &r, nil
}

func (s *RedisReplayStore) Save(ctx context.Context, key string, r Replay, ttl time.Duration) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, idempotencyPrefix+key, payload, ttl).Err()
}

func (s *RedisReplayStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, idempotencyPrefix+key).Err()
}

// StoreReplayStore keeps replays as documents in the key-value store.
// Expiry is checked on read.
type StoreReplayStore struct {
	store kv.Store
	now   func() time.Time
}

// NewStoreReplayStore wraps a kv.Store.
func NewStoreReplayStore(store kv.Store) *StoreReplayStore {
	return &StoreReplayStore{store: store, now: time.Now}
}

func (s *StoreReplayStore) Reserve(ctx context.Context, key string, ttl time.Duration) (*Replay, error) {
	var existing *Replay
	k := idempotencyPrefix + key
	err := s.store.Update(ctx, []string{k}, func(current map[string]json.RawMessage) (map[string]json.RawMessage, error) {
		existing = nil
		var r Replay
		found, err := kv.Decode(current, k, &r)
		if err != nil {
			return nil, err
		}
		now := s.now()
		if found && now.Before(r.ExpiresAt) {
			existing = &r
			return map[string]json.RawMessage{}, nil
		}
		next := map[string]json.RawMessage{}
		if err := kv.Encode(next, k, Replay{InProgress: true, ExpiresAt: now.Add(ttl)}); err != nil {
			return nil, err
		}
		return next, nil
	})
	if err != nil {
		return nil, fmt.Errorf("reserve idempotency key: %w", err)
	}
	return existing, nil
}

func (s *StoreReplayStore) Save(ctx context.Context, key string, r Replay, ttl time.Duration) error {
	r.ExpiresAt = s.now().Add(ttl)
	return kv.SetJSON(ctx, s.store, idempotencyPrefix+key, r)
}

func (s *StoreReplayStore) Release(ctx context.Context, key string) error {
	return s.store.Delete(ctx, idempotencyPrefix+key)
}

// Idempotency replays the recorded response for unsafe requests that repeat
// an Idempotency-Key header. Requests without the header, and every request
// when replays is nil, pass straight through. Keys are scoped per signed-in
// user.
func Idempotency(replays ReplayStore, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if replays == nil {
			return c.Next()
		}
		switch strings.ToUpper(c.Method()) {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		key := c.Get(idempotencyKeyHeader)
		if key == "" {
			return c.Next()
		}
		if s, ok := userstate.FromContext(c.UserContext()); ok {
			key = s.UserID + ":" + key
		}

		ctx, cancel := context.WithTimeout(context.Background(), replayTimeout)
		defer cancel()

		existing, err := replays.Reserve(ctx, key, ttl)
		if err != nil {
			logger.Error("idempotency reservation failed", slog.String("key", key), slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "idempotency store failure")
		}
		if existing != nil {
			if existing.InProgress {
				return fiber.NewError(fiber.StatusConflict, "duplicate request currently processing")
			}
			for header, value := range existing.Headers {
				if strings.EqualFold(header, fiber.HeaderContentLength) {
					continue
				}
				c.Set(header, value)
			}
			return c.Status(existing.Status).SendString(existing.Body)
		}

		if err := c.Next(); err != nil {
			releaseCtx, cancel := context.WithTimeout(context.Background(), replayTimeout)
			defer cancel()
			_ = replays.Release(releaseCtx, key)
			return err
		}

		replay := Replay{
			Status:  c.Response().StatusCode(),
			Body:    string(c.Response().Body()),
			Headers: map[string]string{},
		}
		c.Response().Header.VisitAll(func(k, v []byte) {
			replay.Headers[string(k)] = string(v)
		})

		saveCtx, saveCancel := context.WithTimeout(context.Background(), replayTimeout)
		defer saveCancel()
		if err := replays.Save(saveCtx, key, replay, ttl); err != nil {
			logger.Error("failed to persist idempotent response", slog.String("key", key), slog.Any("error", err))
			_ = replays.Release(saveCtx, key)
		}
		return nil
	}
}
