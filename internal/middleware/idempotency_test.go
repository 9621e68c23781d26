package middleware

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/benki/benki/internal/kv"
	"github.com/benki/benki/internal/logging"
)

func replayApp(replays ReplayStore) (*fiber.App, *int) {
	app := fiber.New()
	app.Use(Idempotency(replays, time.Minute, logging.Discard()))
	calls := 0
	app.Post("/resource", func(c *fiber.Ctx) error {
		calls++
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true, "call": calls})
	})
	return app, &calls
}

func redisReplays(t *testing.T) (ReplayStore, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisReplayStore(cache), func() {
		cache.Close()
		mr.Close()
	}
}

func post(t *testing.T, app *fiber.App, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/resource", strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestIdempotencyWithoutHeaderPassesThrough(t *testing.T) {
	replays, cleanup := redisReplays(t)
	defer cleanup()
	app, calls := replayApp(replays)

	for i := 0; i < 2; i++ {
		if code, _ := post(t, app, ""); code != fiber.StatusCreated {
			t.Fatalf("expected %d got %d", fiber.StatusCreated, code)
		}
	}
	if *calls != 2 {
		t.Fatalf("expected handler to run twice, ran %d times", *calls)
	}
}

func TestIdempotencyNilStoreIsNoop(t *testing.T) {
	app, calls := replayApp(nil)
	post(t, app, "abc")
	post(t, app, "abc")
	if *calls != 2 {
		t.Fatalf("expected handler to run twice, ran %d times", *calls)
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	redisStore, cleanup := redisReplays(t)
	defer cleanup()

	backends := map[string]ReplayStore{
		"redis": redisStore,
		"kv":    NewStoreReplayStore(kv.NewMemoryStore()),
	}
	for name, replays := range backends {
		t.Run(name, func(t *testing.T) {
			app, calls := replayApp(replays)

			code, payload := post(t, app, "abc123")
			if code != fiber.StatusCreated {
				t.Fatalf("expected status %d got %d", fiber.StatusCreated, code)
			}

			// Second request should return the cached response without invoking handler again.
			code, cached := post(t, app, "abc123")
			if code != fiber.StatusCreated {
				t.Fatalf("expected cached status %d got %d", fiber.StatusCreated, code)
			}
			if cached != payload {
				t.Fatalf("expected cached payload %s got %s", payload, cached)
			}

			var decoded map[string]any
			if err := json.Unmarshal([]byte(cached), &decoded); err != nil {
				t.Fatalf("cached payload invalid json: %v", err)
			}
			if *calls != 1 {
				t.Fatalf("expected handler to run once, ran %d times", *calls)
			}

			post(t, app, "other")
			if *calls != 2 {
				t.Fatalf("a new key must reach the handler")
			}
		})
	}
}

func TestStoreReplayExpires(t *testing.T) {
	replays := NewStoreReplayStore(kv.NewMemoryStore())
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	replays.now = func() time.Time { return now }
	app, calls := replayApp(replays)

	post(t, app, "k")
	now = now.Add(2 * time.Minute)
	post(t, app, "k")
	if *calls != 2 {
		t.Fatalf("expected expired key to run the handler again, ran %d times", *calls)
	}
}
