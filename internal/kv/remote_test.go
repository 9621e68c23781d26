package kv

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startKVServer(t *testing.T, backing Store, failures *int32) string {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	if failures != nil {
		app.Use(func(c *fiber.Ctx) error {
			if atomic.AddInt32(failures, -1) >= 0 {
				return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "flaky"})
			}
			return c.Next()
		})
	}
	h := NewHandler(backing)
	api := app.Group("/api/v1")
	api.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })
	api.Get("/kv/:key", h.Get)
	api.Put("/kv/:key", h.Put)
	api.Delete("/kv/:key", h.Delete)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	return "http://" + ln.Addr().String() + "/api/v1"
}

func TestRemoteStoreRoundTrip(t *testing.T) {
	backing := NewMemoryStore()
	base := startKVServer(t, backing, nil)

	remote, err := NewRemoteStore(base, WithTimeout(2*time.Second))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, remote.Ping(ctx))

	_, ok, err := remote.Get(ctx, "user_profile_a@b.co")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, remote.Set(ctx, "user_profile_a@b.co", json.RawMessage(`{"id":"a@b.co"}`)))

	got, ok, err := remote.Get(ctx, "user_profile_a@b.co")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"id":"a@b.co"}`, string(got))

	stored, ok, err := backing.Get(ctx, "user_profile_a@b.co")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"id":"a@b.co"}`, string(stored))

	require.NoError(t, remote.Delete(ctx, "user_profile_a@b.co"))
	_, ok, err = backing.Get(ctx, "user_profile_a@b.co")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRemoteStoreUpdate(t *testing.T) {
	base := startKVServer(t, NewMemoryStore(), nil)
	remote, err := NewRemoteStore(base)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := UpdateJSON(ctx, remote, "counter", func(n int, _ bool) (int, error) { return n + 1, nil })
		require.NoError(t, err)
	}
	n, ok, err := GetJSON[int](ctx, remote, "counter")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, n)
}

func TestRemoteStoreRetriesServerErrors(t *testing.T) {
	failures := int32(2)
	base := startKVServer(t, NewMemoryStore(), &failures)
	remote, err := NewRemoteStore(base, WithRetry(3, 10*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, remote.Set(context.Background(), "k", json.RawMessage(`true`)))
}

func TestRemoteStoreGivesUpAfterRetries(t *testing.T) {
	failures := int32(10)
	base := startKVServer(t, NewMemoryStore(), &failures)
	remote, err := NewRemoteStore(base, WithRetry(2, time.Millisecond))
	require.NoError(t, err)

	err = remote.Set(context.Background(), "k", json.RawMessage(`true`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flaky")
}

func TestNewRemoteStoreRequiresAbsoluteURL(t *testing.T) {
	_, err := NewRemoteStore("/api/v1")
	assert.Error(t, err)
}
