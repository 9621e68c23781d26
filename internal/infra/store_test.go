package infra

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/benki/benki/internal/config"
	"github.com/benki/benki/internal/kv"
	"github.com/benki/benki/internal/logging"
)

func TestOpenStoreMemory(t *testing.T) {
	store, closeFn, err := OpenStore(context.Background(), config.Config{StoreBackend: config.BackendMemory}, logging.Discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer closeFn()
	if _, ok := store.(*kv.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}
}

func TestOpenStoreRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Config{StoreBackend: config.BackendRedis, RedisURL: "redis://" + mr.Addr(), RedisKeyPrefix: "t:"}

	store, closeFn, err := OpenStore(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer closeFn()

	if err := kv.SetJSON(context.Background(), store, "k", 1); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists("t:k") {
		t.Fatalf("expected prefixed key in redis")
	}
}

func TestOpenStoreRedisUnreachable(t *testing.T) {
	cfg := config.Config{StoreBackend: config.BackendRedis, RedisURL: "redis://127.0.0.1:1"}
	if _, _, err := OpenStore(context.Background(), cfg, logging.Discard()); err == nil {
		t.Fatalf("expected connection error")
	}
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	if _, _, err := OpenStore(context.Background(), config.Config{StoreBackend: "etcd"}, logging.Discard()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestOpenStoreFilePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "benki.json")
	cfg := config.Config{StoreBackend: config.BackendFile, StorePath: path}
	ctx := context.Background()

	store, closeFn, err := OpenStore(ctx, cfg, logging.Discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := kv.SetJSON(ctx, store, "user_profile_a@b.co", map[string]string{"firstName": "Ada"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	closeFn()

	reopened, closeFn, err := OpenStore(ctx, cfg, logging.Discard())
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer closeFn()
	got, found, err := kv.GetJSON[map[string]string](ctx, reopened, "user_profile_a@b.co")
	if err != nil || !found || got["firstName"] != "Ada" {
		t.Fatalf("expected persisted profile, got %v found=%v err=%v", got, found, err)
	}
}

func TestOpenStoreRemote(t *testing.T) {
	backing := kv.NewMemoryStore()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	h := kv.NewHandler(backing)
	api := app.Group("/api/v1")
	api.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })
	api.Get("/kv/:key", h.Get)
	api.Put("/kv/:key", h.Put)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	ctx := context.Background()
	cfg := config.Config{StoreBackend: config.BackendRemote, StoreURL: "http://" + ln.Addr().String() + "/api/v1"}
	store, closeFn, err := OpenStore(ctx, cfg, logging.Discard())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer closeFn()

	if err := kv.SetJSON(ctx, store, "k", 7); err != nil {
		t.Fatalf("set: %v", err)
	}
	raw, found, err := backing.Get(ctx, "k")
	if err != nil || !found || string(raw) != "7" {
		t.Fatalf("expected write to reach the server, got %s found=%v err=%v", raw, found, err)
	}
}

func TestOpenStoreRemoteUnreachable(t *testing.T) {
	cfg := config.Config{StoreBackend: config.BackendRemote, StoreURL: "http://127.0.0.1:1/api/v1"}
	if _, _, err := OpenStore(context.Background(), cfg, logging.Discard()); err == nil {
		t.Fatalf("expected connection error")
	}
}
