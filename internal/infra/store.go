package infra

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/benki/benki/internal/config"
	"github.com/benki/benki/internal/kv"
)

// OpenStore connects the key-value backend selected by cfg.StoreBackend. The
// returned close function releases the underlying connections.
func OpenStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (kv.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		client, err := NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}
		return kv.NewRedisStore(client, cfg.RedisKeyPrefix), closeFn, nil

	case config.BackendPostgres:
		if err := kv.RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
		pool, err := NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return kv.NewPostgresStore(pool), pool.Close, nil

	case config.BackendFile:
		if dir := filepath.Dir(cfg.StorePath); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create store dir: %w", err)
			}
		}
		store, err := kv.OpenFileStore(cfg.StorePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using file store", "path", cfg.StorePath)
		return store, func() {}, nil

	case config.BackendRemote:
		store, err := kv.NewRemoteStore(cfg.StoreURL)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Ping(ctx); err != nil {
			return nil, nil, fmt.Errorf("ping remote store: %w", err)
		}
		logger.Warn("using remote store; multi-key updates are not atomic", "url", cfg.StoreURL)
		return store, func() {}, nil

	case config.BackendMemory:
		logger.Warn("using in-memory store; data is lost on restart")
		return kv.NewMemoryStore(), func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
