package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SESSION_SECRET", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "Benki", cfg.AppName)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, 5*time.Second, cfg.KYCVerifyDelay)
	assert.Equal(t, 30*time.Second, cfg.MarketCacheTTL)
	assert.Equal(t, time.Minute, cfg.PerformanceCacheTTL)
	assert.Equal(t, devSessionSecret, cfg.SessionSecret)
	assert.False(t, cfg.RequireSession)
	assert.Equal(t, ":8080", cfg.Address())
}

func TestFromEnvInfersRedisBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.StoreBackend)
}

func TestFromEnvRejectsMissingBackendURL(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := FromEnv()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestFromEnvLocalAndRemoteBackends(t *testing.T) {
	t.Setenv("STORE_BACKEND", "file")
	t.Setenv("STORE_PATH", "")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, BackendFile, cfg.StoreBackend)
	assert.Equal(t, defaultStorePath, cfg.StorePath)

	t.Setenv("STORE_BACKEND", "remote")
	t.Setenv("STORE_URL", "")
	_, err = FromEnv()
	assert.ErrorContains(t, err, "STORE_URL")

	t.Setenv("STORE_URL", "http://benki.internal:8080/api/v1")
	cfg, err = FromEnv()
	require.NoError(t, err)
	assert.Equal(t, BackendRemote, cfg.StoreBackend)
	assert.Equal(t, "http://benki.internal:8080/api/v1", cfg.StoreURL)
}

func TestFromEnvParsesOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("API_PREFIX", "make-server/")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("KYC_VERIFY_DELAY", "250ms")
	t.Setenv("REQUIRE_SESSION", "true")
	t.Setenv("PORT", ":9000")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "/make-server", cfg.APIPrefix)
	assert.Equal(t, 3*time.Second, cfg.ShutdownPeriod)
	assert.Equal(t, 250*time.Millisecond, cfg.KYCVerifyDelay)
	assert.True(t, cfg.RequireSession)
	assert.Equal(t, ":9000", cfg.Address())
}

func TestFromEnvInvalidDuration(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("MARKET_CACHE_TTL", "soon")

	_, err := FromEnv()
	assert.ErrorContains(t, err, "MARKET_CACHE_TTL")
}

func TestFromEnvRequiresSecretOutsideDev(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("APP_ENV", "production")
	t.Setenv("SESSION_SECRET", "")

	_, err := FromEnv()
	assert.ErrorContains(t, err, "SESSION_SECRET")
}
