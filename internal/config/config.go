package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAppName         = "Benki"
	defaultAppEnv          = "development"
	defaultPort            = "8080"
	defaultLogLevel        = "info"
	defaultAPIPrefix       = "/api/v1"
	defaultShutdownDelay   = 10 * time.Second
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultKYCVerifyDelay  = 5 * time.Second
	defaultKYCPollInterval = time.Second
	defaultMarketCacheTTL  = 30 * time.Second
	defaultPerfCacheTTL    = time.Minute
	defaultRevalueInterval = time.Minute
	defaultSessionTTL      = 24 * time.Hour
	defaultRateLimitRPS    = 20
	defaultRateLimitBurst  = 40
	defaultRedisKeyPrefix  = "benki:"
	defaultStorePath       = "data/benki.json"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	devSessionSecret       = "benki-dev-session-secret"
)

// Store backends understood by STORE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendFile     = "file"
	BackendRemote   = "remote"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string
	AppEnv         string
	Port           string
	LogLevel       string
	APIPrefix      string
	StoreBackend   string
	DatabaseURL    string
	RedisURL       string
	RedisKeyPrefix string
	StorePath      string // file backend
	StoreURL       string // remote backend, e.g. http://host:8080/api/v1
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration

	KYCVerifyDelay  time.Duration
	KYCPollInterval time.Duration

	MarketCacheTTL      time.Duration
	PerformanceCacheTTL time.Duration
	RevalueInterval     time.Duration

	SessionSecret  string
	SessionTTL     time.Duration
	RequireSession bool

	RateLimitRPS   int
	RateLimitBurst int
}

// Load reads an optional .env file, then environment variables, and
// populates a Config instance.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		AppName:        getEnv("APP_NAME", defaultAppName),
		AppEnv:         getEnv("APP_ENV", defaultAppEnv),
		Port:           getEnv("PORT", defaultPort),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		APIPrefix:      "/" + strings.Trim(getEnv("API_PREFIX", defaultAPIPrefix), "/"),
		StoreBackend:   strings.ToLower(os.Getenv("STORE_BACKEND")),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisURL:       os.Getenv("REDIS_URL"),
		RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", defaultRedisKeyPrefix),
		StorePath:      getEnv("STORE_PATH", defaultStorePath),
		StoreURL:       os.Getenv("STORE_URL"),
		ShutdownPeriod: defaultShutdownDelay,
		IdempotencyTTL: defaultIdempotencyTTL,
		SessionSecret:  os.Getenv("SESSION_SECRET"),
	}

	var err error
	if cfg.ShutdownPeriod, err = secondsOrDuration(shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = secondsOrDuration(idemTTLSecondsEnvVar, idemTTLDurEnvVar, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}

	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"KYC_VERIFY_DELAY", defaultKYCVerifyDelay, &cfg.KYCVerifyDelay},
		{"KYC_POLL_INTERVAL", defaultKYCPollInterval, &cfg.KYCPollInterval},
		{"MARKET_CACHE_TTL", defaultMarketCacheTTL, &cfg.MarketCacheTTL},
		{"PERFORMANCE_CACHE_TTL", defaultPerfCacheTTL, &cfg.PerformanceCacheTTL},
		{"REVALUE_INTERVAL", defaultRevalueInterval, &cfg.RevalueInterval},
		{"SESSION_TTL", defaultSessionTTL, &cfg.SessionTTL},
	}
	for _, d := range durations {
		if *d.dst, err = getDuration(d.key, d.fallback); err != nil {
			return Config{}, err
		}
	}

	if cfg.RateLimitRPS, err = getInt("RATE_LIMIT_RPS", defaultRateLimitRPS); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitBurst, err = getInt("RATE_LIMIT_BURST", defaultRateLimitBurst); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("REQUIRE_SESSION"); v != "" {
		if cfg.RequireSession, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("invalid REQUIRE_SESSION: %w", err)
		}
	}

	if cfg.StoreBackend == "" {
		cfg.StoreBackend = inferBackend(cfg)
	}
	switch cfg.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set for STORE_BACKEND=redis")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set for STORE_BACKEND=postgres")
		}
	case BackendFile:
	case BackendRemote:
		if cfg.StoreURL == "" {
			return Config{}, fmt.Errorf("STORE_URL must be set for STORE_BACKEND=remote")
		}
	default:
		return Config{}, fmt.Errorf("invalid STORE_BACKEND %q", cfg.StoreBackend)
	}

	if cfg.SessionSecret == "" {
		if !cfg.IsDev() {
			return Config{}, fmt.Errorf("SESSION_SECRET must be set when APP_ENV=%s", cfg.AppEnv)
		}
		cfg.SessionSecret = devSessionSecret
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the app runs in a development-like environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func inferBackend(cfg Config) string {
	switch {
	case cfg.RedisURL != "":
		return BackendRedis
	case cfg.DatabaseURL != "":
		return BackendPostgres
	default:
		return BackendMemory
	}
}

func secondsOrDuration(secondsKey, durationKey string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsKey); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsKey, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	return getDuration(durationKey, fallback)
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
