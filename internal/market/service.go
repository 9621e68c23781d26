// Package market serves simulated exchange and product data behind a
// short-lived cache kept in the state store.
package market

import (
	"context"
	"log/slog"
	"time"

	"github.com/benki/benki/internal/kv"
)

const (
	// IndicesKey caches the exchange quotes.
	IndicesKey = "market_data"
	// PerformanceKey caches the product performance list.
	PerformanceKey = "investment_performance"
)

// snapshot is the cached form of generated data.
type snapshot[T any] struct {
	Data      []T       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Service returns cached or freshly generated market data.
type Service struct {
	store          kv.Store
	source         Source
	logger         *slog.Logger
	indicesTTL     time.Duration
	performanceTTL time.Duration
	now            func() time.Time
}

// NewService constructs the market service.
func NewService(store kv.Store, source Source, logger *slog.Logger, indicesTTL, performanceTTL time.Duration) *Service {
	return &Service{
		store:          store,
		source:         source,
		logger:         logger,
		indicesTTL:     indicesTTL,
		performanceTTL: performanceTTL,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Indices returns exchange quotes.
func (s *Service) Indices(ctx context.Context) []Index {
	return cached(ctx, s, IndicesKey, s.indicesTTL, s.source.Indices, FallbackIndices)
}

// Performance returns product performance.
func (s *Service) Performance(ctx context.Context) []Performance {
	return cached(ctx, s, PerformanceKey, s.performanceTTL, s.source.Performance, FallbackPerformance)
}

// cached serves the snapshot under key while it is younger than ttl. Cache
// read and write failures are logged; a generation failure serves fallback.
func cached[T any](ctx context.Context, s *Service, key string, ttl time.Duration, generate func() ([]T, error), fallback func() []T) []T {
	now := s.now()
	snap, found, err := kv.GetJSON[snapshot[T]](ctx, s.store, key)
	if err != nil {
		s.logger.Warn("read market cache", slog.String("key", key), slog.Any("error", err))
	} else if found && now.Sub(snap.Timestamp) < ttl {
		return snap.Data
	}

	data, err := generate()
	if err != nil {
		s.logger.Error("generate market data", slog.String("key", key), slog.Any("error", err))
		return fallback()
	}
	if err := kv.SetJSON(ctx, s.store, key, snapshot[T]{Data: data, Timestamp: now}); err != nil {
		s.logger.Warn("write market cache", slog.String("key", key), slog.Any("error", err))
	}
	return data
}
