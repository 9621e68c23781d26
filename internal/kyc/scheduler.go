package kyc

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler polls the job index and completes due verifications. Jobs live in
// the store, so a restarted process picks up whatever was pending.
type Scheduler struct {
	service  *Service
	logger   *slog.Logger
	interval time.Duration
}

// NewScheduler builds a scheduler that checks for due jobs every interval.
func NewScheduler(service *Service, logger *slog.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Second
	}
	return &Scheduler{service: service, logger: logger, interval: interval}
}

// Run processes due jobs until ctx is cancelled. The first pass runs
// immediately to resume jobs left over from a previous process.
func (s *Scheduler) Run(ctx context.Context) {
	if jobs, err := s.service.Pending(ctx); err != nil {
		s.logger.Warn("load pending kyc jobs", slog.Any("error", err))
	} else {
		s.logger.Info("loaded pending kyc jobs", slog.Int("count", len(jobs)))
	}
	s.Tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick completes every job whose due time has passed and returns how many
// profiles were verified.
func (s *Scheduler) Tick(ctx context.Context) int {
	jobs, err := s.service.Pending(ctx)
	if err != nil {
		s.logger.Warn("list kyc jobs", slog.Any("error", err))
		return 0
	}
	now := s.service.now()
	verified := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			return verified
		}
		if job.DueAt.After(now) {
			continue
		}
		ok, err := s.service.Complete(ctx, job.UserID)
		if err != nil {
			s.logger.Error("complete kyc job", slog.String("user_id", job.UserID), slog.Any("error", err))
			continue
		}
		if ok {
			verified++
		}
	}
	return verified
}
