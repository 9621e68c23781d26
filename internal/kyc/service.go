package kyc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/benki/benki/internal/kv"
	"github.com/benki/benki/internal/notification"
	"github.com/benki/benki/internal/profile"
)

// Service runs the KYC workflow: submission, manual review and the delayed
// automatic verification.
type Service struct {
	store    kv.Store
	notifier notification.Notifier
	logger   *slog.Logger
	delay    time.Duration
	now      func() time.Time
}

// NewService constructs the KYC workflow. delay is how long a submission
// waits before it is verified automatically.
func NewService(store kv.Store, notifier notification.Notifier, logger *slog.Logger, delay time.Duration) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   logger,
		delay:    delay,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// state is everything a KYC transition reads and writes in one Update.
type state struct {
	profile profile.Profile
	job     *Job
	index   []string
}

func keys(userID string) []string {
	return []string{profile.Key(userID), JobKey(userID), IndexKey}
}

func load(current map[string]json.RawMessage, userID string, now time.Time) (state, error) {
	var st state
	p, err := profile.FromSnapshot(current, userID, now)
	if err != nil {
		return st, err
	}
	st.profile = p
	var job Job
	found, err := kv.Decode(current, JobKey(userID), &job)
	if err != nil {
		return st, err
	}
	if found {
		st.job = &job
	}
	if _, err := kv.Decode(current, IndexKey, &st.index); err != nil {
		return st, err
	}
	return st, nil
}

func (st state) encode(userID string) (map[string]json.RawMessage, error) {
	next := make(map[string]json.RawMessage, 3)
	if err := kv.Encode(next, profile.Key(userID), st.profile); err != nil {
		return nil, err
	}
	if st.job == nil {
		next[JobKey(userID)] = nil
		st.index = removeFromIndex(st.index, userID)
	} else {
		if err := kv.Encode(next, JobKey(userID), *st.job); err != nil {
			return nil, err
		}
		st.index = addToIndex(st.index, userID)
	}
	if err := kv.Encode(next, IndexKey, st.index); err != nil {
		return nil, err
	}
	return next, nil
}

// Submit stores the KYC payload, marks the profile submitted and arms the
// automatic verification job. Resubmitting while submitted replaces the
// payload and re-arms the job.
func (s *Service) Submit(ctx context.Context, userID string, payload []byte) (profile.Profile, error) {
	var data map[string]any
	if err := json.Unmarshal(payload, &data); err != nil || data == nil {
		return profile.Profile{}, ErrInvalidPayload
	}

	var result profile.Profile
	err := s.store.Update(ctx, keys(userID), func(current map[string]json.RawMessage) (map[string]json.RawMessage, error) {
		now := s.now()
		st, err := load(current, userID, now)
		if err != nil {
			return nil, err
		}
		if !CanTransition(st.profile.KYCStatus, profile.KYCSubmitted) {
			return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, st.profile.KYCStatus, profile.KYCSubmitted)
		}
		st.profile.KYCStatus = profile.KYCSubmitted
		st.profile.KYCData = data
		st.profile.KYCSubmittedAt = &now
		st.profile.KYCVerifiedAt = nil
		st.profile.KYCReviewNote = ""
		st.profile.UpdatedAt = now
		st.job = &Job{UserID: userID, DueAt: now.Add(s.delay), CreatedAt: now}
		result = st.profile
		return st.encode(userID)
	})
	if err != nil {
		return profile.Profile{}, err
	}
	s.logger.Info("kyc submitted", slog.String("user_id", userID), slog.Duration("verify_in", s.delay))
	return result, nil
}

// Review applies a manual decision to a submitted profile and cancels its
// pending job.
func (s *Service) Review(ctx context.Context, userID string, decision profile.KYCStatus, note string) (profile.Profile, error) {
	if decision != profile.KYCVerified && decision != profile.KYCRejected {
		return profile.Profile{}, ErrInvalidDecision
	}

	var result profile.Profile
	err := s.store.Update(ctx, keys(userID), func(current map[string]json.RawMessage) (map[string]json.RawMessage, error) {
		now := s.now()
		st, err := load(current, userID, now)
		if err != nil {
			return nil, err
		}
		if st.profile.KYCStatus != profile.KYCSubmitted || !CanTransition(st.profile.KYCStatus, decision) {
			return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, st.profile.KYCStatus, decision)
		}
		st.profile.KYCStatus = decision
		st.profile.KYCReviewNote = note
		st.profile.UpdatedAt = now
		if decision == profile.KYCVerified {
			st.profile.KYCVerifiedAt = &now
		}
		st.job = nil
		result = st.profile
		return st.encode(userID)
	})
	if err != nil {
		return profile.Profile{}, err
	}
	s.announce(ctx, result)
	return result, nil
}

// Complete fires userID's job if it is due. It reports whether the profile
// was verified. A profile that has left the submitted state only has its job
// discarded.
func (s *Service) Complete(ctx context.Context, userID string) (bool, error) {
	var (
		verified bool
		result   profile.Profile
	)
	err := s.store.Update(ctx, keys(userID), func(current map[string]json.RawMessage) (map[string]json.RawMessage, error) {
		verified = false
		now := s.now()
		st, err := load(current, userID, now)
		if err != nil {
			return nil, err
		}
		if st.job != nil && st.job.DueAt.After(now) {
			return map[string]json.RawMessage{}, nil
		}
		if st.profile.KYCStatus == profile.KYCSubmitted {
			st.profile.KYCStatus = profile.KYCVerified
			st.profile.KYCVerifiedAt = &now
			st.profile.UpdatedAt = now
			verified = true
		}
		st.job = nil
		result = st.profile
		if !verified {
			return dropJob(st, userID)
		}
		return st.encode(userID)
	})
	if err != nil {
		return false, err
	}
	if verified {
		s.logger.Info("kyc verified", slog.String("user_id", userID))
		s.announce(ctx, result)
	}
	return verified, nil
}

// dropJob removes the job and its index entry without touching the profile.
func dropJob(st state, userID string) (map[string]json.RawMessage, error) {
	next := map[string]json.RawMessage{JobKey(userID): nil}
	if err := kv.Encode(next, IndexKey, removeFromIndex(st.index, userID)); err != nil {
		return nil, err
	}
	return next, nil
}

// Pending returns every job currently registered in the index.
func (s *Service) Pending(ctx context.Context) ([]Job, error) {
	index, _, err := kv.GetJSON[[]string](ctx, s.store, IndexKey)
	if err != nil {
		return nil, err
	}
	jobs := make([]Job, 0, len(index))
	for _, userID := range index {
		job, found, err := kv.GetJSON[Job](ctx, s.store, JobKey(userID))
		if err != nil {
			return nil, err
		}
		if !found {
			job = Job{UserID: userID}
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (s *Service) announce(ctx context.Context, p profile.Profile) {
	kind := notification.KindKYCRejected
	body := "Your identity verification was not approved."
	if p.KYCStatus == profile.KYCVerified {
		kind = notification.KindKYCVerified
		body = "Your identity has been verified."
	}
	dest := p.Email
	if dest == "" {
		dest = p.ID
	}
	notification.Notify(ctx, s.notifier, s.logger, notification.Message{Kind: kind, Destination: dest, Body: body})
}
