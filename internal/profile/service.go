package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benki/benki/internal/kv"
)

// ErrInvalidPatch is returned when a profile update body is not a JSON object
// of profile fields.
var ErrInvalidPatch = errors.New("profile update must be a JSON object of profile fields")

// protectedFields are owned by the KYC, circle and portfolio workflows and are
// never taken from a client patch.
var protectedFields = []string{
	"id",
	"kycStatus",
	"kycData",
	"kycSubmittedAt",
	"kycVerifiedAt",
	"kycReviewNote",
	"joinedCircles",
	"investments",
	"createdAt",
	"updatedAt",
	"schemaVersion",
}

// Service reads and merges user profiles.
type Service struct {
	store  kv.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a profile service.
func NewService(store kv.Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Get returns the stored profile or a defaulted one when none exists. A
// stored profile from an older schema is upgraded and written back once.
func (s *Service) Get(ctx context.Context, userID string) (Profile, error) {
	key := Key(userID)
	p, found, err := kv.GetJSON[Profile](ctx, s.store, key)
	if err != nil {
		return Profile{}, err
	}
	now := s.now()
	if !found {
		return Default(userID, now), nil
	}
	if Normalize(&p, userID, now) {
		if _, err := s.migrate(ctx, userID); err != nil {
			s.logger.Warn("profile migration write failed", slog.String("user_id", userID), slog.Any("error", err))
		}
	}
	return p, nil
}

func (s *Service) migrate(ctx context.Context, userID string) (Profile, error) {
	return kv.UpdateJSON(ctx, s.store, Key(userID), func(p Profile, found bool) (Profile, error) {
		if !found {
			return Default(userID, s.now()), nil
		}
		Normalize(&p, userID, s.now())
		return p, nil
	})
}

// Update shallow-merges patch over the stored profile (or the defaults) and
// saves the result.
func (s *Service) Update(ctx context.Context, userID string, patch []byte) (Profile, error) {
	fields, err := parsePatch(patch)
	if err != nil {
		return Profile{}, err
	}
	return kv.UpdateJSON(ctx, s.store, Key(userID), func(p Profile, found bool) (Profile, error) {
		now := s.now()
		if !found {
			p = Default(userID, now)
		}
		Normalize(&p, userID, now)
		if err := json.Unmarshal(fields, &p); err != nil {
			return Profile{}, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
		}
		p.ID = userID
		p.UpdatedAt = now
		return p, nil
	})
}

// parsePatch validates the body and drops the protected fields.
func parsePatch(patch []byte) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(patch, &fields); err != nil || fields == nil {
		return nil, ErrInvalidPatch
	}
	for _, name := range protectedFields {
		delete(fields, name)
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode patch: %w", err)
	}
	return out, nil
}

// FromSnapshot decodes userID's profile out of an Update snapshot, falling
// back to the defaults when it is absent.
func FromSnapshot(current map[string]json.RawMessage, userID string, now time.Time) (Profile, error) {
	var p Profile
	found, err := kv.Decode(current, Key(userID), &p)
	if err != nil {
		return Profile{}, err
	}
	if !found {
		return Default(userID, now), nil
	}
	Normalize(&p, userID, now)
	return p, nil
}
