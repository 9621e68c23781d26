// Package progress tracks a user's learning progress.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/benki/benki/internal/kv"
	"github.com/benki/benki/internal/userstate"
)

// ErrInvalidPatch is returned when an update body is not a JSON object.
var ErrInvalidPatch = errors.New("progress update must be a JSON object of progress fields")

// Progress is the document stored under user_progress_<id>.
type Progress struct {
	CompletedCourses  []string  `json:"completedCourses"`
	Achievements      []string  `json:"achievements"`
	TotalLearningTime float64   `json:"totalLearningTime"`
	UpdatedAt         time.Time `json:"updatedAt,omitempty"`
}

// Default returns the progress of a user who has not started learning.
func Default() Progress {
	return Progress{CompletedCourses: []string{}, Achievements: []string{}}
}

func normalize(p *Progress) {
	if p.CompletedCourses == nil {
		p.CompletedCourses = []string{}
	}
	if p.Achievements == nil {
		p.Achievements = []string{}
	}
}

// Service reads and merges progress documents.
type Service struct {
	store kv.Store
	now   func() time.Time
}

// NewService constructs the progress service.
func NewService(store kv.Store) *Service {
	return &Service{store: store, now: func() time.Time { return time.Now().UTC() }}
}

func key(userID string) string {
	return userstate.Progress.Key(userID)
}

// Get returns stored progress or the defaults.
func (s *Service) Get(ctx context.Context, userID string) (Progress, error) {
	p, found, err := kv.GetJSON[Progress](ctx, s.store, key(userID))
	if err != nil {
		return Progress{}, err
	}
	if !found {
		return Default(), nil
	}
	normalize(&p)
	return p, nil
}

// Update shallow-merges patch over the stored progress.
func (s *Service) Update(ctx context.Context, userID string, patch []byte) (Progress, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(patch, &fields); err != nil || fields == nil {
		return Progress{}, ErrInvalidPatch
	}
	delete(fields, "updatedAt")
	merged, err := json.Marshal(fields)
	if err != nil {
		return Progress{}, fmt.Errorf("encode patch: %w", err)
	}
	return kv.UpdateJSON(ctx, s.store, key(userID), func(p Progress, found bool) (Progress, error) {
		if !found {
			p = Default()
		}
		if err := json.Unmarshal(merged, &p); err != nil {
			return Progress{}, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
		}
		if p.TotalLearningTime < 0 {
			return Progress{}, fmt.Errorf("%w: totalLearningTime must not be negative", ErrInvalidPatch)
		}
		normalize(&p)
		p.UpdatedAt = s.now()
		return p, nil
	})
}

// Handler exposes progress endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a progress HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Get returns the user's progress.
func (h *Handler) Get(c *fiber.Ctx) error {
	p, err := h.service.Get(c.UserContext(), userstate.NormalizeUserID(c.Params("userId")))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(p)
}

// Update merges the body into the user's progress.
func (h *Handler) Update(c *fiber.Ctx) error {
	p, err := h.service.Update(c.UserContext(), userstate.NormalizeUserID(c.Params("userId")), c.Body())
	if err != nil {
		if errors.Is(err, ErrInvalidPatch) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return err
	}
	return c.Status(http.StatusOK).JSON(p)
}
