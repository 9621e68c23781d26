package kyc

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/benki/benki/internal/profile"
	"github.com/benki/benki/internal/userstate"
)

// Handler exposes KYC endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a KYC HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Submit records the user's KYC data and returns the updated profile.
func (h *Handler) Submit(c *fiber.Ctx) error {
	p, err := h.service.Submit(c.UserContext(), userstate.NormalizeUserID(c.Params("userId")), c.Body())
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(p)
}

type reviewRequest struct {
	Decision string `json:"decision"`
	Note     string `json:"note"`
}

// Review applies a manual verification decision and returns the updated
// profile.
func (h *Handler) Review(c *fiber.Ctx) error {
	var req reviewRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	p, err := h.service.Review(c.UserContext(), userstate.NormalizeUserID(c.Params("userId")), profile.KYCStatus(req.Decision), req.Note)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(p)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidPayload), errors.Is(err, ErrInvalidDecision), errors.Is(err, ErrInvalidTransition):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}
