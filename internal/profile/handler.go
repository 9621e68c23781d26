package profile

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/benki/benki/internal/userstate"
)

// Handler exposes profile endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a profile HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Get returns the user's profile.
func (h *Handler) Get(c *fiber.Ctx) error {
	p, err := h.service.Get(c.UserContext(), userstate.NormalizeUserID(c.Params("userId")))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(p)
}

// Update merges the request body into the user's profile.
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
