package market

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes market endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a market HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Indices returns exchange quotes.
func (h *Handler) Indices(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(h.service.Indices(c.UserContext()))
}

// Performance returns product performance.
func (h *Handler) Performance(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(h.service.Performance(c.UserContext()))
}
