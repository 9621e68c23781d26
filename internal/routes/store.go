package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/benki/benki/internal/kv"
	"github.com/benki/benki/internal/middleware"
)

// RegisterStoreRoutes exposes the raw key-value store used by remote clients.
func RegisterStoreRoutes(r fiber.Router, enforce bool, h *kv.Handler) {
	group := r.Group("/kv")
	if enforce {
		group.Use(middleware.RequireSession())
	}
	group.Get("/:key", h.Get)
	group.Put("/:key", h.Put)
	group.Delete("/:key", h.Delete)
}
