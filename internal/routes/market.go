package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/benki/benki/internal/market"
)

// RegisterMarketRoutes wires the cached market feeds.
func RegisterMarketRoutes(r fiber.Router, h *market.Handler) {
	r.Get("/market-data", h.Indices)
	r.Get("/investment-performance", h.Performance)
}
