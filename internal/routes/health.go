package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RegisterHealthRoutes adds liveness/readiness style endpoints.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	app.Get("/healthz", healthHandler(d))
}

func healthHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		storeStatus := "ok"

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := d.Store.Ping(ctx); err != nil {
			storeStatus = err.Error()
		}

		status, overall := http.StatusOK, "ok"
		if storeStatus != "ok" {
			status, overall = http.StatusServiceUnavailable, "degraded"
		}
		return c.Status(status).JSON(fiber.Map{
			"status":    overall,
			"store":     fiber.Map{"backend": d.Cfg.StoreBackend, "status": storeStatus},
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
}
