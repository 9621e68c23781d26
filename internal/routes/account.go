package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/benki/benki/internal/auth"
	"github.com/benki/benki/internal/middleware"
)

// signInBurst bounds password guessing per client.
const signInBurst = 5

// RegisterAuthRoutes wires sign-up, sign-in and session endpoints.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler) {
	group := r.Group("/auth")
	group.Post("/signup", h.SignUp)
	group.Post("/signin", middleware.RateLimit(middleware.NewRateLimiter(1, signInBurst)), h.SignIn)
	group.Post("/signout", middleware.RequireSession(), h.SignOut)
	r.Get("/me", middleware.RequireSession(), h.Me)
}
