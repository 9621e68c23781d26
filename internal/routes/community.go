package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/benki/benki/internal/circle"
	"github.com/benki/benki/internal/middleware"
	"github.com/benki/benki/internal/social"
)

// RegisterCommunityRoutes wires investment circles and the social feed.
// With enforce set, writes require a session.
func RegisterCommunityRoutes(r fiber.Router, enforce bool, circles *circle.Handler, feed *social.Handler) {
	write := func(c *fiber.Ctx) error { return c.Next() }
	if enforce {
		write = middleware.RequireSession()
	}

	r.Get("/circles", circles.List)
	r.Post("/circles/:id/join", write, circles.Join)
	r.Post("/circles/:id/leave", write, circles.Leave)
	r.Get("/circles/:id/members", circles.Members)
	r.Get("/circles/:id/posts", circles.Posts)
	r.Post("/circles/:id/posts", write, circles.CreatePost)

	r.Get("/social-feed", feed.Feed)
	r.Get("/social-feed/mine", middleware.RequireSession(), feed.Mine)
	r.Post("/social-post", write, feed.Create)
	r.Post("/social-post/:id/like", write, feed.Like)
}
