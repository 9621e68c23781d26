package social

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/benki/benki/internal/userstate"
)

// Handler exposes feed endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a feed HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Feed returns the newest posts.
func (h *Handler) Feed(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(h.service.Feed(c.UserContext()))
}

// Create shares a new post.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req NewPost
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	post, err := h.service.Create(c.UserContext(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidPost) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return err
	}
	return c.Status(http.StatusOK).JSON(post)
}

// Like increments a post's likes.
func (h *Handler) Like(c *fiber.Ctx) error {
	post, err := h.service.Like(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return err
	}
	return c.Status(http.StatusOK).JSON(post)
}

// Mine lists the signed-in user's own posts.
func (h *Handler) Mine(c *fiber.Ctx) error {
	session, ok := userstate.FromContext(c.UserContext())
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "sign in required")
	}
	posts, err := h.service.Authored(c.UserContext(), session)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(posts)
}
