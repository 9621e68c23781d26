package circle

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/benki/benki/internal/userstate"
)

// Handler exposes circle endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a circle HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type membershipRequest struct {
	UserID    string `json:"userId"`
	UserEmail string `json:"userEmail"`
}

// parseMember reads the acting user from the body, falling back to the
// signed-in session.
func parseMember(c *fiber.Ctx) (membershipRequest, error) {
	var req membershipRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return req, fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	if s, ok := userstate.FromContext(c.UserContext()); ok {
		if req.UserID == "" {
			req.UserID = s.UserID
		}
		if req.UserEmail == "" {
			req.UserEmail = s.Email
		}
	}
	return req, nil
}

type membershipResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Circle  Circle `json:"circle"`
}

// List returns every circle.
func (h *Handler) List(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(h.service.List(c.UserContext()))
}

// Join adds the requesting user to a circle.
func (h *Handler) Join(c *fiber.Ctx) error {
	req, err := parseMember(c)
	if err != nil {
		return err
	}
	res, err := h.service.Join(c.UserContext(), c.Params("id"), req.UserID, req.UserEmail)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(membershipResponse{Success: true, Message: "Successfully joined circle", Circle: res.Circle})
}

// Leave removes the requesting user from a circle.
func (h *Handler) Leave(c *fiber.Ctx) error {
	req, err := parseMember(c)
	if err != nil {
		return err
	}
	res, err := h.service.Leave(c.UserContext(), c.Params("id"), req.UserID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(membershipResponse{Success: true, Message: "Successfully left circle", Circle: res.Circle})
}

// Members lists a circle's members.
func (h *Handler) Members(c *fiber.Ctx) error {
	members, err := h.service.Members(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(members)
}

// Posts lists a circle's discussion.
func (h *Handler) Posts(c *fiber.Ctx) error {
	posts, err := h.service.Posts(c.UserContext(), c.Params("id"))
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(posts)
}

// CreatePost adds a discussion post.
func (h *Handler) CreatePost(c *fiber.Ctx) error {
	var req NewPost
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	post, err := h.service.CreatePost(c.UserContext(), c.Params("id"), req)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(post)
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrUserRequired), errors.Is(err, ErrContentRequired):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return err
	}
}
