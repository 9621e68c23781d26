package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/benki/benki/internal/identity"
	"github.com/benki/benki/internal/profile"
	"github.com/benki/benki/internal/userstate"
)

// Handler exposes sign-up, sign-in and sign-out.
type Handler struct {
	ids      *identity.Service
	svc      *Service
	profiles *profile.Service
}

// NewHandler constructs the auth HTTP handler.
func NewHandler(ids *identity.Service, svc *Service, profiles *profile.Service) *Handler {
	return &Handler{ids: ids, svc: svc, profiles: profiles}
}

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone"`
	Country   string `json:"country"`
}

type sessionResponse struct {
	User  userResponse `json:"user"`
	Token Token        `json:"token"`
}

func toUser(a identity.Account) userResponse {
	return userResponse{ID: a.UserID, Email: a.Email, FirstName: a.FirstName, LastName: a.LastName, Phone: a.Phone, Country: a.Country}
}

// SignUp registers an account and signs it in.
func (h *Handler) SignUp(c *fiber.Ctx) error {
	var req identity.SignUp
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	acct, err := h.ids.Register(c.UserContext(), req)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrAccountExists):
			return fiber.NewError(http.StatusConflict, err.Error())
		case errors.Is(err, identity.ErrInvalidEmail), errors.Is(err, identity.ErrPhoneRequired),
			errors.Is(err, identity.ErrCountryRequired), errors.Is(err, identity.ErrWeakPassword):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return err
		}
	}
	token, err := h.svc.Issue(c.UserContext(), acct)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(sessionResponse{User: toUser(acct), Token: token})
}

// SignIn checks credentials and returns a session token.
func (h *Handler) SignIn(c *fiber.Ctx) error {
	var req identity.Credentials
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	acct, err := h.ids.Authenticate(c.UserContext(), req)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		}
		return err
	}
	token, err := h.svc.Issue(c.UserContext(), acct)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(sessionResponse{User: toUser(acct), Token: token})
}

// SignOut revokes every token of the signed-in user.
func (h *Handler) SignOut(c *fiber.Ctx) error {
	s, ok := userstate.FromContext(c.UserContext())
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "sign in required")
	}
	if err := h.svc.SignOut(c.UserContext(), s.UserID); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "signed_out"})
}

// Me returns the signed-in user's profile.
func (h *Handler) Me(c *fiber.Ctx) error {
	s, ok := userstate.FromContext(c.UserContext())
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "sign in required")
	}
	p, err := h.profiles.Get(c.UserContext(), s.UserID)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"session": s, "profile": p})
}
