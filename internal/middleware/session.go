package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/benki/benki/internal/auth"
	"github.com/benki/benki/internal/logging"
	"github.com/benki/benki/internal/userstate"
)

const sessionLocal = "session"

// SessionVerifier resolves a bearer token into a session.
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (userstate.Session, error)
}

// Session resolves an optional bearer token. Requests without a token pass
// through anonymously. A token that is not a valid session is rejected when
// enforce is set and otherwise ignored, since public clients send their own
// API key as a bearer token. Failures other than a bad token surface as
// errors.
func Session(verifier SessionVerifier, enforce bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if authz == "" {
			return c.Next()
		}
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return anonymous(c, enforce, "missing bearer token")
		}
		token := strings.TrimSpace(authz[len("Bearer "):])
		s, err := verifier.Verify(c.UserContext(), token)
		switch {
		case err == nil:
		case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrTokenRevoked):
			return anonymous(c, enforce, err.Error())
		default:
			return fmt.Errorf("verify session: %w", err)
		}
		c.Locals(sessionLocal, s)
		c.SetUserContext(userstate.WithSession(c.UserContext(), s))
		return c.Next()
	}
}

func anonymous(c *fiber.Ctx, enforce bool, reason string) error {
	if enforce {
		return fiber.NewError(http.StatusUnauthorized, reason)
	}
	logging.FromContext(c.UserContext()).DebugContext(c.UserContext(), "ignoring bearer token", slog.String("reason", reason))
	return c.Next()
}

// RequireSession rejects anonymous requests.
func RequireSession() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := userstate.FromContext(c.UserContext()); !ok {
			return fiber.NewError(http.StatusUnauthorized, "sign in required")
		}
		return c.Next()
	}
}

// OwnUser restricts a route addressed by the userId path parameter to that
// user's own session. It is a no-op when enforce is false.
func OwnUser(enforce bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !enforce {
			return c.Next()
		}
		s, ok := userstate.FromContext(c.UserContext())
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, "sign in required")
		}
		if userstate.NormalizeUserID(s.UserID) != userstate.NormalizeUserID(c.Params("userId")) {
			return fiber.NewError(http.StatusForbidden, "session does not match user")
		}
		return c.Next()
	}
}
