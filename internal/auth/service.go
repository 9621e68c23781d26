package auth

import (
	"context"
	"errors"
	"time"

	"github.com/benki/benki/internal/config"
	"github.com/benki/benki/internal/identity"
	"github.com/benki/benki/internal/kv"
	"github.com/benki/benki/internal/userstate"
)

var (
	// ErrInvalidToken covers malformed, forged and expired tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenRevoked is returned for a token issued before the last sign-out.
	ErrTokenRevoked = errors.New("token invalidated")
)

// sessionState is stored under user_session_<id>.
type sessionState struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Token is a signed session token.
type Token struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
	Version     int    `json:"version"`
}

// Service issues and verifies session tokens.
type Service struct {
	store  kv.Store
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService builds the session service from cfg.
func NewService(cfg config.Config, store kv.Store) *Service {
	return &Service{
		store:  store,
		secret: []byte(cfg.SessionSecret),
		ttl:    cfg.SessionTTL,
		now:    time.Now,
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func stateKey(userID string) string {
	return userstate.SessionState.Key(userID)
}

func (s *Service) version(ctx context.Context, userID string) (int, error) {
	st, _, err := kv.GetJSON[sessionState](ctx, s.store, stateKey(userID))
	return st.Version, err
}

// Issue signs a token for the account at its current session version.
func (s *Service) Issue(ctx context.Context, acct identity.Account) (Token, error) {
	ver, err := s.version(ctx, acct.UserID)
	if err != nil {
		return Token{}, err
	}
	now := s.now()
	exp := now.Add(s.ttl)
	claims := map[string]any{
		"sub":   acct.UserID,
		"email": acct.Email,
		"ver":   ver,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}
	signed, err := SignHS256(claims, s.secret)
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, ExpiresIn: int64(s.ttl.Seconds()), Version: ver}, nil
}

// Verify checks the token and resolves it into a session. Tokens issued
// before the user's last sign-out are rejected.
func (s *Service) Verify(ctx context.Context, token string) (userstate.Session, error) {
	claims, err := ParseAndVerifyHS256(token, s.secret)
	if err != nil {
		return userstate.Session{}, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	verFloat, _ := claims["ver"].(float64)
	expFloat, _ := claims["exp"].(float64)
	if sub == "" || int64(expFloat) <= s.now().Unix() {
		return userstate.Session{}, ErrInvalidToken
	}

	current, err := s.version(ctx, sub)
	if err != nil {
		return userstate.Session{}, err
	}
	if current != int(verFloat) {
		return userstate.Session{}, ErrTokenRevoked
	}
	return userstate.Session{UserID: sub, Email: email, Version: current}, nil
}

// SignOut bumps the session version so every outstanding token stops working.
func (s *Service) SignOut(ctx context.Context, userID string) error {
	_, err := kv.UpdateJSON(ctx, s.store, stateKey(userID), func(st sessionState, _ bool) (sessionState, error) {
		st.Version++
		st.UpdatedAt = s.now().UTC()
		return st, nil
	})
	return err
}
