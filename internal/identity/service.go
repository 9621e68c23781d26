package identity

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/benki/benki/internal/kv"
	"github.com/benki/benki/internal/profile"
)

// Service manages account registration and credential checks.
type Service struct {
	store kv.Store
	cost  int
	now   func() time.Time
}

// NewService creates a new identity service.
func NewService(store kv.Store) *Service {
	return &Service{store: store, cost: bcrypt.DefaultCost, now: func() time.Time { return time.Now().UTC() }}
}

// SetHashCost overrides the bcrypt cost.
func (s *Service) SetHashCost(cost int) {
	s.cost = cost
}

// Register creates the account and seeds the user's profile with the
// registration details in one atomic update.
func (s *Service) Register(ctx context.Context, in SignUp) (Account, error) {
	if err := in.validate(); err != nil {
		return Account{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return Account{}, err
	}

	email := NormalizeEmail(in.Email)
	var created Account
	keys := []string{AccountKey(email), profile.Key(email)}
	err = s.store.Update(ctx, keys, func(current map[string]json.RawMessage) (map[string]json.RawMessage, error) {
		if raw, ok := current[AccountKey(email)]; ok && raw != nil {
			return nil, ErrAccountExists
		}
		now := s.now()
		created = Account{
			UserID:       email,
			Email:        email,
			FirstName:    strings.TrimSpace(in.FirstName),
			LastName:     strings.TrimSpace(in.LastName),
			Phone:        strings.TrimSpace(in.Phone),
			Country:      strings.TrimSpace(in.Country),
			PasswordHash: hash,
			CreatedAt:    now,
		}

		p, err := profile.FromSnapshot(current, email, now)
		if err != nil {
			return nil, err
		}
		p.Email = email
		p.FirstName = created.FirstName
		p.LastName = created.LastName
		p.PhoneNumber = created.Phone
		p.Country = created.Country
		p.UpdatedAt = now

		next := make(map[string]json.RawMessage, 2)
		if err := kv.Encode(next, AccountKey(email), created); err != nil {
			return nil, err
		}
		if err := kv.Encode(next, profile.Key(email), p); err != nil {
			return nil, err
		}
		return next, nil
	})
	if err != nil {
		return Account{}, err
	}
	return created, nil
}

// Authenticate verifies an email and password.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (Account, error) {
	acct, found, err := s.Find(ctx, creds.Email)
	if err != nil {
		return Account{}, err
	}
	if !found {
		return Account{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.PasswordHash, []byte(creds.Password)); err != nil {
		return Account{}, ErrInvalidCredentials
	}
	return acct, nil
}

// Find looks an account up by email.
func (s *Service) Find(ctx context.Context, email string) (Account, bool, error) {
	if NormalizeEmail(email) == "" {
		return Account{}, false, nil
	}
	return kv.GetJSON[Account](ctx, s.store, AccountKey(email))
}
