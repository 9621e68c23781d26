package identity

import (
	"errors"
	"strings"
	"time"

	"github.com/benki/benki/internal/userstate"
)

var (
	ErrInvalidEmail       = errors.New("a valid email address is required")
	ErrPhoneRequired      = errors.New("phone number is required")
	ErrCountryRequired    = errors.New("country is required")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrAccountExists      = errors.New("an account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// Account is a registered user stored under user_account_<email>.
type Account struct {
	UserID       string    `json:"userId"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	Phone        string    `json:"phone"`
	Country      string    `json:"country"`
	PasswordHash []byte    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SignUp is the registration input.
type SignUp struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Country   string `json:"country"`
}

// Credentials is the sign-in input.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// NormalizeEmail lowercases and trims an address. The normalized email is
// also the user id.
func NormalizeEmail(email string) string {
	return userstate.NormalizeUserID(email)
}

// AccountKey returns the store key of the account registered with email.
func AccountKey(email string) string {
	return userstate.Account.Key(NormalizeEmail(email))
}

func (in SignUp) validate() error {
	if !strings.Contains(in.Email, "@") {
		return ErrInvalidEmail
	}
	if strings.TrimSpace(in.Phone) == "" {
		return ErrPhoneRequired
	}
	if strings.TrimSpace(in.Country) == "" {
		return ErrCountryRequired
	}
	if len(in.Password) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}
