// Package userstate reads and writes per-user records. Every call takes an
// explicit Session instead of relying on a process-wide current user.
package userstate

import (
	"context"
	"errors"
	"strings"

	"github.com/benki/benki/internal/kv"
)

// ErrNoSession is returned when a call is made without a user identity.
var ErrNoSession = errors.New("userstate: session has no user")

// NormalizeUserID lowercases and trims a user id. Ids are sign-up emails, so
// a path or header id must match the normalized address.
func NormalizeUserID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Session identifies the user a request acts for.
type Session struct {
	UserID  string `json:"userId"`
	Email   string `json:"email,omitempty"`
	Version int    `json:"version,omitempty"`
}

// Valid reports whether the session carries a user id.
func (s Session) Valid() bool { return s.UserID != "" }

// Namespace groups one kind of per-user record.
type Namespace string

const (
	Profile      Namespace = "user_profile"
	Portfolio    Namespace = "user_portfolio"
	Transactions Namespace = "user_transactions"
	Posts        Namespace = "user_posts"
	Progress     Namespace = "user_progress"
	Account      Namespace = "user_account"
	SessionState Namespace = "user_session"
)

// Key returns the store key holding this namespace's record for userID.
func (n Namespace) Key(userID string) string {
	return kv.Key(string(n), userID)
}

// Accessor binds namespaced records to a store.
type Accessor struct {
	store kv.Store
}

// NewAccessor returns an accessor over store.
func NewAccessor(store kv.Store) *Accessor {
	return &Accessor{store: store}
}

// Store exposes the underlying store.
func (a *Accessor) Store() kv.Store { return a.store }

// Load reads the session's record in ns.
func Load[T any](ctx context.Context, a *Accessor, s Session, ns Namespace) (T, bool, error) {
	var zero T
	if !s.Valid() {
		return zero, false, ErrNoSession
	}
	return kv.GetJSON[T](ctx, a.store, ns.Key(s.UserID))
}

// Save overwrites the session's record in ns.
func Save[T any](ctx context.Context, a *Accessor, s Session, ns Namespace, value T) error {
	if !s.Valid() {
		return ErrNoSession
	}
	return kv.SetJSON(ctx, a.store, ns.Key(s.UserID), value)
}

// Prepend atomically adds item to the front of the session's list in ns and
// keeps at most limit entries (limit <= 0 keeps everything).
func Prepend[T any](ctx context.Context, a *Accessor, s Session, ns Namespace, item T, limit int) ([]T, error) {
	if !s.Valid() {
		return nil, ErrNoSession
	}
	return kv.UpdateJSON(ctx, a.store, ns.Key(s.UserID), func(list []T, _ bool) ([]T, error) {
		return PrependCapped(list, item, limit), nil
	})
}

// Clear removes the session's record in ns.
func (a *Accessor) Clear(ctx context.Context, s Session, ns Namespace) error {
	if !s.Valid() {
		return ErrNoSession
	}
	return a.store.Delete(ctx, ns.Key(s.UserID))
}

// PrependCapped returns a new slice with item first followed by list, cut to
// limit entries so the oldest fall off the end.
func PrependCapped[T any](list []T, item T, limit int) []T {
	out := make([]T, 0, len(list)+1)
	out = append(out, item)
	out = append(out, list...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

type sessionKey struct{}

// WithSession attaches s to ctx.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session attached to ctx, if any.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok && s.Valid()
}
