package circle

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/benki/benki/internal/kv"
	"github.com/benki/benki/internal/notification"
	"github.com/benki/benki/internal/profile"
	"github.com/benki/benki/internal/userstate"
)

// Service manages circles, their members and discussions.
type Service struct {
	store    kv.Store
	notifier notification.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the circle service.
func NewService(store kv.Store, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// List returns the catalog, seeding it with the default circles on first use.
// A store failure degrades to the defaults.
func (s *Service) List(ctx context.Context) []Circle {
	circles, err := s.catalog(ctx)
	if err != nil {
		s.logger.Warn("load circle catalog", slog.Any("error", err))
		return DefaultCatalog(s.now())
	}
	return circles
}

func (s *Service) catalog(ctx context.Context) ([]Circle, error) {
	circles, found, err := kv.GetJSON[[]Circle](ctx, s.store, CatalogKey)
	if err != nil {
		return nil, err
	}
	if found {
		return circles, nil
	}
	return kv.UpdateJSON(ctx, s.store, CatalogKey, func(current []Circle, found bool) ([]Circle, error) {
		if found {
			return current, nil
		}
		return DefaultCatalog(s.now()), nil
	})
}

// Get returns one circle.
func (s *Service) Get(ctx context.Context, circleID string) (Circle, error) {
	circles, err := s.catalog(ctx)
	if err != nil {
		return Circle{}, err
	}
	i := indexOf(circles, circleID)
	if i < 0 {
		return Circle{}, ErrNotFound
	}
	return circles[i], nil
}

// known checks circleID against the catalog as List sees it, so an
// unreadable store falls back to the default circles instead of failing.
func (s *Service) known(ctx context.Context, circleID string) error {
	if indexOf(s.List(ctx), circleID) < 0 {
		return ErrNotFound
	}
	return nil
}

// Membership is the outcome of a join or leave.
type Membership struct {
	Circle  Circle `json:"circle"`
	Changed bool   `json:"changed"`
}

// Join adds the user to the circle. The profile, the member list and the
// catalog's member count are written in one atomic update; joining twice is a
// no-op.
func (s *Service) Join(ctx context.Context, circleID, userID, userEmail string) (Membership, error) {
	res, err := s.changeMembership(ctx, circleID, userID, func(p *profile.Profile, members []Member, now time.Time) ([]Member, bool) {
		changed := false
		if !p.HasJoined(circleID) {
			p.JoinedCircles = append(p.JoinedCircles, circleID)
			changed = true
		}
		if !hasMember(members, userID) {
			email := userEmail
			if email == "" {
				email = p.Email
			}
			members = append(members, Member{UserID: userID, UserEmail: email, JoinedAt: now})
			changed = true
		}
		return members, changed
	})
	if err != nil {
		return Membership{}, err
	}
	if res.Changed {
		notification.Notify(ctx, s.notifier, s.logger, notification.Message{
			Kind:        notification.KindCircleJoined,
			Destination: userID,
			Body:        "You joined " + res.Circle.Name,
		})
	}
	return res, nil
}

// Leave removes the user from the circle. Leaving a circle the user never
// joined changes nothing.
func (s *Service) Leave(ctx context.Context, circleID, userID string) (Membership, error) {
	return s.changeMembership(ctx, circleID, userID, func(p *profile.Profile, members []Member, _ time.Time) ([]Member, bool) {
		changed := false
		if p.HasJoined(circleID) {
			kept := p.JoinedCircles[:0:0]
			for _, id := range p.JoinedCircles {
				if id != circleID {
					kept = append(kept, id)
				}
			}
			p.JoinedCircles = kept
			changed = true
		}
		if hasMember(members, userID) {
			kept := make([]Member, 0, len(members))
			for _, m := range members {
				if m.UserID != userID {
					kept = append(kept, m)
				}
			}
			members = kept
			changed = true
		}
		return members, changed
	})
}

type membershipFunc func(p *profile.Profile, members []Member, now time.Time) ([]Member, bool)

func (s *Service) changeMembership(ctx context.Context, circleID, userID string, apply membershipFunc) (Membership, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Membership{}, ErrUserRequired
	}
	// Seed the catalog outside the transaction so a fresh store has circles.
	if _, err := s.catalog(ctx); err != nil {
		return Membership{}, err
	}

	var res Membership
	keys := []string{profile.Key(userID), MembersKey(circleID), CatalogKey}
	err := s.store.Update(ctx, keys, func(current map[string]json.RawMessage) (map[string]json.RawMessage, error) {
		res = Membership{}
		now := s.now()

		var circles []Circle
		if _, err := kv.Decode(current, CatalogKey, &circles); err != nil {
			return nil, err
		}
		i := indexOf(circles, circleID)
		if i < 0 {
			return nil, ErrNotFound
		}

		p, err := profile.FromSnapshot(current, userID, now)
		if err != nil {
			return nil, err
		}
		var members []Member
		if _, err := kv.Decode(current, MembersKey(circleID), &members); err != nil {
			return nil, err
		}
		if members == nil {
			members = []Member{}
		}

		members, changed := apply(&p, members, now)
		circles[i].MemberCount = len(members)
		res = Membership{Circle: circles[i], Changed: changed}
		if !changed {
			return map[string]json.RawMessage{}, nil
		}
		p.UpdatedAt = now

		next := make(map[string]json.RawMessage, 3)
		if err := kv.Encode(next, profile.Key(userID), p); err != nil {
			return nil, err
		}
		if err := kv.Encode(next, MembersKey(circleID), members); err != nil {
			return nil, err
		}
		if err := kv.Encode(next, CatalogKey, circles); err != nil {
			return nil, err
		}
		return next, nil
	})
	if err != nil {
		return Membership{}, err
	}
	return res, nil
}

func hasMember(members []Member, userID string) bool {
	for _, m := range members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// Members lists the circle's members. A store read failure yields an empty list.
func (s *Service) Members(ctx context.Context, circleID string) ([]Member, error) {
	if err := s.known(ctx, circleID); err != nil {
		return nil, err
	}
	members, _, err := kv.GetJSON[[]Member](ctx, s.store, MembersKey(circleID))
	if err != nil {
		s.logger.Warn("load circle members", slog.String("circle_id", circleID), slog.Any("error", err))
	}
	if members == nil {
		members = []Member{}
	}
	return members, nil
}

// Posts lists the circle's discussion, newest first.
func (s *Service) Posts(ctx context.Context, circleID string) ([]Post, error) {
	if err := s.known(ctx, circleID); err != nil {
		return nil, err
	}
	posts, _, err := kv.GetJSON[[]Post](ctx, s.store, PostsKey(circleID))
	if err != nil {
		s.logger.Warn("load circle posts", slog.String("circle_id", circleID), slog.Any("error", err))
	}
	if posts == nil {
		posts = []Post{}
	}
	return posts, nil
}

// NewPost is the input of CreatePost.
type NewPost struct {
	Content   string `json:"content"`
	UserID    string `json:"userId"`
	UserEmail string `json:"userEmail"`
}

// CreatePost prepends a post to the circle's discussion, keeping the newest
// MaxPosts.
func (s *Service) CreatePost(ctx context.Context, circleID string, in NewPost) (Post, error) {
	in.Content = strings.TrimSpace(in.Content)
	in.UserID = strings.TrimSpace(in.UserID)
	if in.Content == "" {
		return Post{}, ErrContentRequired
	}
	if in.UserID == "" {
		return Post{}, ErrUserRequired
	}
	if err := s.known(ctx, circleID); err != nil {
		return Post{}, err
	}

	post := Post{
		ID:        uuid.NewString(),
		CircleID:  circleID,
		UserID:    in.UserID,
		UserEmail: in.UserEmail,
		Content:   in.Content,
		Comments:  []string{},
		CreatedAt: s.now(),
	}
	_, err := kv.UpdateJSON(ctx, s.store, PostsKey(circleID), func(posts []Post, _ bool) ([]Post, error) {
		return userstate.PrependCapped(posts, post, MaxPosts), nil
	})
	if err != nil {
		return Post{}, err
	}
	return post, nil
}
