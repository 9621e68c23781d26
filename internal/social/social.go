// Package social serves the community feed.
package social

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/benki/benki/internal/kv"
	"github.com/benki/benki/internal/userstate"
)

const (
	// FeedKey holds the feed, newest first.
	FeedKey = "social_posts"
	// MaxPosts is how many posts the feed keeps.
	MaxPosts = 50

	defaultType = "update"
)

var (
	// ErrInvalidPost is returned when content or author is missing.
	ErrInvalidPost = errors.New("content and user are required")
	// ErrNotFound is returned for an unknown post id.
	ErrNotFound = errors.New("post not found")
)

// Author describes who wrote a post.
type Author struct {
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`
	Avatar  string `json:"avatar,omitempty"`
}

// Post is a feed entry.
type Post struct {
	ID        string    `json:"id"`
	User      Author    `json:"user"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	Likes     int       `json:"likes"`
	Comments  int       `json:"comments"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewPost is the input of Create.
type NewPost struct {
	Content string  `json:"content"`
	User    *Author `json:"user"`
	Type    string  `json:"type"`
}

// Service reads and writes the feed.
type Service struct {
	store    kv.Store
	accessor *userstate.Accessor
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs the feed service.
func NewService(store kv.Store, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		accessor: userstate.NewAccessor(store),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Feed returns the newest posts. Read failures yield an empty feed.
func (s *Service) Feed(ctx context.Context) []Post {
	posts, _, err := kv.GetJSON[[]Post](ctx, s.store, FeedKey)
	if err != nil {
		s.logger.Warn("load social feed", slog.Any("error", err))
		return []Post{}
	}
	if posts == nil {
		return []Post{}
	}
	return posts
}

// Create prepends a post to the feed and, for a signed-in author, to their own
// post list. A failed write is logged and the post is still returned.
func (s *Service) Create(ctx context.Context, in NewPost) (Post, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" || in.User == nil || strings.TrimSpace(in.User.Name) == "" {
		return Post{}, ErrInvalidPost
	}
	kind := strings.TrimSpace(in.Type)
	if kind == "" {
		kind = defaultType
	}
	post := Post{
		ID:        uuid.NewString(),
		User:      *in.User,
		Content:   content,
		Type:      kind,
		CreatedAt: s.now(),
	}
	_, err := kv.UpdateJSON(ctx, s.store, FeedKey, func(posts []Post, _ bool) ([]Post, error) {
		return userstate.PrependCapped(posts, post, MaxPosts), nil
	})
	if err != nil {
		s.logger.Warn("save social post", slog.String("post_id", post.ID), slog.Any("error", err))
	}
	if session, ok := userstate.FromContext(ctx); ok {
		if _, err := userstate.Prepend(ctx, s.accessor, session, userstate.Posts, post, MaxPosts); err != nil {
			s.logger.Warn("save authored post", slog.String("user_id", session.UserID), slog.Any("error", err))
		}
	}
	return post, nil
}

// Authored returns the posts the session's user created, newest first.
func (s *Service) Authored(ctx context.Context, session userstate.Session) ([]Post, error) {
	posts, _, err := userstate.Load[[]Post](ctx, s.accessor, session, userstate.Posts)
	if err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []Post{}
	}
	return posts, nil
}

// Like increments a post's like counter.
func (s *Service) Like(ctx context.Context, id string) (Post, error) {
	var liked Post
	_, err := kv.UpdateJSON(ctx, s.store, FeedKey, func(posts []Post, _ bool) ([]Post, error) {
		for i := range posts {
			if posts[i].ID == id {
				posts[i].Likes++
				liked = posts[i]
				return posts, nil
			}
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return Post{}, err
	}
	return liked, nil
}
