package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RemoteStore talks to the service's /kv endpoints. Get, Set and Delete map
// one-to-one onto HTTP calls; Update is a plain read-modify-write and is not
// atomic across callers.
type RemoteStore struct {
	baseURL  string
	timeout  time.Duration
	attempts int
	backoff  time.Duration
}

// RemoteOption customises a RemoteStore.
type RemoteOption func(*RemoteStore)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) RemoteOption {
	return func(r *RemoteStore) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithRetry sets how many attempts are made for 5xx responses and the base
// delay between them. The delay doubles after each failure.
func WithRetry(attempts int, base time.Duration) RemoteOption {
	return func(r *RemoteStore) {
		if attempts > 0 {
			r.attempts = attempts
		}
		if base > 0 {
			r.backoff = base
		}
	}
}

// NewRemoteStore builds a client for the key-value endpoints rooted at baseURL
// (for example http://localhost:8080/api/v1).
func NewRemoteStore(baseURL string, opts ...RemoteOption) (*RemoteStore, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url must be absolute: %q", baseURL)
	}
	r := &RemoteStore{
		baseURL:  strings.TrimRight(baseURL, "/"),
		timeout:  5 * time.Second,
		attempts: 3,
		backoff:  100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

type remoteItem struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type remoteError struct {
	Error string `json:"error"`
}

func (r *RemoteStore) endpoint(key string) string {
	return r.baseURL + "/kv/" + url.PathEscape(key)
}

func (r *RemoteStore) do(ctx context.Context, method, key string, body []byte) (int, []byte, error) {
	delay := r.backoff
	var lastErr error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		agent := fiber.AcquireAgent()
		req := agent.Request()
		req.Header.SetMethod(method)
		req.SetRequestURI(r.endpoint(key))
		if body != nil {
			agent.ContentType(fiber.MIMEApplicationJSON)
			agent.Body(body)
		}
		agent.Timeout(r.timeout)
		if err := agent.Parse(); err != nil {
			fiber.ReleaseAgent(agent)
			return 0, nil, err
		}

		code, respBody, errs := agent.Bytes()
		if len(errs) > 0 {
			lastErr = errors.Join(errs...)
			continue
		}
		if code >= http.StatusInternalServerError {
			lastErr = statusError(code, respBody)
			continue
		}
		return code, respBody, nil
	}
	return 0, nil, fmt.Errorf("%s %s: %w", method, key, lastErr)
}

func statusError(code int, body []byte) error {
	var e remoteError
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return fmt.Errorf("remote status %d: %s", code, e.Error)
	}
	return fmt.Errorf("remote status %d", code)
}

func (r *RemoteStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}
	code, body, err := r.do(ctx, fiber.MethodGet, key, nil)
	if err != nil {
		return nil, false, err
	}
	switch code {
	case http.StatusOK:
		var item remoteItem
		if err := json.Unmarshal(body, &item); err != nil {
			return nil, false, fmt.Errorf("decode %s: %w", key, err)
		}
		return item.Value, true, nil
	case http.StatusNotFound:
		return nil, false, nil
	default:
		return nil, false, statusError(code, body)
	}
}

func (r *RemoteStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	if key == "" {
		return ErrEmptyKey
	}
	code, body, err := r.do(ctx, fiber.MethodPut, key, value)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return statusError(code, body)
	}
	return nil
}

func (r *RemoteStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	code, body, err := r.do(ctx, fiber.MethodDelete, key, nil)
	if err != nil {
		return err
	}
	if code != http.StatusNoContent && code != http.StatusOK {
		return statusError(code, body)
	}
	return nil
}

func (r *RemoteStore) Update(ctx context.Context, keys []string, fn UpdateFunc) error {
	if err := validateKeys(keys); err != nil {
		return err
	}
	current := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		v, ok, err := r.Get(ctx, k)
		if err != nil {
			return err
		}
		if ok {
			current[k] = v
		}
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if err := checkWriteSet(keys, next); err != nil {
		return err
	}
	for k, v := range next {
		if v == nil {
			err = r.Delete(ctx, k)
		} else {
			err = r.Set(ctx, k, v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Ping checks the service health endpoint.
func (r *RemoteStore) Ping(ctx context.Context) error {
	agent := fiber.Get(r.baseURL + "/health").Timeout(r.timeout)
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if code != http.StatusOK {
		return statusError(code, body)
	}
	return ctx.Err()
}
