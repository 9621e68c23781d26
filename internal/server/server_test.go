package server

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benki/benki/internal/config"
	"github.com/benki/benki/internal/kv"
	"github.com/benki/benki/internal/logging"
)

func testConfig(requireSession bool) config.Config {
	return config.Config{
		AppName:             "Benki",
		AppEnv:              "test",
		APIPrefix:           "/api/v1",
		StoreBackend:        config.BackendMemory,
		KYCVerifyDelay:      time.Hour,
		KYCPollInterval:     time.Hour,
		MarketCacheTTL:      time.Minute,
		PerformanceCacheTTL: time.Minute,
		RevalueInterval:     time.Minute,
		SessionSecret:       "test-secret",
		SessionTTL:          time.Hour,
		RequireSession:      requireSession,
		RateLimitRPS:        1000,
		RateLimitBurst:      1000,
		IdempotencyTTL:      time.Minute,
	}
}

type client struct {
	t   *testing.T
	app *fiber.App
}

func (c client) do(method, path, token, body string) (int, map[string]any) {
	c.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := c.app.Test(req, -1)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(c.t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func newClient(t *testing.T, requireSession bool) client {
	srv := New(testConfig(requireSession), kv.NewMemoryStore(), nil, logging.Discard(), nil)
	return client{t: t, app: srv.App()}
}

func TestHealth(t *testing.T) {
	c := newClient(t, false)
	code, body := c.do(fiber.MethodGet, "/api/v1/health", "", "")
	assert.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, _ = c.do(fiber.MethodGet, "/healthz", "", "")
	assert.Equal(t, fiber.StatusOK, code)
}

func TestErrorsRenderAsJSON(t *testing.T) {
	c := newClient(t, false)

	code, body := c.do(fiber.MethodPost, "/api/v1/circles/nope/join", "", `{"userId":"a@b.co"}`)
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.NotEmpty(t, body["error"])

	code, body = c.do(fiber.MethodGet, "/api/v1/kv/missing", "", "")
	assert.Equal(t, fiber.StatusNotFound, code)
	assert.Equal(t, "key not found", body["error"])

	code, body = c.do(fiber.MethodPost, "/api/v1/social-post", "", `{"content":""}`)
	assert.Equal(t, fiber.StatusBadRequest, code)
	assert.NotEmpty(t, body["error"])
}

func TestProfileAndCircleFlow(t *testing.T) {
	c := newClient(t, false)

	code, body := c.do(fiber.MethodGet, "/api/v1/user-profile/a@b.co", "", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "a@b.co", body["email"])
	assert.Equal(t, "pending", body["kycStatus"])

	code, _ = c.do(fiber.MethodPost, "/api/v1/user-profile/a@b.co", "", `{"firstName":"Ada","kycStatus":"verified"}`)
	require.Equal(t, fiber.StatusOK, code)

	code, body = c.do(fiber.MethodGet, "/api/v1/user-profile/a@b.co", "", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "Ada", body["firstName"])
	assert.Equal(t, "pending", body["kycStatus"], "kyc status is not writable through the profile")

	code, _ = c.do(fiber.MethodPost, "/api/v1/circles/tech-africa/join", "", `{"userId":"a@b.co","userEmail":"a@b.co"}`)
	require.Equal(t, fiber.StatusOK, code)
	code, body = c.do(fiber.MethodGet, "/api/v1/user-profile/a@b.co", "", "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, []any{"tech-africa"}, body["joinedCircles"])
}

func TestSessionLifecycle(t *testing.T) {
	c := newClient(t, false)

	code, body := c.do(fiber.MethodPost, "/api/v1/auth/signup", "",
		`{"email":"Ada@Example.com","password":"secret1","phone":"+2348000000000","country":"NG","firstName":"Ada"}`)
	require.Equal(t, fiber.StatusCreated, code, body)

	code, body = c.do(fiber.MethodPost, "/api/v1/auth/signin", "", `{"email":"ada@example.com","password":"secret1"}`)
	require.Equal(t, fiber.StatusOK, code, body)
	token, _ := body["token"].(map[string]any)["accessToken"].(string)
	require.NotEmpty(t, token)

	code, body = c.do(fiber.MethodGet, "/api/v1/me", token, "")
	require.Equal(t, fiber.StatusOK, code)
	assert.Equal(t, "Ada", body["profile"].(map[string]any)["firstName"])

	code, _ = c.do(fiber.MethodPost, "/api/v1/auth/signout", token, "")
	require.Equal(t, fiber.StatusOK, code)

	code, _ = c.do(fiber.MethodGet, "/api/v1/me", token, "")
	assert.Equal(t, fiber.StatusUnauthorized, code)

	code, _ = c.do(fiber.MethodPost, "/api/v1/auth/signin", "", `{"email":"ada@example.com","password":"wrong!!"}`)
	assert.Equal(t, fiber.StatusUnauthorized, code)
}

func TestRequireSessionGuardsUserRoutes(t *testing.T) {
	c := newClient(t, true)

	code, _ := c.do(fiber.MethodGet, "/api/v1/portfolio/ada@example.com", "", "")
	assert.Equal(t, fiber.StatusUnauthorized, code)

	code, body := c.do(fiber.MethodPost, "/api/v1/auth/signup", "",
		`{"email":"ada@example.com","password":"secret1","phone":"+2348000000000","country":"NG"}`)
	require.Equal(t, fiber.StatusCreated, code, body)
	token := body["token"].(map[string]any)["accessToken"].(string)

	code, _ = c.do(fiber.MethodGet, "/api/v1/portfolio/ada@example.com", token, "")
	assert.Equal(t, fiber.StatusOK, code)
	code, _ = c.do(fiber.MethodGet, "/api/v1/portfolio/someone@else.com", token, "")
	assert.Equal(t, fiber.StatusForbidden, code)

	code, _ = c.do(fiber.MethodGet, "/api/v1/market-data", "", "")
	assert.Equal(t, fiber.StatusOK, code)
}

func TestCORSPreflight(t *testing.T) {
	c := newClient(t, false)
	req := httptest.NewRequest(fiber.MethodOptions, "/api/v1/social-feed", nil)
	req.Header.Set(fiber.HeaderOrigin, "https://app.example")
	req.Header.Set(fiber.HeaderAccessControlRequestMethod, fiber.MethodPost)
	resp, err := c.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	assert.Equal(t, "600", resp.Header.Get(fiber.HeaderAccessControlMaxAge))
}

func TestMixedCaseUserPathReachesSignUpProfile(t *testing.T) {
	c := newClient(t, true)

	code, body := c.do(fiber.MethodPost, "/api/v1/auth/signup", "",
		`{"email":"Ada@Example.com","password":"secret1","phone":"+2348000000000","country":"NG","firstName":"Ada"}`)
	require.Equal(t, fiber.StatusCreated, code, body)
	token := body["token"].(map[string]any)["accessToken"].(string)

	code, body = c.do(fiber.MethodGet, "/api/v1/user-profile/Ada@Example.com", token, "")
	require.Equal(t, fiber.StatusOK, code, body)
	assert.Equal(t, "ada@example.com", body["email"])
	assert.Equal(t, "Ada", body["firstName"])

	code, _ = c.do(fiber.MethodPost, "/api/v1/user-progress/ADA@example.com", token, `{"completedCourses":["intro"]}`)
	assert.Equal(t, fiber.StatusOK, code)
}
