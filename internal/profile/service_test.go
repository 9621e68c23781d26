package profile

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/benki/benki/internal/kv"
	"github.com/benki/benki/internal/logging"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(store kv.Store) *Service {
	svc := NewService(store, logging.Discard())
	svc.SetClock(func() time.Time { return fixedNow })
	return svc
}

func TestGetReturnsDefaultsWithoutPersisting(t *testing.T) {
	store := kv.NewMemoryStore()
	svc := newTestService(store)

	p, err := svc.Get(context.Background(), "ada@benki.africa")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.ID != "ada@benki.africa" || p.Email != "ada@benki.africa" || p.KYCStatus != KYCPending {
		t.Fatalf("unexpected defaults %+v", p)
	}
	if p.JoinedCircles == nil || p.Investments == nil || p.KYCData == nil {
		t.Fatalf("expected empty collections, got %+v", p)
	}
	if _, ok, _ := store.Get(context.Background(), Key("ada@benki.africa")); ok {
		t.Fatalf("defaults must not be persisted on read")
	}
}

func TestUpdateMergesAndKeepsProtectedFields(t *testing.T) {
	store := kv.NewMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()

	stored := Default("u1", fixedNow.Add(-time.Hour))
	stored.KYCStatus = KYCVerified
	stored.JoinedCircles = []string{"tech-africa"}
	stored.FirstName = "Ada"
	stored.City = "Lagos"
	if err := kv.SetJSON(ctx, store, Key("u1"), stored); err != nil {
		t.Fatalf("seed: %v", err)
	}

	patch := `{"city":"Nairobi","kycStatus":"pending","joinedCircles":[],"id":"someone-else","bio":"investor"}`
	p, err := svc.Update(ctx, "u1", []byte(patch))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.City != "Nairobi" || p.Bio != "investor" || p.FirstName != "Ada" {
		t.Fatalf("merge failed %+v", p)
	}
	if p.KYCStatus != KYCVerified || len(p.JoinedCircles) != 1 || p.ID != "u1" {
		t.Fatalf("protected fields changed %+v", p)
	}
	if !p.UpdatedAt.Equal(fixedNow) || !p.CreatedAt.Equal(fixedNow.Add(-time.Hour)) {
		t.Fatalf("unexpected timestamps created=%v updated=%v", p.CreatedAt, p.UpdatedAt)
	}
}

func TestUpdateRejectsNonObject(t *testing.T) {
	svc := newTestService(kv.NewMemoryStore())
	for _, body := range []string{`[]`, `"x"`, `nope`, `null`, `{"firstName":5}`} {
		if _, err := svc.Update(context.Background(), "u1", []byte(body)); !errors.Is(err, ErrInvalidPatch) {
			t.Fatalf("body %s: expected ErrInvalidPatch, got %v", body, err)
		}
	}
}

func TestGetUpgradesOldSchema(t *testing.T) {
	store := kv.NewMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()

	if err := store.Set(ctx, Key("u1"), []byte(`{"id":"u1","firstName":"Ada"}`)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	p, err := svc.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.KYCStatus != KYCPending || p.SchemaVersion != SchemaVersion {
		t.Fatalf("expected upgraded profile, got %+v", p)
	}
	saved, _, _ := kv.GetJSON[Profile](ctx, store, Key("u1"))
	if saved.SchemaVersion != SchemaVersion || saved.FirstName != "Ada" {
		t.Fatalf("expected upgrade written back, got %+v", saved)
	}
}

func TestHandlerRoundTrip(t *testing.T) {
	app := fiber.New()
	h := NewHandler(newTestService(kv.NewMemoryStore()))
	app.Get("/user-profile/:userId", h.Get)
	app.Post("/user-profile/:userId", h.Update)

	req := httptest.NewRequest(fiber.MethodPost, "/user-profile/u1", strings.NewReader(`{"firstName":"Ada"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 got %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/user-profile/u1", nil))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `"firstName":"Ada"`) {
		t.Fatalf("unexpected body %s", body)
	}

	req = httptest.NewRequest(fiber.MethodPost, "/user-profile/u1", strings.NewReader(`[1]`))
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("bad post: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.StatusCode)
	}
}
