package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/ratelimit"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/session"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	identity *session.Identity
	err      error
	tokens   []string
}

func (f *fakeResolver) ResolveIdentity(ctx context.Context, token string) (*session.Identity, error) {
	f.tokens = append(f.tokens, token)
	return f.identity, f.err
}

type fakeLookup struct {
	sub *models.Subscription
	err error
}

func (f *fakeLookup) LatestSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	return f.sub, f.err
}

type fakeLimiter struct {
	results []bool
	err     error
	keys    []string
}

func (f *fakeLimiter) Allow(ctx context.Context, key string) (ratelimit.Result, error) {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return ratelimit.Result{}, f.err
	}
	allowed := f.results[0]
	f.results = f.results[1:]
	return ratelimit.Result{Allowed: allowed, Reset: time.Now().Add(30 * time.Second)}, nil
}

func whoAmI(c *fiber.Ctx) error {
	if id := session.GetIdentity(c); id != nil {
		return c.SendString(id.Email)
	}
	return c.SendString("anonymous")
}

func TestSession_SetsIdentityFromCookie(t *testing.T) {
	resolver := &fakeResolver{identity: &session.Identity{ID: uuid.New(), Email: "a@b.com"}}
	app := fiber.New()
	app.Use(Session(resolver, "mileage_session"))
	app.Get("/", whoAmI)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Cookie", "mileage_session=tok-1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"tok-1"}, resolver.tokens)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", string(body))
}

func TestSession_NoTokenSkipsProvider(t *testing.T) {
	resolver := &fakeResolver{}
	app := fiber.New()
	app.Use(Session(resolver, "mileage_session"))
	app.Get("/", whoAmI)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, resolver.tokens)
}

func TestSession_ProviderFailureContinuesAnonymous(t *testing.T) {
	resolver := &fakeResolver{err: services.ErrAuthUnavailable}
	app := fiber.New()
	app.Use(Session(resolver, "mileage_session"), RequireIdentity("/login"))
	app.Get("/", whoAmI)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer tok-2")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, []string{"tok-2"}, resolver.tokens)
}

func TestRequireIdentity_RedirectsBrowsers(t *testing.T) {
	app := fiber.New()
	app.Use(RequireIdentity("/login"))
	app.Get("/", whoAmI)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func gatedApp(lookup SubscriptionLookup) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		session.SetIdentity(c, &session.Identity{ID: uuid.New(), Email: "a@b.com"})
		return c.Next()
	})
	app.Use(RequireActiveSubscription(lookup, "/subscribe"))
	app.Get("/", whoAmI)
	return app
}

func TestRequireActiveSubscription(t *testing.T) {
	tests := []struct {
		name   string
		lookup *fakeLookup
		want   int
	}{
		{"active", &fakeLookup{sub: &models.Subscription{Status: models.ParseSubscriptionStatus("active")}}, fiber.StatusOK},
		{"canceled", &fakeLookup{sub: &models.Subscription{Status: models.ParseSubscriptionStatus("canceled")}}, fiber.StatusPaymentRequired},
		{"past due", &fakeLookup{sub: &models.Subscription{Status: models.ParseSubscriptionStatus("past_due")}}, fiber.StatusPaymentRequired},
		{"trialing", &fakeLookup{sub: &models.Subscription{Status: models.ParseSubscriptionStatus("trialing")}}, fiber.StatusPaymentRequired},
		{"no record", &fakeLookup{}, fiber.StatusPaymentRequired},
		{"lookup failed", &fakeLookup{err: services.ErrLookupFailed}, fiber.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := gatedApp(tt.lookup).Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)

			if tt.want == fiber.StatusPaymentRequired {
				var body dto.ErrorResponse
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, "/subscribe", body.Redirect)
			}
		})
	}
}

func TestRequireActiveSubscription_RedirectsBrowsers(t *testing.T) {
	app := gatedApp(&fakeLookup{})
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Accept", "text/html")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/subscribe", resp.Header.Get("Location"))
}

func TestRateLimit_DisabledIsPassThrough(t *testing.T) {
	app := fiber.New()
	app.Use(RateLimit(nil))
	app.Get("/", whoAmI)

	for i := 0; i < 20; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}
}

func TestRateLimit_DeniesWithRetryAfter(t *testing.T) {
	limiter := &fakeLimiter{results: []bool{true, false}}
	app := fiber.New()
	app.Use(RateLimit(limiter))
	app.Get("/", whoAmI)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	assert.Equal(t, []string{"198.51.100.1, 10.0.0.1", "198.51.100.1, 10.0.0.1"}, limiter.keys)
}

func TestRateLimit_StoreFailureFailsOpen(t *testing.T) {
	limiter := &fakeLimiter{err: errors.New("dial tcp: connection refused")}
	app := fiber.New()
	app.Use(RateLimit(limiter))
	app.Get("/", whoAmI)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, limiter.keys, 1)
}

func TestSecurityHeaders(t *testing.T) {
	app := fiber.New()
	app.Use(SecurityHeaders(true))
	app.Get("/", whoAmI)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.NotEmpty(t, resp.Header.Get("Strict-Transport-Security"))
}
