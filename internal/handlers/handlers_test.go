package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/session"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const webhookSecret = "whsec_test"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, database.MigrateShared(db))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:            "test",
		JWTSecret:         "test-secret",
		JWTAccessExpiry:   time.Hour,
		JWTRefreshExpiry:  24 * time.Hour,
		SessionCookieName: "mileage_session",
		PublicBaseURL:     "https://mileage.example.com",
	}
}

func withIdentity(id *session.Identity) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id != nil {
			session.SetIdentity(c, id)
		}
		return c.Next()
	}
}

// --- webhooks ---

func subscriptionEvent(eventID, userID, status string) []byte {
	return []byte(`{
  "id": "` + eventID + `",
  "object": "event",
  "api_version": "2025-03-31.basil",
  "type": "customer.subscription.updated",
  "data": {"object": {
    "id": "sub_1",
    "object": "subscription",
    "customer": "cus_1",
    "status": "` + status + `",
    "metadata": {"user_id": "` + userID + `"},
    "items": {"data": [{"id": "si_1", "current_period_end": 1735689600, "price": {"id": "price_123"}}]}
  }}
}`)
}

func postWebhook(t *testing.T, app *fiber.App, payload []byte, secret string) *dto.WebhookAck {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	req := httptest.NewRequest("POST", "/api/webhooks/stripe", strings.NewReader(string(payload)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signed.Header)

	resp, err := app.Test(req)
	require.NoError(t, err)
	if resp.StatusCode != fiber.StatusOK {
		return nil
	}
	var ack dto.WebhookAck
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	return &ack
}

func webhookApp(db *gorm.DB, secret string) *fiber.App {
	app := fiber.New()
	h := NewWebhookHandler(services.NewSubscriptionService(db), secret)
	app.Post("/api/webhooks/stripe", h.HandleStripe)
	return app
}

func TestWebhook_RecordsSubscriptionOnce(t *testing.T) {
	db := newTestDB(t)
	app := webhookApp(db, webhookSecret)
	userID := uuid.New()

	ack := postWebhook(t, app, subscriptionEvent("evt_1", userID.String(), "active"), webhookSecret)
	require.NotNil(t, ack)
	assert.Equal(t, services.EventProcessed, ack.Status)

	ack = postWebhook(t, app, subscriptionEvent("evt_1", userID.String(), "active"), webhookSecret)
	require.NotNil(t, ack)
	assert.Equal(t, services.EventDuplicate, ack.Status)

	var subs []models.Subscription
	require.NoError(t, db.Where("user_id = ?", userID).Find(&subs).Error)
	require.Len(t, subs, 1)
	assert.Equal(t, models.StatusActive, subs[0].Status.Kind)
	assert.Equal(t, "price_123", subs[0].PlanID)
	require.NotNil(t, subs[0].CurrentPeriodEnd)
	assert.Equal(t, int64(1735689600), subs[0].CurrentPeriodEnd.Unix())
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	app := webhookApp(newTestDB(t), webhookSecret)

	ack := postWebhook(t, app, subscriptionEvent("evt_2", uuid.NewString(), "active"), "whsec_wrong")
	assert.Nil(t, ack)

	req := httptest.NewRequest("POST", "/api/webhooks/stripe", strings.NewReader(`{}`))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestWebhook_UnconfiguredSecret(t *testing.T) {
	app := webhookApp(newTestDB(t), "")

	resp, err := app.Test(httptest.NewRequest("POST", "/api/webhooks/stripe", strings.NewReader(`{}`)))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

// --- billing ---

type fakeProvider struct {
	calls   int
	session *services.CheckoutSession
	err     error
}

func (f *fakeProvider) CreateCheckoutSession(ctx context.Context, params services.CheckoutParams) (*services.CheckoutSession, error) {
	f.calls++
	return f.session, f.err
}

func billingApp(db *gorm.DB, provider services.PaymentProvider, id *session.Identity) *fiber.App {
	app := fiber.New()
	h := NewBillingHandler(
		services.NewCheckoutService(provider, "price_123", "https://mileage.example.com"),
		services.NewSubscriptionService(db),
	)
	app.Use(withIdentity(id))
	app.Post("/api/billing/checkout", h.Checkout)
	app.Get("/api/account/subscription", h.SubscriptionStatus)
	return app
}

func TestCheckout(t *testing.T) {
	provider := &fakeProvider{session: &services.CheckoutSession{ID: "cs_1", URL: "https://pay/cs_1"}}
	app := billingApp(newTestDB(t), provider, &session.Identity{ID: uuid.New(), Email: "a@b.com"})

	resp, err := app.Test(httptest.NewRequest("POST", "/api/billing/checkout", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body dto.CheckoutResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "https://pay/cs_1", body.URL)
	assert.Equal(t, "cs_1", body.SessionID)
}

func TestCheckout_Anonymous(t *testing.T) {
	provider := &fakeProvider{}
	app := billingApp(newTestDB(t), provider, nil)

	resp, err := app.Test(httptest.NewRequest("POST", "/api/billing/checkout", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, provider.calls)
}

func TestCheckout_ProviderErrorIsGeneric(t *testing.T) {
	provider := &fakeProvider{err: errors.New("No such price: 'price_123'")}
	app := billingApp(newTestDB(t), provider, &session.Identity{ID: uuid.New(), Email: "a@b.com"})

	resp, err := app.Test(httptest.NewRequest("POST", "/api/billing/checkout", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "No such price")
}

func TestSubscriptionStatus(t *testing.T) {
	db := newTestDB(t)
	userID := uuid.New()
	app := billingApp(db, &fakeProvider{}, &session.Identity{ID: userID, Email: "a@b.com"})

	resp, err := app.Test(httptest.NewRequest("GET", "/api/account/subscription", nil))
	require.NoError(t, err)
	var body dto.SubscriptionStatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "inactive", body.Status)
	assert.False(t, body.Active)

	require.NoError(t, db.Create(&models.Subscription{
		UserID: userID, Status: models.ParseSubscriptionStatus("active"), PlanID: "price_123",
	}).Error)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/account/subscription", nil))
	require.NoError(t, err)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "active", body.Status)
	assert.True(t, body.Active)
}

// --- auth ---

func authApp(db *gorm.DB) *fiber.App {
	cfg := testConfig()
	authService := services.NewAuthService(db, cfg)
	h := NewAuthHandler(authService, cfg)

	app := fiber.New()
	app.Post("/api/auth/register", h.Register)
	app.Post("/api/auth/login", h.Login)
	app.Post("/api/auth/logout", h.Logout)
	return app
}

func TestRegister_SetsSessionCookie(t *testing.T) {
	app := authApp(newTestDB(t))

	req := httptest.NewRequest("POST", "/api/auth/register", strings.NewReader(`{"email":"Driver@Example.com","password":"correct-horse"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var body dto.AuthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "driver@example.com", body.User.Email)

	var cookie string
	for _, c := range resp.Cookies() {
		if c.Name == "mileage_session" {
			cookie = c.Value
			assert.True(t, c.HttpOnly)
		}
	}
	assert.Equal(t, body.AccessToken, cookie)

	req = httptest.NewRequest("POST", "/api/auth/register", strings.NewReader(`{"email":"driver@example.com","password":"correct-horse"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}

func TestLogin_WrongPassword(t *testing.T) {
	app := authApp(newTestDB(t))

	req := httptest.NewRequest("POST", "/api/auth/register", strings.NewReader(`{"email":"a@b.com","password":"correct-horse"}`))
	req.Header.Set("Content-Type", "application/json")
	_, err := app.Test(req)
	require.NoError(t, err)

	req = httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(`{"email":"a@b.com","password":"battery-staple"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestLogout_WithoutSession(t *testing.T) {
	app := authApp(newTestDB(t))

	resp, err := app.Test(httptest.NewRequest("POST", "/api/auth/logout", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var cleared bool
	for _, c := range resp.Cookies() {
		if c.Name == "mileage_session" && c.Value == "" {
			cleared = true
		}
	}
	assert.True(t, cleared)
}

func TestLogout_MalformedBody(t *testing.T) {
	app := authApp(newTestDB(t))

	req := httptest.NewRequest("POST", "/api/auth/logout", strings.NewReader(`{"refresh_token":`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

// --- site metadata ---

func TestHealth(t *testing.T) {
	app := fiber.New()
	app.Get("/api/health", NewHealthHandler(newTestDB(t), nil).Check)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/health", nil))
	require.NoError(t, err)
	var body dto.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "ok", body.DB)
	assert.Equal(t, "disabled", body.RateLimit)
}

func TestRobotsAndSitemap(t *testing.T) {
	h := NewLegalHandler("Mileage Log", "https://mileage.example.com/")
	app := fiber.New()
	app.Get("/robots.txt", h.Robots)
	app.Get("/sitemap.xml", h.Sitemap)
	app.Get("/api/legal/privacy", h.PrivacyPolicy)

	resp, err := app.Test(httptest.NewRequest("GET", "/robots.txt", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Sitemap: https://mileage.example.com/sitemap.xml")

	resp, err = app.Test(httptest.NewRequest("GET", "/sitemap.xml", nil))
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "<loc>https://mileage.example.com/pricing</loc>")

	resp, err = app.Test(httptest.NewRequest("GET", "/api/legal/privacy", nil))
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "support@mileage.example.com")
}
