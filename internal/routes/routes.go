package routes

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/apps"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/ratelimit"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"gorm.io/gorm"
)

const (
	LoginPath    = "/login"
	PurchasePath = "/subscribe"
)

// Server holds everything the router needs. Limiter is nil when rate
// limiting is disabled.
type Server struct {
	Config        *config.Config
	DB            *gorm.DB
	Limiter       ratelimit.Limiter
	Resolver      *services.SessionResolver
	Subscriptions *services.SubscriptionService

	Auth    *handlers.AuthHandler
	Billing *handlers.BillingHandler
	Health  *handlers.HealthHandler
	Webhook *handlers.WebhookHandler
	Legal   *handlers.LegalHandler

	Plugins []apps.Plugin
}

func Setup(app *fiber.App, s *Server) {
	// Admission check first, then the session, then everything else.
	app.Use(middleware.RateLimit(s.Limiter))
	app.Use(middleware.Session(s.Resolver, s.Config.SessionCookieName))

	app.Get("/robots.txt", s.Legal.Robots)
	app.Get("/sitemap.xml", s.Legal.Sitemap)

	api := app.Group("/api")

	api.Get("/health", s.Health.Check)
	api.Get("/legal/privacy", s.Legal.PrivacyPolicy)
	api.Get("/legal/terms", s.Legal.TermsOfService)

	// Credential endpoints get their own in-process limit: 10 req/min per IP
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:               10,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	}))
	auth.Post("/register", s.Auth.Register)
	auth.Post("/login", s.Auth.Login)
	auth.Post("/refresh", s.Auth.Refresh)
	auth.Post("/logout", s.Auth.Logout)
	auth.Delete("/account", middleware.RequireIdentity(LoginPath), s.Auth.DeleteAccount)

	api.Get("/account/subscription", middleware.RequireIdentity(LoginPath), s.Billing.SubscriptionStatus)
	// The checkout handler answers anonymous callers itself.
	api.Post("/billing/checkout", s.Billing.Checkout)

	webhooks := api.Group("/webhooks")
	webhooks.Post("/stripe", s.Webhook.HandleStripe)

	premium := api.Group("/p",
		middleware.RequireIdentity(LoginPath),
		middleware.RequireActiveSubscription(s.Subscriptions, PurchasePath),
	)
	deps := apps.Deps{DB: s.DB, Config: s.Config}
	for _, p := range s.Plugins {
		p.RegisterRoutes(premium, deps)
	}
}
