package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/spf13/cobra"

	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/handlers"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/logging"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/middleware"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/ratelimit"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/routes"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/services"
)

const appName = "Mileage Log"

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Database
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			slog.Error("database close error", "error", err)
		}
	}()

	plugins := registeredPlugins()
	if err := migrate(db, plugins); err != nil {
		return err
	}

	// PostgreSQL log handler (ERROR+ async batch)
	pgLogHandler := logging.NewPGHandler(db)
	slog.SetDefault(slog.New(logging.NewMultiHandler(
		logging.Setup(cfg.LogLevel),
		pgLogHandler,
	)))

	cleanupDone := make(chan struct{})
	logging.StartCleanup(db, cfg.LogRetentionDays, cleanupDone)

	// Admission check
	var limiter ratelimit.Limiter
	var limiterState func() string
	switch cfg.RateLimit.Mode {
	case config.RateLimitEnabled:
		client, err := ratelimit.NewRedisClient(cfg.RateLimit.RedisURL, cfg.RateLimit.Token)
		if err != nil {
			return err
		}
		defer client.Close()
		guarded := ratelimit.NewGuarded(
			ratelimit.NewSlidingWindow(client, cfg.RateLimit.Max, cfg.RateLimit.Window),
			ratelimit.DefaultBreakerSettings(),
		)
		limiter = guarded
		limiterState = func() string { return "enabled (" + guarded.State() + ")" }
		slog.Info("rate limiting enabled", "max", cfg.RateLimit.Max, "window", cfg.RateLimit.Window.String())
	case config.RateLimitDisabled:
		slog.Info("rate limiting disabled")
	}

	// Services
	authService := services.NewAuthService(db, cfg)
	subscriptionService := services.NewSubscriptionService(db)
	checkoutService := services.NewCheckoutService(
		services.NewStripeProvider(cfg.StripeSecretKey),
		cfg.StripePriceID,
		cfg.PublicBaseURL,
	)
	if cfg.StripeWebhookSecret == "" {
		slog.Warn("STRIPE_WEBHOOK_SECRET not set; subscription webhooks will be refused")
	}

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: customErrorHandler,
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.SecurityHeaders(cfg.IsProduction()))

	routes.Setup(app, &routes.Server{
		Config:        cfg,
		DB:            db,
		Limiter:       limiter,
		Resolver:      services.NewSessionResolver(authService),
		Subscriptions: subscriptionService,
		Auth:          handlers.NewAuthHandler(authService, cfg),
		Billing:       handlers.NewBillingHandler(checkoutService, subscriptionService),
		Health:        handlers.NewHealthHandler(db, limiterState),
		Webhook:       handlers.NewWebhookHandler(subscriptionService, cfg.StripeWebhookSecret),
		Legal:         handlers.NewLegalHandler(appName, cfg.PublicBaseURL),
		Plugins:       plugins,
	})

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	listenErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port)
		listenErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	close(cleanupDone)
	pgLogHandler.Stop()

	slog.Info("server stopped")
	return nil
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	// Only expose error details for client errors (4xx), not server errors (5xx)
	if code >= 500 {
		slog.Error("unhandled server error",
			"request_id", c.Locals("requestid"),
			"path", c.Path(),
			"method", c.Method(),
			"error", err.Error(),
		)
		message = "Internal server error"
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}

