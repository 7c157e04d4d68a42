package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// RateLimitMode selects whether the admission check runs at all.
type RateLimitMode int

const (
	RateLimitDisabled RateLimitMode = iota
	RateLimitEnabled
)

func (m RateLimitMode) String() string {
	if m == RateLimitEnabled {
		return "enabled"
	}
	return "disabled"
}

// RateLimiting is resolved once at startup. Only RateLimitEnabled carries
// counter-store credentials.
type RateLimiting struct {
	Mode     RateLimitMode
	RedisURL string
	Token    string
	Max      int
	Window   time.Duration
}

type Config struct {
	AppEnv   string
	LogLevel string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Sessions
	JWTSecret         string
	JWTAccessExpiry   time.Duration
	JWTRefreshExpiry  time.Duration
	SessionCookieName string

	// Billing
	StripeSecretKey     string
	StripePriceID       string
	StripeWebhookSecret string
	PublicBaseURL       string

	// Admission check
	RateLimit RateLimiting

	// Observability
	SentryDSN        string
	LogRetentionDays int

	// Server
	Port        string
	CORSOrigins string
}

// Load reads an optional env file (".env" when envFile is empty) and then the
// process environment. It never fails; call Validate before using the result.
func Load(envFile string) *Config {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			slog.Warn("env file not loaded", "path", envFile, "error", err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "mileage_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret:         getEnv("JWT_SECRET", ""),
		JWTAccessExpiry:   getDurationEnv("JWT_ACCESS_EXPIRY", 1*time.Hour),
		JWTRefreshExpiry:  getDurationEnv("JWT_REFRESH_EXPIRY", 30*24*time.Hour),
		SessionCookieName: getEnv("SESSION_COOKIE_NAME", "mileage_session"),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripePriceID:       getEnv("STRIPE_PRICE_ID", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		PublicBaseURL:       strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),

		RateLimit: resolveRateLimiting(
			getEnv("RATE_LIMIT_REDIS_URL", ""),
			getEnv("RATE_LIMIT_REDIS_TOKEN", ""),
			getIntEnv("RATE_LIMIT_MAX", 10),
			getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		),

		SentryDSN:        getEnv("SENTRY_DSN", ""),
		LogRetentionDays: getIntEnv("LOG_RETENTION_DAYS", 30),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
	}

	return cfg
}

// resolveRateLimiting enables the admission check only when both halves of
// the counter-store pair are present.
func resolveRateLimiting(redisURL, token string, max int, window time.Duration) RateLimiting {
	rl := RateLimiting{Mode: RateLimitDisabled, Max: max, Window: window}
	if redisURL == "" || token == "" {
		if redisURL != "" || token != "" {
			slog.Warn("rate limiting disabled: RATE_LIMIT_REDIS_URL and RATE_LIMIT_REDIS_TOKEN must both be set")
		}
		return rl
	}
	rl.Mode = RateLimitEnabled
	rl.RedisURL = redisURL
	rl.Token = token
	return rl
}

// Validate reports every missing or malformed required setting at once.
func (c *Config) Validate() error {
	var errs []error
	required := []struct {
		key, val string
	}{
		{"DB_PASSWORD", c.DBPassword},
		{"JWT_SECRET", c.JWTSecret},
		{"STRIPE_SECRET_KEY", c.StripeSecretKey},
		{"STRIPE_PRICE_ID", c.StripePriceID},
		{"PUBLIC_BASE_URL", c.PublicBaseURL},
	}
	for _, r := range required {
		if r.val == "" {
			errs = append(errs, fmt.Errorf("%s is required", r.key))
		}
	}

	if c.PublicBaseURL != "" {
		u, err := url.Parse(c.PublicBaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("PUBLIC_BASE_URL must be an absolute http(s) URL, got %q", c.PublicBaseURL))
		}
	}

	if c.RateLimit.Max <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MAX must be positive"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
