package middleware

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/ratelimit"
	"github.com/gofiber/fiber/v2"
)

// RateLimit runs the admission check before anything else. A nil limiter
// means rate limiting is disabled and the handler only calls Next.
// Counter-store failures let the request through.
func RateLimit(limiter ratelimit.Limiter) fiber.Handler {
	if limiter == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return func(c *fiber.Ctx) error {
		key := ClientKey(c)
		res, err := limiter.Allow(c.UserContext(), key)
		if err != nil {
			slog.Warn("rate limit check skipped",
				"request_id", requestID(c),
				"path", c.Path(),
				"error", err,
			)
			return c.Next()
		}

		c.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if res.Allowed {
			return c.Next()
		}

		retry := int(time.Until(res.Reset).Seconds()) + 1
		if retry < 1 {
			retry = 1
		}
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retry))
		return c.Status(fiber.StatusTooManyRequests).JSON(dto.ErrorResponse{
			Error: true, Message: "Too many requests. Please try again later.",
		})
	}
}

// ClientKey is the X-Forwarded-For header taken verbatim, or the connection
// IP when the header is absent.
func ClientKey(c *fiber.Ctx) string {
	if fwd := c.Get(fiber.HeaderXForwardedFor); fwd != "" {
		return fwd
	}
	return c.IP()
}
