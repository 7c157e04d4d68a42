package middleware

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/session"
	"github.com/gofiber/fiber/v2"
)

// IdentityResolver turns an access token into the current identity.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, accessToken string) (*session.Identity, error)
}

// Session resolves the caller's identity on every request and stores it in
// the context. Provider failures are logged and the request continues as
// anonymous.
func Session(resolver IdentityResolver, cookieName string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := session.TokenFromRequest(c, cookieName)
		if token == "" {
			return c.Next()
		}

		identity, err := resolver.ResolveIdentity(c.UserContext(), token)
		if err != nil {
			slog.Error("session resolution failed",
				"request_id", requestID(c),
				"path", c.Path(),
				"error", err,
			)
			return c.Next()
		}
		if identity != nil {
			session.SetIdentity(c, identity)
		}
		return c.Next()
	}
}

// RequireIdentity rejects anonymous requests. Browsers are sent to loginPath.
func RequireIdentity(loginPath string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if session.GetIdentity(c) != nil {
			return c.Next()
		}
		if wantsHTML(c) {
			return c.Redirect(loginPath, fiber.StatusSeeOther)
		}
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized", Redirect: loginPath,
		})
	}
}

func wantsHTML(c *fiber.Ctx) bool {
	return strings.Contains(c.Get(fiber.HeaderAccept), fiber.MIMETextHTML)
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}
