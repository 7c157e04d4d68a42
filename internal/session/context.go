package session

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const identityKey = "identity"

var ErrNoIdentity = errors.New("no authenticated identity in context")

// Identity is the authenticated user as reported by the auth provider.
type Identity struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

func SetIdentity(c *fiber.Ctx, id *Identity) {
	c.Locals(identityKey, id)
}

// GetIdentity returns nil for anonymous requests.
func GetIdentity(c *fiber.Ctx) *Identity {
	if id, ok := c.Locals(identityKey).(*Identity); ok {
		return id
	}
	return nil
}

// GetUserID extracts the user UUID of the resolved identity.
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	id := GetIdentity(c)
	if id == nil {
		return uuid.Nil, ErrNoIdentity
	}
	return id.ID, nil
}

// TokenFromRequest reads the access token from the session cookie, falling
// back to an "Authorization: Bearer" header for API clients.
func TokenFromRequest(c *fiber.Ctx, cookieName string) string {
	if v := c.Cookies(cookieName); v != "" {
		return v
	}
	auth := c.Get(fiber.HeaderAuthorization)
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
