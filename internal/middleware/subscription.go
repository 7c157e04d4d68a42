package middleware

import (
	"context"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/session"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type SubscriptionLookup interface {
	LatestSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
}

// RequireActiveSubscription lets a request through only when the caller's
// latest subscription is active. Must run after RequireIdentity.
//
// A failed lookup is not treated as "no subscription": the caller gets a 503
// instead of being pushed to the purchase flow.
func RequireActiveSubscription(subs SubscriptionLookup, purchasePath string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := session.GetUserID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		sub, err := subs.LatestSubscription(c.UserContext(), userID)
		if err != nil {
			slog.Error("subscription lookup failed",
				"request_id", requestID(c),
				"user_id", userID.String(),
				"path", c.Path(),
				"error", err,
			)
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
				Error: true, Message: "Unable to verify your subscription. Please try again.",
			})
		}

		if services.DecideFor(sub) == services.AccessAllow {
			return c.Next()
		}
		if wantsHTML(c) {
			return c.Redirect(purchasePath, fiber.StatusSeeOther)
		}
		return c.Status(fiber.StatusPaymentRequired).JSON(dto.ErrorResponse{
			Error: true, Message: "An active subscription is required", Redirect: purchasePath,
		})
	}
}
