package handlers

import (
	"errors"

	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/session"
	"github.com/gofiber/fiber/v2"
)

type BillingHandler struct {
	checkout      *services.CheckoutService
	subscriptions *services.SubscriptionService
}

func NewBillingHandler(checkout *services.CheckoutService, subscriptions *services.SubscriptionService) *BillingHandler {
	return &BillingHandler{checkout: checkout, subscriptions: subscriptions}
}

func (h *BillingHandler) Checkout(c *fiber.Ctx) error {
	sess, err := h.checkout.CreateCheckoutSession(c.UserContext(), session.GetIdentity(c))
	if err != nil {
		if errors.Is(err, services.ErrNoIdentity) {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Please sign in to subscribe", Redirect: "/login",
			})
		}
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
			Error: true, Message: services.ErrCheckoutFailed.Error(),
		})
	}

	return c.JSON(dto.CheckoutResponse{URL: sess.URL, SessionID: sess.ID})
}

func (h *BillingHandler) SubscriptionStatus(c *fiber.Ctx) error {
	userID, err := session.GetUserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Unauthorized",
		})
	}

	return c.JSON(h.subscriptions.DisplayStatus(c.UserContext(), userID))
}
