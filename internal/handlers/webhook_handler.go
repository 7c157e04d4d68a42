package handlers

import (
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v82/webhook"
)

type WebhookHandler struct {
	subscriptionService *services.SubscriptionService
	secret              string
}

func NewWebhookHandler(subscriptionService *services.SubscriptionService, secret string) *WebhookHandler {
	return &WebhookHandler{
		subscriptionService: subscriptionService,
		secret:              secret,
	}
}

// HandleStripe verifies the Stripe-Signature header before touching the payload.
func (h *WebhookHandler) HandleStripe(c *fiber.Ctx) error {
	if h.secret == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Error: true, Message: "Webhooks not configured",
		})
	}

	event, err := webhook.ConstructEventWithOptions(c.Body(), c.Get("Stripe-Signature"), h.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		slog.Warn("webhook signature rejected", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid signature",
		})
	}

	status, err := h.subscriptionService.HandleStripeEvent(c.UserContext(), &event)
	if err != nil {
		slog.Error("webhook processing failed", "event_id", event.ID, "event_type", string(event.Type), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: true, Message: "Failed to process webhook event",
		})
	}

	slog.Info("webhook processed", "event_id", event.ID, "event_type", string(event.Type), "status", status)
	return c.JSON(dto.WebhookAck{Received: true, Status: status})
}
