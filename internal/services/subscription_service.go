package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/dto"
	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/models"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"
)

// ErrLookupFailed means the store could not answer; it never means "no subscription".
var ErrLookupFailed = errors.New("subscription lookup failed")

// Outcomes of HandleStripeEvent, reported back to the provider for debugging.
const (
	EventProcessed  = "processed"
	EventDuplicate  = "duplicate"
	EventIgnored    = "ignored"
	EventUnassigned = "unassigned"
)

const metadataUserID = "user_id"

type SubscriptionService struct {
	db *gorm.DB
}

func NewSubscriptionService(db *gorm.DB) *SubscriptionService {
	return &SubscriptionService{db: db}
}

// LatestSubscription returns the most recently created record for the user,
// or (nil, nil) when the user has none.
func (s *SubscriptionService) LatestSubscription(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var subs []models.Subscription
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(1).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	if len(subs) == 0 {
		return nil, nil
	}
	return &subs[0], nil
}

// DisplayStatus is for read-only status display. A failed lookup is logged
// and shown as "inactive".
func (s *SubscriptionService) DisplayStatus(ctx context.Context, userID uuid.UUID) dto.SubscriptionStatusResponse {
	sub, err := s.LatestSubscription(ctx, userID)
	if err != nil {
		slog.Error("subscription status lookup failed", "user_id", userID.String(), "error", err)
		return dto.SubscriptionStatusResponse{Status: "inactive"}
	}
	if sub == nil {
		return dto.SubscriptionStatusResponse{Status: "inactive"}
	}
	return dto.SubscriptionStatusResponse{
		Status:           sub.Status.Raw,
		Active:           Decide(sub.Status) == AccessAllow,
		PlanID:           sub.PlanID,
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
	}
}

// HandleStripeEvent appends a subscription record for subscription lifecycle
// events. Redelivered events are detected by event id.
func (s *SubscriptionService) HandleStripeEvent(ctx context.Context, event *stripe.Event) (string, error) {
	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
	default:
		return EventIgnored, nil
	}
	if event.Data == nil {
		return "", errors.New("stripe event has no data")
	}

	var payload dto.StripeSubscription
	if err := json.Unmarshal(event.Data.Raw, &payload); err != nil {
		return "", fmt.Errorf("decode subscription: %w", err)
	}

	db := s.db.WithContext(ctx)

	var seen int64
	if err := db.Model(&models.Subscription{}).Where("stripe_event_id = ?", event.ID).Count(&seen).Error; err != nil {
		return "", fmt.Errorf("check event %s: %w", event.ID, err)
	}
	if seen > 0 {
		return EventDuplicate, nil
	}

	userID, ok := s.resolveUser(ctx, &payload)
	if !ok {
		slog.Warn("stripe subscription event without a known user",
			"event_id", event.ID, "subscription", payload.ID, "customer", payload.Customer)
		return EventUnassigned, nil
	}

	status := payload.Status
	if event.Type == "customer.subscription.deleted" && status == "" {
		status = "canceled"
	}

	eventID := event.ID
	record := models.Subscription{
		ID:                   uuid.New(),
		UserID:               userID,
		Status:               models.ParseSubscriptionStatus(status),
		PlanID:               planID(&payload),
		StripeCustomerID:     payload.Customer,
		StripeSubscriptionID: payload.ID,
		StripeEventID:        &eventID,
		CurrentPeriodEnd:     periodEnd(&payload),
	}
	// Stripe does not deliver in order; ordering by event time keeps a late
	// "updated" from overriding a newer "deleted".
	if event.Created > 0 {
		record.CreatedAt = time.Unix(event.Created, 0).UTC()
	}
	if err := db.Create(&record).Error; err != nil {
		// A concurrent redelivery can win the unique index on stripe_event_id.
		if s.eventRecorded(ctx, event.ID) {
			return EventDuplicate, nil
		}
		return "", fmt.Errorf("store subscription: %w", err)
	}

	slog.Info("subscription recorded",
		"user_id", userID.String(), "status", status, "event_type", string(event.Type))
	return EventProcessed, nil
}

func (s *SubscriptionService) eventRecorded(ctx context.Context, eventID string) bool {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Subscription{}).Where("stripe_event_id = ?", eventID).Count(&n).Error
	return err == nil && n > 0
}

// resolveUser prefers the metadata written at checkout and falls back to an
// earlier record for the same Stripe subscription.
func (s *SubscriptionService) resolveUser(ctx context.Context, payload *dto.StripeSubscription) (uuid.UUID, bool) {
	if raw := payload.Metadata[metadataUserID]; raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			return id, true
		}
	}
	if payload.ID == "" {
		return uuid.Nil, false
	}

	var prior []models.Subscription
	if err := s.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", payload.ID).
		Order("created_at DESC").
		Limit(1).
		Find(&prior).Error; err != nil || len(prior) == 0 {
		return uuid.Nil, false
	}
	return prior[0].UserID, true
}

func planID(payload *dto.StripeSubscription) string {
	if len(payload.Items.Data) > 0 {
		return payload.Items.Data[0].Price.ID
	}
	return ""
}

func periodEnd(payload *dto.StripeSubscription) *time.Time {
	ts := payload.CurrentPeriodEnd
	if ts == 0 && len(payload.Items.Data) > 0 {
		ts = payload.Items.Data[0].CurrentPeriodEnd
	}
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
