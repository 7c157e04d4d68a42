package dto

import "time"

type CheckoutResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}

// SubscriptionStatusResponse is read-only display data; Active is false
// whenever the lookup could not confirm an active subscription.
type SubscriptionStatusResponse struct {
	Status           string     `json:"status"`
	Active           bool       `json:"active"`
	PlanID           string     `json:"plan_id,omitempty"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty"`
}
