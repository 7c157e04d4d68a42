package dto

// StripeSubscription is the subset of a Stripe subscription object read from
// customer.subscription.* webhook payloads. current_period_end lives on the
// items in newer API versions and on the subscription in older ones.
type StripeSubscription struct {
	ID               string            `json:"id"`
	Customer         string            `json:"customer"`
	Status           string            `json:"status"`
	CurrentPeriodEnd int64             `json:"current_period_end"`
	Metadata         map[string]string `json:"metadata"`
	Items            struct {
		Data []StripeSubscriptionItem `json:"data"`
	} `json:"items"`
}

type StripeSubscriptionItem struct {
	ID               string `json:"id"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
	Price            struct {
		ID string `json:"id"`
	} `json:"price"`
}

type WebhookAck struct {
	Received bool   `json:"received"`
	Status   string `json:"status"`
}
