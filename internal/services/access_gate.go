package services

import "github.com/ahmetcoskunkizilkaya/mileage-backend/internal/models"

type AccessDecision int

const (
	AccessRedirect AccessDecision = iota
	AccessAllow
)

func (d AccessDecision) String() string {
	if d == AccessAllow {
		return "allow"
	}
	return "redirect"
}

// Decide allows only active subscriptions. Past-due and every unrecognised
// status go to the purchase flow.
func Decide(status models.SubscriptionStatus) AccessDecision {
	switch status.Kind {
	case models.StatusActive:
		return AccessAllow
	case models.StatusCanceled, models.StatusPastDue, models.StatusUnknown:
		return AccessRedirect
	}
	return AccessRedirect
}

// DecideFor treats a missing record like any other non-active status.
func DecideFor(sub *models.Subscription) AccessDecision {
	if sub == nil {
		return AccessRedirect
	}
	return Decide(sub.Status)
}
