package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/session"
)

var (
	ErrNoIdentity     = errors.New("checkout requires a signed-in user")
	ErrCheckoutFailed = errors.New("could not start checkout, please try again")
)

// CheckoutParams is what the orchestrator asks the payment provider for.
type CheckoutParams struct {
	PriceID           string
	CustomerEmail     string
	ClientReferenceID string
	SuccessURL        string
	CancelURL         string
	Metadata          map[string]string
}

// CheckoutSession is ephemeral and never stored.
type CheckoutSession struct {
	ID  string
	URL string
}

type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
}

type CheckoutService struct {
	provider PaymentProvider
	priceID  string
	baseURL  string
}

func NewCheckoutService(provider PaymentProvider, priceID, baseURL string) *CheckoutService {
	return &CheckoutService{provider: provider, priceID: priceID, baseURL: baseURL}
}

// CreateCheckoutSession starts a hosted subscription checkout for identity.
// It is not retried: a blind retry could open a second session.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, identity *session.Identity) (*CheckoutSession, error) {
	if identity == nil {
		return nil, ErrNoIdentity
	}

	userID := identity.ID.String()
	params := CheckoutParams{
		PriceID:           s.priceID,
		CustomerEmail:     identity.Email,
		ClientReferenceID: userID,
		SuccessURL:        s.baseURL + "/dashboard?checkout=success&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         s.baseURL + "/subscribe?checkout=canceled",
		Metadata:          map[string]string{metadataUserID: userID},
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, params)
	if err != nil {
		slog.Error("checkout session creation failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrCheckoutFailed, err)
	}
	if sess == nil || sess.URL == "" {
		slog.Error("checkout session has no redirect url", "user_id", userID)
		return nil, ErrCheckoutFailed
	}
	return sess, nil
}
