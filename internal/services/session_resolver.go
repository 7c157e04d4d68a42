package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahmetcoskunkizilkaya/mileage-backend/internal/session"
)

var (
	// ErrNoSession is what an AuthProvider returns for a missing, invalid
	// or expired session. It is absence, not failure.
	ErrNoSession = errors.New("no valid session")

	// ErrAuthUnavailable wraps any other provider error.
	ErrAuthUnavailable = errors.New("auth provider unavailable")
)

// AuthProvider is the seam to whatever validates sessions.
type AuthProvider interface {
	GetUser(ctx context.Context, accessToken string) (*session.Identity, error)
	SignOut(ctx context.Context, refreshToken string) error
}

type SessionResolver struct {
	provider AuthProvider
}

func NewSessionResolver(provider AuthProvider) *SessionResolver {
	return &SessionResolver{provider: provider}
}

// ResolveIdentity returns (nil, nil) when there is no valid session. A
// non-nil error always wraps ErrAuthUnavailable.
func (r *SessionResolver) ResolveIdentity(ctx context.Context, accessToken string) (*session.Identity, error) {
	if accessToken == "" {
		return nil, nil
	}

	identity, err := r.provider.GetUser(ctx, accessToken)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrAuthUnavailable, err)
	}
	return identity, nil
}
