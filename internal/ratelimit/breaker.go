package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerSettings controls when the store is considered down.
type BreakerSettings struct {
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{FailureThreshold: 5, OpenTimeout: 30 * time.Second}
}

// Guarded stops calling a failing store for OpenTimeout once FailureThreshold
// consecutive calls have failed.
type Guarded struct {
	inner Limiter
	cb    *gobreaker.CircuitBreaker[Result]
}

func NewGuarded(inner Limiter, s BreakerSettings) *Guarded {
	settings := gobreaker.Settings{
		Name:        "ratelimit-store",
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
	return &Guarded{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[Result](settings),
	}
}

func (g *Guarded) Allow(ctx context.Context, key string) (Result, error) {
	res, err := g.cb.Execute(func() (Result, error) {
		return g.inner.Allow(ctx, key)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Result{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return res, err
}

// State reports the breaker state for health checks.
func (g *Guarded) State() string {
	return g.cb.State().String()
}
