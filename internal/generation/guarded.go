package generation

import (
	"context"
	"errors"

	apperrors "ai-bot-network/backend/pkg/errors"
	"ai-bot-network/backend/pkg/resilience"
)

// GuardedBackend runs generation calls through the backend breaker. Only
// unavailability trips it; refusals and malformed requests do not.
type GuardedBackend struct {
	next    Backend
	breaker *resilience.CircuitBreaker
}

// NewGuardedBackend wraps next
func NewGuardedBackend(next Backend, breaker *resilience.CircuitBreaker) *GuardedBackend {
	return &GuardedBackend{next: next, breaker: breaker}
}

func (g *GuardedBackend) Name() string { return g.next.Name() }

func (g *GuardedBackend) Generate(ctx context.Context, prompt string, opts Options) (res *Result, err error) {
	err = g.breaker.Execute(func() error {
		res, err = g.next.Generate(ctx, prompt, opts)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, apperrors.Wrap(apperrors.ErrBackendUnavailable, err, g.Name()+" circuit open")
	}
	return res, err
}

// Available reports whether a call would reach the backend at all
func (g *GuardedBackend) Available() bool {
	return !g.breaker.Blocking()
}

// Ping bypasses the breaker so health checks see the backend as it is
func (g *GuardedBackend) Ping(ctx context.Context) error {
	if p, ok := g.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
