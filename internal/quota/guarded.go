package quota

import (
	"context"

	"ai-bot-network/backend/pkg/resilience"
)

// Guarded runs ledger calls through the breaker of the ledger's backing
// service. prepare, when set, runs first inside the breaker; the database
// ledger uses it to make sure its table exists.
type Guarded struct {
	next    Ledger
	breaker *resilience.CircuitBreaker
	prepare func(ctx context.Context) error
}

// NewGuarded wraps next. breaker and prepare may be nil.
func NewGuarded(next Ledger, breaker *resilience.CircuitBreaker, prepare func(ctx context.Context) error) *Guarded {
	return &Guarded{next: next, breaker: breaker, prepare: prepare}
}

func (g *Guarded) do(ctx context.Context, fn func() error) error {
	return resilience.Call(g.breaker, func() error {
		if g.prepare != nil {
			if err := g.prepare(ctx); err != nil {
				return err
			}
		}
		return fn()
	})
}

func (g *Guarded) TryConsume(ctx context.Context, key string) (remaining int, err error) {
	err = g.do(ctx, func() error {
		remaining, err = g.next.TryConsume(ctx, key)
		return err
	})
	return remaining, err
}

func (g *Guarded) Remaining(ctx context.Context, key string) (remaining int, err error) {
	err = g.do(ctx, func() error {
		remaining, err = g.next.Remaining(ctx, key)
		return err
	})
	return remaining, err
}

func (g *Guarded) Grant(ctx context.Context, key string, credits int) error {
	return g.do(ctx, func() error {
		return g.next.Grant(ctx, key, credits)
	})
}

func (g *Guarded) Open(ctx context.Context, key string, credits int) error {
	return g.do(ctx, func() error {
		return g.next.Open(ctx, key, credits)
	})
}
