package store

import (
	"context"

	"ai-bot-network/backend/internal/models"
	"ai-bot-network/backend/pkg/resilience"
)

// Guarded runs every call of a database-backed store through the database
// breaker, after making sure the schema exists. Ping bypasses both so health
// checks see the database as it is.
type Guarded struct {
	next    Store
	breaker *resilience.CircuitBreaker
	schema  *Schema
}

// NewGuarded wraps next. breaker and schema may be nil.
func NewGuarded(next Store, breaker *resilience.CircuitBreaker, schema *Schema) *Guarded {
	return &Guarded{next: next, breaker: breaker, schema: schema}
}

func (g *Guarded) do(ctx context.Context, fn func() error) error {
	return resilience.Call(g.breaker, func() error {
		if g.schema != nil {
			if err := g.schema.Ensure(ctx); err != nil {
				return err
			}
		}
		return fn()
	})
}

func (g *Guarded) FindOne(ctx context.Context, ownerID, botID string) (bot *models.Bot, err error) {
	err = g.do(ctx, func() error {
		bot, err = g.next.FindOne(ctx, ownerID, botID)
		return err
	})
	return bot, err
}

func (g *Guarded) Find(ctx context.Context, filter Filter) (bots []*models.Bot, err error) {
	err = g.do(ctx, func() error {
		bots, err = g.next.Find(ctx, filter)
		return err
	})
	return bots, err
}

func (g *Guarded) InsertOne(ctx context.Context, bot *models.Bot) error {
	return g.do(ctx, func() error {
		return g.next.InsertOne(ctx, bot)
	})
}

func (g *Guarded) UpdateOne(ctx context.Context, filter Filter, patch Patch) (bot *models.Bot, err error) {
	err = g.do(ctx, func() error {
		bot, err = g.next.UpdateOne(ctx, filter, patch)
		return err
	})
	return bot, err
}

func (g *Guarded) CountDocuments(ctx context.Context, filter Filter) (n int64, err error) {
	err = g.do(ctx, func() error {
		n, err = g.next.CountDocuments(ctx, filter)
		return err
	})
	return n, err
}

func (g *Guarded) Ping(ctx context.Context) error {
	return g.next.Ping(ctx)
}
