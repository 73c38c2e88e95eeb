package quota

import (
	"context"

	apperrors "ai-bot-network/backend/pkg/errors"
)

// Ledger tracks remaining generation credits per key (a bot id).
// TryConsume must check and decrement in one atomic step and must never
// mutate the counter when it denies.
type Ledger interface {
	TryConsume(ctx context.Context, key string) (remaining int, err error)
	Remaining(ctx context.Context, key string) (int, error)
	// Grant sets the balance to credits. It is the administrative refill entry point.
	Grant(ctx context.Context, key string, credits int) error
	// Open creates the entry with credits unless it already exists
	Open(ctx context.Context, key string, credits int) error
}

func insufficient(key string) error {
	return apperrors.New(apperrors.ErrQuotaExhausted, "no generation credits left").
		WithDetails(map[string]string{"key": key})
}

func validGrant(credits int) error {
	if credits < 0 {
		return apperrors.Validation("credits", "credits must not be negative")
	}
	return nil
}
