package quota

import (
	"context"
	"sync"
)

// MemoryLedger is a mutex-guarded ledger. Keys seen for the first time start
// with the default allowance, which lets the reduced tier serve bots whose
// real balance lives in an unreachable store.
type MemoryLedger struct {
	mu       sync.Mutex
	credits  map[string]int
	fallback int
}

// NewMemoryLedger creates a ledger granting defaultCredits to unknown keys
func NewMemoryLedger(defaultCredits int) *MemoryLedger {
	if defaultCredits < 0 {
		defaultCredits = 0
	}
	return &MemoryLedger{
		credits:  make(map[string]int),
		fallback: defaultCredits,
	}
}

func (l *MemoryLedger) balance(key string) int {
	c, ok := l.credits[key]
	if !ok {
		c = l.fallback
		l.credits[key] = c
	}
	return c
}

func (l *MemoryLedger) TryConsume(_ context.Context, key string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.balance(key)
	if c <= 0 {
		return 0, insufficient(key)
	}
	l.credits[key] = c - 1
	return c - 1, nil
}

func (l *MemoryLedger) Remaining(_ context.Context, key string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance(key), nil
}

func (l *MemoryLedger) Grant(_ context.Context, key string, credits int) error {
	if err := validGrant(credits); err != nil {
		return err
	}
	l.mu.Lock()
	l.credits[key] = credits
	l.mu.Unlock()
	return nil
}

func (l *MemoryLedger) Open(_ context.Context, key string, credits int) error {
	if err := validGrant(credits); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.credits[key]; !ok {
		l.credits[key] = credits
	}
	return nil
}
