package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"ai-bot-network/backend/internal/models"
	apperrors "ai-bot-network/backend/pkg/errors"
)

// MemoryStore is a mutex-guarded in-process store. It backs the transient
// mirror of the reduced tier and unit tests.
type MemoryStore struct {
	mu   sync.RWMutex
	bots map[string]*models.Bot
	now  func() time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bots: make(map[string]*models.Bot),
		now:  time.Now,
	}
}

// FindOne returns a copy of the visible bot
func (m *MemoryStore) FindOne(_ context.Context, ownerID, botID string) (*models.Bot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bot, ok := m.bots[botID]
	if !ok || !(Filter{OwnerID: ownerID, BotID: botID}).Matches(bot) {
		return nil, apperrors.New(apperrors.ErrNotFound, "bot not found")
	}
	return bot.Clone(), nil
}

// Find lists copies of matching bots, newest first
func (m *MemoryStore) Find(_ context.Context, filter Filter) ([]*models.Bot, error) {
	m.mu.RLock()
	out := make([]*models.Bot, 0, len(m.bots))
	for _, bot := range m.bots {
		if filter.Matches(bot) {
			out = append(out, bot.Clone())
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// InsertOne stores a copy of bot. Inserting an existing id fails.
func (m *MemoryStore) InsertOne(_ context.Context, bot *models.Bot) error {
	if bot.ID == "" {
		return apperrors.Validation("id", "bot id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.bots[bot.ID]; exists {
		return apperrors.New(apperrors.ErrValidation, "bot already exists")
	}
	m.bots[bot.ID] = bot.Clone()
	return nil
}

// Put inserts or replaces bot. Used to mirror documents read from a primary store.
func (m *MemoryStore) Put(bot *models.Bot) {
	m.mu.Lock()
	m.bots[bot.ID] = bot.Clone()
	m.mu.Unlock()
}

// Has reports whether id is stored, regardless of visibility
func (m *MemoryStore) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.bots[id]
	return ok
}

// UpdateOne applies patch under the store lock
func (m *MemoryStore) UpdateOne(_ context.Context, filter Filter, patch Patch) (*models.Bot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bot, ok := m.bots[filter.BotID]
	if !ok || !filter.Matches(bot) {
		return nil, apperrors.New(apperrors.ErrNotFound, "bot not found")
	}
	patch.Apply(bot, m.now())
	return bot.Clone(), nil
}

// CountDocuments counts matching bots
func (m *MemoryStore) CountDocuments(_ context.Context, filter Filter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, bot := range m.bots {
		if filter.Matches(bot) {
			n++
		}
	}
	return n, nil
}

// Ping always succeeds
func (m *MemoryStore) Ping(context.Context) error {
	return nil
}
