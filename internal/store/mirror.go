package store

import (
	"context"

	"ai-bot-network/backend/internal/models"
	apperrors "ai-bot-network/backend/pkg/errors"
)

// Mirrored writes through to a primary store and copies every document it
// reads or writes into a transient in-memory mirror. The reduced tier serves
// from that mirror when the primary is down.
type Mirrored struct {
	primary Store
	mirror  *MemoryStore
}

// NewMirrored wraps primary, mirroring into mirror
func NewMirrored(primary Store, mirror *MemoryStore) *Mirrored {
	return &Mirrored{primary: primary, mirror: mirror}
}

// Mirror returns the transient copy
func (s *Mirrored) Mirror() *MemoryStore {
	return s.mirror
}

func (s *Mirrored) FindOne(ctx context.Context, ownerID, botID string) (*models.Bot, error) {
	bot, err := s.primary.FindOne(ctx, ownerID, botID)
	if err != nil {
		return nil, err
	}
	s.mirror.Put(bot)
	return bot, nil
}

func (s *Mirrored) Find(ctx context.Context, filter Filter) ([]*models.Bot, error) {
	bots, err := s.primary.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, bot := range bots {
		s.mirror.Put(bot)
	}
	return bots, nil
}

func (s *Mirrored) InsertOne(ctx context.Context, bot *models.Bot) error {
	if err := s.primary.InsertOne(ctx, bot); err != nil {
		return err
	}
	s.mirror.Put(bot)
	return nil
}

func (s *Mirrored) UpdateOne(ctx context.Context, filter Filter, patch Patch) (*models.Bot, error) {
	bot, err := s.primary.UpdateOne(ctx, filter, patch)
	if err != nil {
		return nil, err
	}
	s.mirror.Put(bot)
	return bot, nil
}

func (s *Mirrored) CountDocuments(ctx context.Context, filter Filter) (int64, error) {
	return s.primary.CountDocuments(ctx, filter)
}

func (s *Mirrored) Ping(ctx context.Context) error {
	return s.primary.Ping(ctx)
}

// Transient serves reads and writes from the mirror alone. The mirror is not
// authoritative, so a miss is reported as an unavailable dependency rather
// than NOT_FOUND: the bot may well exist in the primary store.
type Transient struct {
	mirror *MemoryStore
}

// NewTransient wraps mirror
func NewTransient(mirror *MemoryStore) *Transient {
	return &Transient{mirror: mirror}
}

func (s *Transient) FindOne(ctx context.Context, ownerID, botID string) (*models.Bot, error) {
	bot, err := s.mirror.FindOne(ctx, ownerID, botID)
	if err != nil {
		return nil, s.miss(err)
	}
	return bot, nil
}

func (s *Transient) Find(ctx context.Context, filter Filter) ([]*models.Bot, error) {
	return s.mirror.Find(ctx, filter)
}

func (s *Transient) InsertOne(ctx context.Context, bot *models.Bot) error {
	return s.mirror.InsertOne(ctx, bot)
}

func (s *Transient) UpdateOne(ctx context.Context, filter Filter, patch Patch) (*models.Bot, error) {
	bot, err := s.mirror.UpdateOne(ctx, filter, patch)
	if err != nil {
		return nil, s.miss(err)
	}
	return bot, nil
}

// CountDocuments counts mirrored bots. A lookup of one bot id that the
// mirror has never seen is a miss, not a zero.
func (s *Transient) CountDocuments(ctx context.Context, filter Filter) (int64, error) {
	n, err := s.mirror.CountDocuments(ctx, filter)
	if err == nil && n == 0 && filter.BotID != "" && !s.mirror.Has(filter.BotID) {
		return 0, apperrors.New(apperrors.ErrDependencyUnavailable, "bot is not in the transient mirror")
	}
	return n, err
}

func (s *Transient) Ping(context.Context) error {
	return nil
}

func (s *Transient) miss(err error) error {
	if apperrors.GetErrorCode(err) == apperrors.CodeNotFound {
		return apperrors.New(apperrors.ErrDependencyUnavailable, "bot is not in the transient mirror")
	}
	return err
}
