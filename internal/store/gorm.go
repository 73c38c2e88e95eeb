package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-bot-network/backend/internal/models"
	"ai-bot-network/backend/internal/personality"
	apperrors "ai-bot-network/backend/pkg/errors"

	"gorm.io/gorm"
)

// GormStore keeps bots in a relational database through gorm
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormStore wraps an open gorm handle
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

// Migrate creates or updates the tables of the bot store, the quota ledger
// and the owner accounts
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{}, &models.Bot{}, &models.QuotaEntry{})
}

func (s *GormStore) scoped(ctx context.Context, f Filter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Bot{})
	if f.OwnerID != "" {
		q = q.Where("owner_id = ?", f.OwnerID)
	}
	if f.BotID != "" {
		q = q.Where("id = ?", f.BotID)
	}
	if !f.IncludeHidden {
		q = q.Where("is_active = ? AND is_deleted = ?", true, false)
	}
	return q
}

// FindOne returns the visible bot id owned by ownerID
func (s *GormStore) FindOne(ctx context.Context, ownerID, botID string) (*models.Bot, error) {
	var bot models.Bot
	err := s.scoped(ctx, Filter{OwnerID: ownerID, BotID: botID}).First(&bot).Error
	if err != nil {
		return nil, classify(err, "bot not found")
	}
	return &bot, nil
}

// Find lists bots matching filter, newest first
func (s *GormStore) Find(ctx context.Context, filter Filter) ([]*models.Bot, error) {
	var bots []*models.Bot
	q := s.scoped(ctx, filter).Order("created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.Find(&bots).Error; err != nil {
		return nil, classify(err, "")
	}
	return bots, nil
}

// InsertOne stores a new bot
func (s *GormStore) InsertOne(ctx context.Context, bot *models.Bot) error {
	if err := s.db.WithContext(ctx).Create(bot).Error; err != nil {
		return classify(err, "")
	}
	return nil
}

// CountDocuments counts bots matching filter
func (s *GormStore) CountDocuments(ctx context.Context, filter Filter) (int64, error) {
	var n int64
	if err := s.scoped(ctx, filter).Count(&n).Error; err != nil {
		return 0, classify(err, "")
	}
	return n, nil
}

// Ping checks the database connection
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return classify(err, "")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return classify(err, "")
	}
	return nil
}

// UpdateOne applies patch to the single bot matched by filter and returns the
// stored result. Deltas run as SQL expressions against the current row so
// concurrent patches compose instead of overwriting each other.
func (s *GormStore) UpdateOne(ctx context.Context, filter Filter, patch Patch) (*models.Bot, error) {
	if filter.BotID == "" {
		return nil, apperrors.Validation("id", "bot id is required")
	}

	var out models.Bot
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := scopedTx(tx, filter)
		res := q.Updates(patchColumns(patch, s.now()))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := tx.Where("id = ?", filter.BotID).First(&out).Error; err != nil {
			return err
		}
		if !patch.TouchesXP() {
			return nil
		}

		level := personality.LevelFor(out.Stats.XP)
		stage := personality.StageFor(out.Stats.XP)
		next := personality.NextThreshold(out.Stats.XP)
		if level == out.Stats.Level && stage == out.Evolution.Stage && next == out.Evolution.NextThreshold {
			return nil
		}
		out.Stats.Level, out.Evolution.Stage, out.Evolution.NextThreshold = level, stage, next
		// derived from the XP this transaction just wrote
		return tx.Model(&models.Bot{}).Where("id = ?", filter.BotID).Updates(map[string]any{
			models.ColLevel:         level,
			models.ColStage:         stage,
			models.ColNextThreshold: next,
		}).Error
	})
	if err != nil {
		return nil, classify(err, "bot not found")
	}
	return &out, nil
}

func scopedTx(tx *gorm.DB, f Filter) *gorm.DB {
	q := tx.Model(&models.Bot{}).Where("id = ?", f.BotID)
	if f.OwnerID != "" {
		q = q.Where("owner_id = ?", f.OwnerID)
	}
	if !f.IncludeHidden {
		q = q.Where("is_active = ? AND is_deleted = ?", true, false)
	}
	return q
}

// clampedAdd yields col + delta pinned to [0,100]. CASE keeps it portable
// across postgres and sqlite.
func clampedAdd(col string, delta int) any {
	return gorm.Expr(
		fmt.Sprintf("CASE WHEN %[1]s + ? > 100 THEN 100 WHEN %[1]s + ? < 0 THEN 0 ELSE %[1]s + ? END", col),
		delta, delta, delta,
	)
}

func patchColumns(p Patch, now time.Time) map[string]any {
	cols := map[string]any{models.ColUpdatedAt: now}

	for key, v := range p.Traits {
		if def, ok := models.LookupTrait(key); ok {
			cols[def.Column] = personality.Clamp(v)
		}
	}
	if p.CoreDirective != nil {
		cols[models.ColCoreDirective] = *p.CoreDirective
	}
	if p.Energy != 0 {
		cols[models.ColEnergy] = clampedAdd(models.ColEnergy, p.Energy)
	}
	if p.Drift != 0 {
		cols[models.ColDrift] = clampedAdd(models.ColDrift, p.Drift)
	}
	if p.Happiness != 0 {
		cols[models.ColHappiness] = clampedAdd(models.ColHappiness, p.Happiness)
	}
	if p.Posts != 0 {
		cols[models.ColPosts] = gorm.Expr(models.ColPosts+" + ?", p.Posts)
	}
	if p.PostDay != "" {
		cols[models.ColPostsToday] = gorm.Expr(
			"CASE WHEN "+models.ColPostsDay+" = ? THEN "+models.ColPostsToday+" + 1 ELSE 1 END", p.PostDay)
		cols[models.ColPostsDay] = p.PostDay
	}
	if p.LastActiveAt != nil {
		cols[models.ColLastActiveAt] = *p.LastActiveAt
	}
	if p.LastPostAt != nil {
		cols[models.ColLastPostAt] = *p.LastPostAt
	}
	if p.Avatar != nil {
		cols[models.ColAvatarEmoji] = p.Avatar.Emoji
		cols[models.ColAvatarURL] = p.Avatar.URL
		cols[models.ColAvatarSeed] = p.Avatar.Seed
		cols[models.ColAvatarDescription] = p.Avatar.Description
		cols[models.ColAvatarProvider] = p.Avatar.Provider
	}
	if p.Deleted != nil {
		cols[models.ColIsDeleted] = *p.Deleted
	}
	if p.ResetXP {
		cols[models.ColXP] = 0
	} else if p.XP != 0 {
		cols[models.ColXP] = gorm.Expr(models.ColXP+" + ?", p.XP)
	}
	return cols
}

// classify maps gorm failures onto the error taxonomy. Anything but a missing
// row means the database could not serve the call.
func classify(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if notFoundMsg == "" {
			notFoundMsg = "record not found"
		}
		return apperrors.New(apperrors.ErrNotFound, notFoundMsg)
	}
	return apperrors.Wrap(apperrors.ErrDependencyUnavailable, err, "bot store unavailable")
}
