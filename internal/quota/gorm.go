package quota

import (
	"context"
	"errors"
	"time"

	"ai-bot-network/backend/internal/models"
	apperrors "ai-bot-network/backend/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormLedger keeps credits in the quota_entries table
type GormLedger struct {
	db *gorm.DB
}

// NewGormLedger wraps an open gorm handle
func NewGormLedger(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

// TryConsume decrements with a single conditional UPDATE; RowsAffected tells
// whether a credit was available.
func (l *GormLedger) TryConsume(ctx context.Context, key string) (int, error) {
	var entry models.QuotaEntry
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.QuotaEntry{}).
			Where("quota_key = ? AND credits > 0", key).
			Updates(map[string]any{
				"credits":    gorm.Expr("credits - 1"),
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return insufficient(key)
		}
		return tx.Where("quota_key = ?", key).First(&entry).Error
	})
	if err != nil {
		return 0, classify(err)
	}
	return entry.Credits, nil
}

// Remaining reads the balance; a missing entry has zero credits
func (l *GormLedger) Remaining(ctx context.Context, key string) (int, error) {
	var entry models.QuotaEntry
	err := l.db.WithContext(ctx).Where("quota_key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, classify(err)
	}
	return entry.Credits, nil
}

// Grant upserts the balance
func (l *GormLedger) Grant(ctx context.Context, key string, credits int) error {
	if err := validGrant(credits); err != nil {
		return err
	}
	entry := models.QuotaEntry{Key: key, Credits: credits, UpdatedAt: time.Now()}
	err := l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "quota_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"credits", "updated_at"}),
	}).Create(&entry).Error
	return classify(err)
}

// Open inserts the entry, leaving an existing one untouched
func (l *GormLedger) Open(ctx context.Context, key string, credits int) error {
	if err := validGrant(credits); err != nil {
		return err
	}
	entry := models.QuotaEntry{Key: key, Credits: credits, UpdatedAt: time.Now()}
	err := l.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error
	return classify(err)
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.Wrap(apperrors.ErrDependencyUnavailable, err, "quota ledger unavailable")
}
