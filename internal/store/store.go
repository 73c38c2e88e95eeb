package store

import (
	"context"
	"time"

	"ai-bot-network/backend/internal/models"
	"ai-bot-network/backend/internal/personality"
)

// Store is the bot document store. Implementations must apply Patch as a
// field-level update so concurrent training and generation calls on one bot
// never overwrite each other's fields.
type Store interface {
	FindOne(ctx context.Context, ownerID, botID string) (*models.Bot, error)
	Find(ctx context.Context, filter Filter) ([]*models.Bot, error)
	InsertOne(ctx context.Context, bot *models.Bot) error
	UpdateOne(ctx context.Context, filter Filter, patch Patch) (*models.Bot, error)
	CountDocuments(ctx context.Context, filter Filter) (int64, error)
	Ping(ctx context.Context) error
}

// Filter selects bots. An empty OwnerID matches every owner and is reserved
// for administrative calls. Hidden bots (inactive or soft-deleted) only match
// when IncludeHidden is set.
type Filter struct {
	OwnerID       string
	BotID         string
	IncludeHidden bool
	Limit         int
}

// Matches reports whether bot satisfies f
func (f Filter) Matches(bot *models.Bot) bool {
	if f.OwnerID != "" && bot.OwnerID != f.OwnerID {
		return false
	}
	if f.BotID != "" && bot.ID != f.BotID {
		return false
	}
	if !f.IncludeHidden && (!bot.IsActive || bot.IsDeleted) {
		return false
	}
	return true
}

// Patch is a field-level update. Deltas are added to the stored value;
// percentage stats are clamped to [0,100] by the store. Whenever XP changes
// the store re-derives level and evolution stage in the same write.
type Patch struct {
	Traits        map[string]int // trait key -> value, already clamped
	CoreDirective *string

	XP        int
	Energy    int
	Drift     int
	Happiness int
	Posts     int

	// PostDay bumps the daily post counter for that UTC day, restarting it
	// when the stored day differs.
	PostDay string

	LastActiveAt *time.Time
	LastPostAt   *time.Time
	Avatar       *models.Avatar

	// ResetXP zeroes XP. This is the only way XP goes down.
	ResetXP bool
	Deleted *bool
}

// TouchesXP reports whether applying p can move XP
func (p Patch) TouchesXP() bool {
	return p.XP != 0 || p.ResetXP
}

// FromTraining converts a training plan into a patch
func FromTraining(plan personality.TrainingPlan) Patch {
	p := Patch{
		Traits: plan.Traits,
		XP:     plan.XPDelta,
		Energy: plan.EnergyDelta,
		Drift:  plan.DriftDelta,
	}
	if plan.HasDirective() {
		d := plan.Directive
		p.CoreDirective = &d
	}
	return p
}

// Apply writes p into bot in place. MemoryStore uses it directly and it
// defines the semantics the SQL translation in GormStore must match.
func (p Patch) Apply(bot *models.Bot, now time.Time) {
	for key, v := range p.Traits {
		if def, ok := models.LookupTrait(key); ok {
			bot.Traits.Set(def, personality.Clamp(v))
		}
	}
	if p.CoreDirective != nil {
		bot.CoreDirective = *p.CoreDirective
	}
	bot.Stats.Energy = personality.Clamp(bot.Stats.Energy + p.Energy)
	bot.Stats.Drift = personality.Clamp(bot.Stats.Drift + p.Drift)
	bot.Stats.Happiness = personality.Clamp(bot.Stats.Happiness + p.Happiness)
	bot.Stats.Posts += p.Posts
	if p.PostDay != "" {
		if bot.Stats.PostsDay == p.PostDay {
			bot.Stats.PostsToday++
		} else {
			bot.Stats.PostsDay = p.PostDay
			bot.Stats.PostsToday = 1
		}
	}
	if p.LastActiveAt != nil {
		t := *p.LastActiveAt
		bot.Stats.LastActiveAt = &t
	}
	if p.LastPostAt != nil {
		t := *p.LastPostAt
		bot.Stats.LastPostAt = &t
	}
	if p.Avatar != nil {
		bot.Avatar = *p.Avatar
	}
	if p.Deleted != nil {
		bot.IsDeleted = *p.Deleted
	}
	if p.ResetXP {
		bot.Stats.XP = 0
	} else {
		bot.Stats.XP += p.XP
	}
	personality.Recompute(bot)
	bot.UpdatedAt = now
}
