package models

import (
	"time"
)

// Stage is a bot's evolution stage. It is derived from XP and never set directly.
type Stage string

const (
	StageHatchling  Stage = "hatchling"
	StageJuvenile   Stage = "juvenile"
	StageAdolescent Stage = "adolescent"
	StageAdult      Stage = "adult"
	StageElder      Stage = "elder"
	StageLegendary  Stage = "legendary"
)

// DefaultAvatarEmoji is shown until an image avatar has been resolved
const DefaultAvatarEmoji = "🤖"

// Bot is the central entity of the network
type Bot struct {
	ID            string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OwnerID       string    `json:"ownerId" gorm:"index:idx_bots_owner_visible,priority:1;not null"`
	Name          string    `json:"name" gorm:"not null"`
	Focus         string    `json:"focus"`
	CoreDirective string    `json:"coreDirective"`
	Interests     []string  `json:"interests" gorm:"serializer:json;type:text"`
	Traits        Traits    `json:"personality" gorm:"embedded;embeddedPrefix:trait_"`
	Stats         Stats     `json:"stats" gorm:"embedded;embeddedPrefix:stat_"`
	Evolution     Evolution `json:"evolution" gorm:"embedded;embeddedPrefix:evo_"`
	Autonomy      Autonomy  `json:"autonomy" gorm:"embedded;embeddedPrefix:auto_"`
	Avatar        Avatar    `json:"avatar" gorm:"embedded;embeddedPrefix:avatar_"`
	IsActive      bool      `json:"isActive" gorm:"index:idx_bots_owner_visible,priority:2;not null"`
	IsDeleted     bool      `json:"isDeleted" gorm:"index:idx_bots_owner_visible,priority:3;not null"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// TableName pins the table name
func (Bot) TableName() string {
	return "bots"
}

// Visible reports whether the bot passes the default visibility predicate for owner
func (b *Bot) Visible(ownerID string) bool {
	return b.OwnerID == ownerID && b.IsActive && !b.IsDeleted
}

// Clone returns a deep copy of the bot
func (b *Bot) Clone() *Bot {
	c := *b
	if b.Interests != nil {
		c.Interests = append([]string(nil), b.Interests...)
	}
	if b.Stats.LastActiveAt != nil {
		t := *b.Stats.LastActiveAt
		c.Stats.LastActiveAt = &t
	}
	if b.Stats.LastPostAt != nil {
		t := *b.Stats.LastPostAt
		c.Stats.LastPostAt = &t
	}
	return &c
}

// Stats holds a bot's evolving numbers. Percentage stats live in [0,100];
// counters only grow outside of administrative correction.
type Stats struct {
	Level        int        `json:"level" gorm:"not null"`
	XP           int        `json:"xp" gorm:"not null"`
	Energy       int        `json:"energy" gorm:"not null"`
	Happiness    int        `json:"happiness" gorm:"not null"`
	Drift        int        `json:"drift" gorm:"not null"`
	Posts        int        `json:"posts" gorm:"not null"`
	Likes        int        `json:"likes" gorm:"not null"`
	Comments     int        `json:"comments" gorm:"not null"`
	Followers    int        `json:"followers" gorm:"not null"`
	Following    int        `json:"following" gorm:"not null"`
	Influence    int        `json:"influence" gorm:"not null"`
	PostsToday   int        `json:"postsToday" gorm:"not null"`
	PostsDay     string     `json:"-" gorm:"size:10"`
	LastActiveAt *time.Time `json:"lastActiveAt,omitempty"`
	LastPostAt   *time.Time `json:"lastPostAt,omitempty"`
}

// Evolution holds the derived stage and the XP needed to reach the next one
type Evolution struct {
	Stage         Stage `json:"stage" gorm:"size:20;not null"`
	NextThreshold int   `json:"nextThreshold" gorm:"not null"`
}

// Autonomy gates self-triggered generation
type Autonomy struct {
	Enabled            bool `json:"enabled" gorm:"not null"`
	MinIntervalMinutes int  `json:"minIntervalMinutes" gorm:"not null"`
	MaxPostsPerDay     int  `json:"maxPostsPerDay" gorm:"not null"`
}

// Avatar is either the default emoji or a resolved image URL with its seed
type Avatar struct {
	Emoji       string `json:"emoji"`
	URL         string `json:"url,omitempty"`
	Seed        string `json:"seed,omitempty"`
	Description string `json:"description,omitempty"`
	Provider    string `json:"provider,omitempty"`
}

// QuotaEntry is one row of the generation credit ledger
type QuotaEntry struct {
	Key       string `gorm:"column:quota_key;primaryKey;type:varchar(64)"`
	Credits   int    `gorm:"not null;check:credits >= 0"`
	UpdatedAt time.Time
}

// TableName pins the table name
func (QuotaEntry) TableName() string {
	return "quota_entries"
}

// Column names used by field-level updates
const (
	ColName          = "name"
	ColFocus         = "focus"
	ColCoreDirective = "core_directive"
	ColIsActive      = "is_active"
	ColIsDeleted     = "is_deleted"
	ColUpdatedAt     = "updated_at"

	ColLevel        = "stat_level"
	ColXP           = "stat_xp"
	ColEnergy       = "stat_energy"
	ColHappiness    = "stat_happiness"
	ColDrift        = "stat_drift"
	ColPosts        = "stat_posts"
	ColPostsToday   = "stat_posts_today"
	ColPostsDay     = "stat_posts_day"
	ColLastActiveAt = "stat_last_active_at"
	ColLastPostAt   = "stat_last_post_at"

	ColStage         = "evo_stage"
	ColNextThreshold = "evo_next_threshold"

	ColAvatarEmoji       = "avatar_emoji"
	ColAvatarURL         = "avatar_url"
	ColAvatarSeed        = "avatar_seed"
	ColAvatarDescription = "avatar_description"
	ColAvatarProvider    = "avatar_provider"
)
