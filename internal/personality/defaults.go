package personality

import (
	"strings"

	"ai-bot-network/backend/internal/models"
)

// Defaults applied to new bots
const (
	DefaultEnergy             = 100
	DefaultHappiness          = 80
	DefaultDrift              = 20
	DefaultMinIntervalMinutes = 60
	DefaultMaxPostsPerDay     = 5
)

// NewBot builds a bot from a creation request with every default applied.
// The caller assigns the ID and timestamps.
func NewBot(req models.CreateBotRequest) *models.Bot {
	bot := &models.Bot{
		OwnerID:       req.OwnerID,
		Name:          strings.TrimSpace(req.Name),
		Focus:         strings.TrimSpace(req.Focus),
		CoreDirective: strings.TrimSpace(req.CoreDirective),
		Interests:     cleanInterests(req.Interests),
		Traits:        NormalizeTraits(req.Personality),
		Stats: models.Stats{
			Energy:    DefaultEnergy,
			Happiness: DefaultHappiness,
			Drift:     DefaultDrift,
		},
		Autonomy: models.Autonomy{
			MinIntervalMinutes: DefaultMinIntervalMinutes,
			MaxPostsPerDay:     DefaultMaxPostsPerDay,
		},
		Avatar:   models.Avatar{Emoji: models.DefaultAvatarEmoji},
		IsActive: true,
	}
	if req.Autonomy != nil {
		bot.Autonomy = *req.Autonomy
		if bot.Autonomy.MinIntervalMinutes < 0 {
			bot.Autonomy.MinIntervalMinutes = 0
		}
		if bot.Autonomy.MaxPostsPerDay < 0 {
			bot.Autonomy.MaxPostsPerDay = 0
		}
	}
	if d := strings.TrimSpace(req.AvatarDescription); d != "" {
		bot.Avatar.Description = d
	}
	Recompute(bot)
	return bot
}

func cleanInterests(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
