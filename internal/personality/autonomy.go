package personality

import (
	"time"

	"ai-bot-network/backend/internal/models"
	apperrors "ai-bot-network/backend/pkg/errors"
)

// DayKey is the UTC calendar day the daily post counter refers to
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// PostsOn returns how many posts the bot made on the UTC day of now
func PostsOn(stats models.Stats, now time.Time) int {
	if stats.PostsDay != DayKey(now) {
		return 0
	}
	return stats.PostsToday
}

// CheckAutonomy decides whether a self-triggered generation may run at now
func CheckAutonomy(bot *models.Bot, now time.Time) error {
	a := bot.Autonomy
	if !a.Enabled {
		return autonomyBlocked("autonomous posting is disabled for this bot")
	}
	if last := bot.Stats.LastPostAt; last != nil && a.MinIntervalMinutes > 0 {
		if now.Sub(*last) < time.Duration(a.MinIntervalMinutes)*time.Minute {
			return autonomyBlocked("minimum interval between autonomous posts has not elapsed")
		}
	}
	if a.MaxPostsPerDay > 0 && PostsOn(bot.Stats, now) >= a.MaxPostsPerDay {
		return autonomyBlocked("daily autonomous post ceiling reached")
	}
	return nil
}

func autonomyBlocked(msg string) error {
	return apperrors.New(apperrors.ErrValidation, msg).
		WithDetails(map[string]string{"reason": "AUTONOMY_BLOCKED"})
}
