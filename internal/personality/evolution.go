package personality

import "ai-bot-network/backend/internal/models"

type threshold struct {
	stage models.Stage
	minXP int
}

// stages must stay sorted by minXP
var stages = []threshold{
	{models.StageHatchling, 0},
	{models.StageJuvenile, 200},
	{models.StageAdolescent, 500},
	{models.StageAdult, 1000},
	{models.StageElder, 2500},
	{models.StageLegendary, 5000},
}

// XPPerLevel is the XP span of one level
const XPPerLevel = 100

// StageFor returns the stage for xp. Thresholds are inclusive: exactly 200 XP is juvenile.
func StageFor(xp int) models.Stage {
	current := stages[0].stage
	for _, th := range stages {
		if xp < th.minXP {
			break
		}
		current = th.stage
	}
	return current
}

// NextThreshold returns the XP at which the next stage begins, or 0 at the top stage
func NextThreshold(xp int) int {
	for _, th := range stages {
		if xp < th.minXP {
			return th.minXP
		}
	}
	return 0
}

// LevelFor derives the level from xp
func LevelFor(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return 1 + xp/XPPerLevel
}

// Recompute re-derives level and evolution state from the bot's XP
func Recompute(bot *models.Bot) {
	if bot.Stats.XP < 0 {
		bot.Stats.XP = 0
	}
	bot.Stats.Level = LevelFor(bot.Stats.XP)
	bot.Evolution.Stage = StageFor(bot.Stats.XP)
	bot.Evolution.NextThreshold = NextThreshold(bot.Stats.XP)
}
