package personality

import (
	"fmt"
	"strings"

	"ai-bot-network/backend/internal/models"
	apperrors "ai-bot-network/backend/pkg/errors"
)

// Stat bounds and the fixed increments applied by training and generation
const (
	MinValue = 0
	MaxValue = 100

	DirectiveEnergyGain = 10
	DirectiveDriftDrop  = 5
	DirectiveXP         = 10
	TraitUpdateXP       = 5

	GenerationXP         = 15
	GenerationEnergyCost = 5
)

// Clamp pins v into [0,100]
func Clamp(v int) int {
	if v < MinValue {
		return MinValue
	}
	if v > MaxValue {
		return MaxValue
	}
	return v
}

// TrainingPlan is a validated training request: the clamped trait values to
// write, the trimmed directive, and the stat deltas those imply.
type TrainingPlan struct {
	Traits      map[string]int // keyed by TraitDef.Key
	Directive   string
	XPDelta     int
	EnergyDelta int
	DriftDelta  int
}

// HasDirective reports whether the plan sets a new core directive
func (p TrainingPlan) HasDirective() bool {
	return p.Directive != ""
}

// PlanTraining validates req and computes its effects without touching a bot.
// Unknown trait keys are dropped. A request with neither a recognized trait
// nor a non-blank directive fails with NO_VALID_UPDATE.
func PlanTraining(req models.TrainRequest) (TrainingPlan, error) {
	plan := TrainingPlan{Traits: make(map[string]int)}

	for key, v := range req.Personality {
		def, ok := models.LookupTrait(key)
		if !ok {
			continue
		}
		plan.Traits[def.Key] = Clamp(v)
	}
	if len(plan.Traits) > 0 {
		plan.XPDelta += TraitUpdateXP
	}

	if directive := strings.TrimSpace(req.CoreDirective); directive != "" {
		plan.Directive = directive
		plan.EnergyDelta = DirectiveEnergyGain
		plan.DriftDelta = -DirectiveDriftDrop
		plan.XPDelta += DirectiveXP
	}

	if len(plan.Traits) == 0 && !plan.HasDirective() {
		return TrainingPlan{}, apperrors.New(apperrors.ErrNoValidUpdate, "no recognized trait or directive supplied")
	}
	return plan, nil
}

// ApplyTraining returns a copy of bot with req applied. The input bot is not modified.
func ApplyTraining(bot *models.Bot, req models.TrainRequest) (*models.Bot, error) {
	plan, err := PlanTraining(req)
	if err != nil {
		return nil, err
	}
	out := bot.Clone()
	ApplyPlan(out, plan)
	return out, nil
}

// ApplyPlan writes plan into bot in place and re-derives its evolution state
func ApplyPlan(bot *models.Bot, plan TrainingPlan) {
	for key, v := range plan.Traits {
		def, _ := models.LookupTrait(key)
		bot.Traits.Set(def, v)
	}
	if plan.HasDirective() {
		bot.CoreDirective = plan.Directive
	}
	bot.Stats.Energy = Clamp(bot.Stats.Energy + plan.EnergyDelta)
	bot.Stats.Drift = Clamp(bot.Stats.Drift + plan.DriftDelta)
	bot.Stats.XP += plan.XPDelta
	Recompute(bot)
}

// NormalizeTraits builds a full vector from a partial creation map. Missing
// axes default to 50, supplied ones are clamped, unknown keys are ignored.
func NormalizeTraits(in map[string]int) models.Traits {
	t := models.DefaultTraits()
	for key, v := range in {
		if def, ok := models.LookupTrait(key); ok {
			t.Set(def, Clamp(v))
		}
	}
	return t
}

// Describe renders the trait vector as a compact descriptor in schema order,
// naming the pole each axis leans to, e.g. "wittyDry 90 (witty)".
func Describe(t models.Traits) string {
	parts := make([]string, 0, len(models.TraitSchema))
	for _, def := range models.TraitSchema {
		v := t.Get(def)
		parts = append(parts, fmt.Sprintf("%s %d (%s)", def.Key, v, lean(def, v)))
	}
	return strings.Join(parts, ", ")
}

func lean(def models.TraitDef, v int) string {
	switch {
	case v > 50:
		return def.High
	case v < 50:
		return def.Low
	default:
		return "balanced"
	}
}
