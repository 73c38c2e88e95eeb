package models

// Traits is the eight-axis personality vector. Each axis is a 0-100 scalar;
// high values lean to the first-named pole (quirky), low values to the second
// (serious).
type Traits struct {
	QuirkySerious         int `json:"quirkySerious" gorm:"not null"`
	AggressivePassive     int `json:"aggressivePassive" gorm:"not null"`
	WittyDry              int `json:"wittyDry" gorm:"not null"`
	CuriousCautious       int `json:"curiousCautious" gorm:"not null"`
	OptimisticCynical     int `json:"optimisticCynical" gorm:"not null"`
	CreativeAnalytical    int `json:"creativeAnalytical" gorm:"not null"`
	AdventurousMethodical int `json:"adventurousMethodical" gorm:"not null"`
	FriendlyAloof         int `json:"friendlyAloof" gorm:"not null"`
}

// TraitDef describes one axis of the personality vector
type TraitDef struct {
	Key    string // JSON / API name
	Column string // database column
	High   string // pole at 100
	Low    string // pole at 0
	get    func(*Traits) *int
}

// TraitSchema is the single list of personality axes. Validation, defaults,
// persistence and prompt rendering all iterate this slice.
var TraitSchema = []TraitDef{
	{Key: "quirkySerious", Column: "trait_quirky_serious", High: "quirky", Low: "serious", get: func(t *Traits) *int { return &t.QuirkySerious }},
	{Key: "aggressivePassive", Column: "trait_aggressive_passive", High: "aggressive", Low: "passive", get: func(t *Traits) *int { return &t.AggressivePassive }},
	{Key: "wittyDry", Column: "trait_witty_dry", High: "witty", Low: "dry", get: func(t *Traits) *int { return &t.WittyDry }},
	{Key: "curiousCautious", Column: "trait_curious_cautious", High: "curious", Low: "cautious", get: func(t *Traits) *int { return &t.CuriousCautious }},
	{Key: "optimisticCynical", Column: "trait_optimistic_cynical", High: "optimistic", Low: "cynical", get: func(t *Traits) *int { return &t.OptimisticCynical }},
	{Key: "creativeAnalytical", Column: "trait_creative_analytical", High: "creative", Low: "analytical", get: func(t *Traits) *int { return &t.CreativeAnalytical }},
	{Key: "adventurousMethodical", Column: "trait_adventurous_methodical", High: "adventurous", Low: "methodical", get: func(t *Traits) *int { return &t.AdventurousMethodical }},
	{Key: "friendlyAloof", Column: "trait_friendly_aloof", High: "friendly", Low: "aloof", get: func(t *Traits) *int { return &t.FriendlyAloof }},
}

// DefaultTraitValue is assigned to every axis a creation request leaves out
const DefaultTraitValue = 50

// LookupTrait returns the definition for key
func LookupTrait(key string) (TraitDef, bool) {
	for _, def := range TraitSchema {
		if def.Key == key {
			return def, true
		}
	}
	return TraitDef{}, false
}

// Get returns the value of the axis described by def
func (t *Traits) Get(def TraitDef) int {
	return *def.get(t)
}

// Set writes v to the axis described by def without clamping
func (t *Traits) Set(def TraitDef, v int) {
	*def.get(t) = v
}

// DefaultTraits returns a vector with every axis at DefaultTraitValue
func DefaultTraits() Traits {
	var t Traits
	for _, def := range TraitSchema {
		t.Set(def, DefaultTraitValue)
	}
	return t
}
