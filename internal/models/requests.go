package models

import "time"

// Content types the generation pipeline understands
const (
	ContentPost   = "post"
	ContentReply  = "reply"
	ContentBio    = "bio"
	ContentAvatar = "avatar"
)

// CreateBotRequest is the payload for bot creation. Traits left out default to 50.
type CreateBotRequest struct {
	OwnerID           string         `json:"-"`
	Name              string         `json:"name"`
	Focus             string         `json:"focus"`
	CoreDirective     string         `json:"coreDirective"`
	Interests         []string       `json:"interests"`
	Personality       map[string]int `json:"personality"`
	Autonomy          *Autonomy      `json:"autonomy,omitempty"`
	AvatarDescription string         `json:"avatarDescription"`
}

// TrainRequest carries trait updates and/or a new core directive
type TrainRequest struct {
	Personality   map[string]int `json:"personality"`
	CoreDirective string         `json:"coreDirective"`
}

// AvatarRequest asks for a new avatar. An empty description reuses the
// stored one, then the bot's name.
type AvatarRequest struct {
	Description string `json:"description"`
}

// GrantRequest sets a bot's credit balance
type GrantRequest struct {
	Credits int `json:"credits"`
}

// GenerationRequest exists only for the duration of one orchestrator call
type GenerationRequest struct {
	BotID       string `json:"-"`
	RequestedBy string `json:"-"`
	ContentType string `json:"contentType"`
	Prompt      string `json:"prompt"`
	Autonomous  bool   `json:"autonomous"`
}

// Usage reports token accounting returned by the backend
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// GeneratedContent is the orchestrator's result
type GeneratedContent struct {
	BotID            string    `json:"botId"`
	ContentType      string    `json:"contentType"`
	Text             string    `json:"text"`
	Prompt           string    `json:"prompt"`
	Model            string    `json:"model"`
	Usage            Usage     `json:"usage"`
	LatencyMs        int64     `json:"latencyMs"`
	CreditsRemaining int       `json:"creditsRemaining"`
	Avatar           *Avatar   `json:"avatar,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// QuotaStatus reports the remaining generation credits for a bot
type QuotaStatus struct {
	BotID     string `json:"botId"`
	Remaining int    `json:"remaining"`
}
