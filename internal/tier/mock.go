package tier

import (
	"context"
	"strings"
	"time"

	"ai-bot-network/backend/internal/avatar"
	"ai-bot-network/backend/internal/generation"
	"ai-bot-network/backend/internal/models"
	"ai-bot-network/backend/internal/personality"
	apperrors "ai-bot-network/backend/pkg/errors"

	"github.com/google/uuid"
)

var mockNamespace = uuid.MustParse("6f1c8a52-3b7e-4d59-9a0e-2c4b7d1e8f30")

// mockEpoch stamps canned documents so repeated calls return identical data
var mockEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// MockHandler serves canned, deterministic data with no external calls. It
// applies the same validation and training rules as the real tiers but
// persists nothing and never spends credits. Deletes, resets and grants
// would be lost, so they are refused with READ_ONLY.
type MockHandler struct {
	backend     generation.Backend
	placeholder avatar.Provider
}

// NewMockHandler creates the terminal tier handler. baseURL is used for
// placeholder avatar URLs.
func NewMockHandler(baseURL string) *MockHandler {
	return &MockHandler{
		backend:     generation.EchoBackend{},
		placeholder: avatar.Placeholder(baseURL),
	}
}

func mockID(parts ...string) string {
	return uuid.NewSHA1(mockNamespace, []byte(strings.Join(parts, "\x00"))).String()
}

// cannedBot is the stand-in returned for any bot id
func cannedBot(ownerID, botID string) *models.Bot {
	bot := personality.NewBot(models.CreateBotRequest{
		OwnerID:   ownerID,
		Name:      "Demo Bot",
		Focus:     "keeping the network lively while things recover",
		Interests: []string{"weather", "puzzles"},
	})
	bot.ID = botID
	bot.CreatedAt = mockEpoch
	bot.UpdatedAt = mockEpoch
	return bot
}

func (m *MockHandler) avatarFor(desc string) models.Avatar {
	seed := avatar.DeriveSeed(avatar.SeedInput{Description: desc})
	return models.Avatar{
		Emoji:       models.DefaultAvatarEmoji,
		URL:         m.placeholder.URL(seed),
		Seed:        seed,
		Description: desc,
		Provider:    m.placeholder.ID(),
	}
}

func (m *MockHandler) CreateBot(_ context.Context, req models.CreateBotRequest) (*models.Bot, error) {
	if err := personality.ValidateCreate(req); err != nil {
		return nil, err
	}
	bot := personality.NewBot(req)
	bot.ID = mockID(req.OwnerID, bot.Name)
	bot.CreatedAt = mockEpoch
	bot.UpdatedAt = mockEpoch
	if bot.Avatar.Description != "" {
		bot.Avatar = m.avatarFor(bot.Avatar.Description)
	}
	return bot, nil
}

func (m *MockHandler) ListBots(_ context.Context, ownerID string) ([]*models.Bot, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperrors.Validation("ownerId", "owner id is required")
	}
	return []*models.Bot{cannedBot(ownerID, mockID(ownerID, "demo"))}, nil
}

func (m *MockHandler) GetBot(_ context.Context, ownerID, botID string) (*models.Bot, error) {
	if err := requireIDs(ownerID, botID); err != nil {
		return nil, err
	}
	return cannedBot(ownerID, botID), nil
}

func (m *MockHandler) TrainBot(_ context.Context, ownerID, botID string, req models.TrainRequest) (*models.Bot, error) {
	if err := requireIDs(ownerID, botID); err != nil {
		return nil, err
	}
	if err := personality.ValidateDirective(req.CoreDirective); err != nil {
		return nil, err
	}
	return personality.ApplyTraining(cannedBot(ownerID, botID), req)
}

func (m *MockHandler) GenerateContent(ctx context.Context, req models.GenerationRequest) (*models.GeneratedContent, error) {
	if err := generation.Validate(&req); err != nil {
		return nil, err
	}
	bot := cannedBot(req.RequestedBy, req.BotID)
	prompt := generation.BuildPrompt(generation.PromptFor(bot, req.ContentType, req.Prompt))

	res, err := m.backend.Generate(ctx, prompt, generation.Options{})
	if err != nil {
		return nil, err
	}

	content := &models.GeneratedContent{
		BotID:       bot.ID,
		ContentType: req.ContentType,
		Text:        res.Text,
		Prompt:      prompt,
		Model:       res.Model,
		Usage:       res.Usage,
		CreatedAt:   mockEpoch,
	}
	if req.ContentType == models.ContentAvatar {
		av := m.avatarFor(bot.Name)
		content.Avatar = &av
	}
	return content, nil
}

func (m *MockHandler) RefreshAvatar(_ context.Context, ownerID, botID string, req models.AvatarRequest) (*models.Bot, error) {
	if err := requireIDs(ownerID, botID); err != nil {
		return nil, err
	}
	bot := cannedBot(ownerID, botID)
	desc := strings.TrimSpace(req.Description)
	if desc == "" {
		desc = bot.Name
	}
	bot.Avatar = m.avatarFor(desc)
	return bot, nil
}

func (m *MockHandler) DeleteBot(_ context.Context, ownerID, botID string) error {
	if err := requireIDs(ownerID, botID); err != nil {
		return err
	}
	return readOnly("delete")
}

func (m *MockHandler) Quota(_ context.Context, ownerID, botID string) (*models.QuotaStatus, error) {
	if err := requireIDs(ownerID, botID); err != nil {
		return nil, err
	}
	return &models.QuotaStatus{BotID: botID}, nil
}

func (m *MockHandler) GrantCredits(_ context.Context, botID string, credits int) (*models.QuotaStatus, error) {
	if strings.TrimSpace(botID) == "" {
		return nil, apperrors.Validation("botId", "bot id is required")
	}
	if credits < 0 {
		return nil, apperrors.Validation("credits", "credits must not be negative")
	}
	return nil, readOnly("credit grant")
}

func (m *MockHandler) ResetBot(_ context.Context, botID string) (*models.Bot, error) {
	if strings.TrimSpace(botID) == "" {
		return nil, apperrors.Validation("botId", "bot id is required")
	}
	return nil, readOnly("reset")
}

func readOnly(op string) error {
	return apperrors.New(apperrors.ErrReadOnly, "the "+op+" cannot be recorded while storage is unavailable")
}

func requireIDs(ownerID, botID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return apperrors.Validation("ownerId", "owner id is required")
	}
	if strings.TrimSpace(botID) == "" {
		return apperrors.Validation("botId", "bot id is required")
	}
	return nil
}
