package service

import (
	"context"
	"strings"
	"time"

	"ai-bot-network/backend/internal/avatar"
	"ai-bot-network/backend/internal/generation"
	"ai-bot-network/backend/internal/models"
	"ai-bot-network/backend/internal/personality"
	"ai-bot-network/backend/internal/quota"
	"ai-bot-network/backend/internal/store"
	apperrors "ai-bot-network/backend/pkg/errors"
	"ai-bot-network/backend/pkg/logger"

	"github.com/google/uuid"
)

// Generator runs one generation request
type Generator interface {
	Generate(ctx context.Context, req models.GenerationRequest) (*models.GeneratedContent, error)
}

// BotConfig holds the limits the bot service enforces
type BotConfig struct {
	DefaultCredits int
	MaxBotsPerUser int
}

// BotService implements every bot operation over one store, ledger and
// generator. The full and reduced tiers are both BotServices wired to
// different collaborators.
type BotService struct {
	store     store.Store
	ledger    quota.Ledger
	generator Generator
	avatars   generation.AvatarResolver
	cfg       BotConfig
	log       *logger.Logger
	now       func() time.Time
	newID     func() string
}

// NewBotService creates a bot service. avatars may be nil, in which case
// bots keep their emoji avatar.
func NewBotService(st store.Store, ledger quota.Ledger, generator Generator, avatars generation.AvatarResolver, cfg BotConfig, log *logger.Logger) *BotService {
	if log == nil {
		log = logger.GetGlobal()
	}
	return &BotService{
		store:     st,
		ledger:    ledger,
		generator: generator,
		avatars:   avatars,
		cfg:       cfg,
		log:       log.With("component", "bot_service"),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// CreateBot validates req, opens the bot's credit entry and stores the bot
func (s *BotService) CreateBot(ctx context.Context, req models.CreateBotRequest) (*models.Bot, error) {
	if err := personality.ValidateCreate(req); err != nil {
		return nil, err
	}

	if s.cfg.MaxBotsPerUser > 0 {
		n, err := s.store.CountDocuments(ctx, store.Filter{OwnerID: req.OwnerID})
		if err != nil {
			return nil, err
		}
		if n >= int64(s.cfg.MaxBotsPerUser) {
			return nil, apperrors.Validation("ownerId", "bot limit reached for this owner")
		}
	}

	bot := personality.NewBot(req)
	bot.ID = s.newID()
	now := s.now()
	bot.CreatedAt = now
	bot.UpdatedAt = now

	if bot.Avatar.Description != "" && s.avatars != nil {
		s.applyAvatar(ctx, bot, bot.Avatar.Description, false)
	}

	if err := s.ledger.Open(ctx, bot.ID, s.cfg.DefaultCredits); err != nil {
		return nil, err
	}
	if err := s.store.InsertOne(ctx, bot); err != nil {
		return nil, err
	}

	s.log.Info("Bot created", "botId", bot.ID, "ownerId", bot.OwnerID)
	return bot, nil
}

// ListBots returns the owner's visible bots
func (s *BotService) ListBots(ctx context.Context, ownerID string) ([]*models.Bot, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, apperrors.Validation("ownerId", "owner id is required")
	}
	return s.store.Find(ctx, store.Filter{OwnerID: ownerID})
}

// GetBot returns one visible bot of the owner
func (s *BotService) GetBot(ctx context.Context, ownerID, botID string) (*models.Bot, error) {
	if err := requireIDs(ownerID, botID); err != nil {
		return nil, err
	}
	return s.store.FindOne(ctx, ownerID, botID)
}

// TrainBot applies trait and directive updates as one field-level patch
func (s *BotService) TrainBot(ctx context.Context, ownerID, botID string, req models.TrainRequest) (*models.Bot, error) {
	if err := requireIDs(ownerID, botID); err != nil {
		return nil, err
	}
	if err := personality.ValidateDirective(req.CoreDirective); err != nil {
		return nil, err
	}
	plan, err := personality.PlanTraining(req)
	if err != nil {
		return nil, err
	}

	bot, err := s.store.UpdateOne(ctx, store.Filter{OwnerID: ownerID, BotID: botID}, store.FromTraining(plan))
	if err != nil {
		return nil, err
	}

	s.log.Info("Bot trained",
		"botId", bot.ID,
		"traits", len(plan.Traits),
		"directive", plan.HasDirective(),
		"xp", bot.Stats.XP,
		"stage", string(bot.Evolution.Stage),
	)
	return bot, nil
}

// GenerateContent hands the request to the generator
func (s *BotService) GenerateContent(ctx context.Context, req models.GenerationRequest) (*models.GeneratedContent, error) {
	return s.generator.Generate(ctx, req)
}

// RefreshAvatar resolves a new avatar from the request description, the
// stored description or the bot's name, in that order.
func (s *BotService) RefreshAvatar(ctx context.Context, ownerID, botID string, req models.AvatarRequest) (*models.Bot, error) {
	if err := requireIDs(ownerID, botID); err != nil {
		return nil, err
	}
	desc := strings.TrimSpace(req.Description)
	if len([]rune(desc)) > personality.MaxAvatarDescription {
		return nil, apperrors.Validation("description", "avatar description is too long")
	}

	bot, err := s.store.FindOne(ctx, ownerID, botID)
	if err != nil {
		return nil, err
	}
	if desc == "" {
		desc = bot.Avatar.Description
	}
	if desc == "" {
		desc = bot.Name
	}
	if s.avatars == nil {
		return nil, apperrors.New(apperrors.ErrDependencyUnavailable, "avatar resolution is not configured")
	}

	s.applyAvatar(ctx, bot, desc, true)
	av := bot.Avatar
	return s.store.UpdateOne(ctx, store.Filter{OwnerID: ownerID, BotID: botID}, store.Patch{Avatar: &av})
}

// DeleteBot hides the bot. The document stays in the store.
func (s *BotService) DeleteBot(ctx context.Context, ownerID, botID string) error {
	if err := requireIDs(ownerID, botID); err != nil {
		return err
	}
	deleted := true
	_, err := s.store.UpdateOne(ctx, store.Filter{OwnerID: ownerID, BotID: botID}, store.Patch{Deleted: &deleted})
	if err == nil {
		s.log.Info("Bot deleted", "botId", botID, "ownerId", ownerID)
	}
	return err
}

// Quota reports the owner's bot's remaining credits
func (s *BotService) Quota(ctx context.Context, ownerID, botID string) (*models.QuotaStatus, error) {
	if err := requireIDs(ownerID, botID); err != nil {
		return nil, err
	}
	if _, err := s.store.FindOne(ctx, ownerID, botID); err != nil {
		return nil, err
	}
	n, err := s.ledger.Remaining(ctx, botID)
	if err != nil {
		return nil, err
	}
	return &models.QuotaStatus{BotID: botID, Remaining: n}, nil
}

// GrantCredits sets any bot's balance. Administrative.
func (s *BotService) GrantCredits(ctx context.Context, botID string, credits int) (*models.QuotaStatus, error) {
	if strings.TrimSpace(botID) == "" {
		return nil, apperrors.Validation("botId", "bot id is required")
	}
	if err := s.exists(ctx, botID); err != nil {
		return nil, err
	}
	if err := s.ledger.Grant(ctx, botID, credits); err != nil {
		return nil, err
	}
	s.log.Info("Credits granted", "botId", botID, "credits", credits)
	return &models.QuotaStatus{BotID: botID, Remaining: credits}, nil
}

// ResetBot zeroes a bot's XP, the only operation that lowers it. Administrative.
func (s *BotService) ResetBot(ctx context.Context, botID string) (*models.Bot, error) {
	if strings.TrimSpace(botID) == "" {
		return nil, apperrors.Validation("botId", "bot id is required")
	}
	bot, err := s.store.UpdateOne(ctx, store.Filter{BotID: botID, IncludeHidden: true}, store.Patch{ResetXP: true})
	if err != nil {
		return nil, err
	}
	s.log.Info("Bot XP reset", "botId", botID)
	return bot, nil
}

func (s *BotService) exists(ctx context.Context, botID string) error {
	n, err := s.store.CountDocuments(ctx, store.Filter{BotID: botID, IncludeHidden: true})
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.New(apperrors.ErrNotFound, "bot not found")
	}
	return nil
}

// refresher is implemented by resolvers that cache results
type refresher interface {
	Refresh(ctx context.Context, in avatar.SeedInput) avatar.Result
}

// applyAvatar resolves desc into bot.Avatar. fresh skips cached results.
func (s *BotService) applyAvatar(ctx context.Context, bot *models.Bot, desc string, fresh bool) {
	in := avatar.SeedInput{Description: desc}
	var res avatar.Result
	if r, ok := s.avatars.(refresher); ok && fresh {
		res = r.Refresh(ctx, in)
	} else {
		res = s.avatars.Resolve(ctx, in)
	}
	bot.Avatar = models.Avatar{
		Emoji:       models.DefaultAvatarEmoji,
		URL:         res.URL,
		Seed:        res.Seed,
		Description: desc,
		Provider:    res.Provider,
	}
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
