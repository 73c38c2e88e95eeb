package generation

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"ai-bot-network/backend/internal/avatar"
	"ai-bot-network/backend/internal/models"
	"ai-bot-network/backend/internal/personality"
	"ai-bot-network/backend/internal/quota"
	"ai-bot-network/backend/internal/store"
	apperrors "ai-bot-network/backend/pkg/errors"
	"ai-bot-network/backend/pkg/logger"
	"ai-bot-network/backend/shared/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AvatarResolver turns a seed description into an image URL. It never fails.
type AvatarResolver interface {
	Resolve(ctx context.Context, in avatar.SeedInput) avatar.Result
}

// Publisher receives generated posts for the live feed. Publish must not block.
type Publisher interface {
	Publish(content models.GeneratedContent)
}

// Config bounds backend calls
type Config struct {
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// Orchestrator runs one generation request end to end
type Orchestrator struct {
	store   store.Store
	ledger  quota.Ledger
	backend Backend
	avatars AvatarResolver
	feed    Publisher
	cfg     Config
	log     *logger.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

// Deps are the orchestrator's collaborators. Avatars, Feed and Metrics are optional.
type Deps struct {
	Store   store.Store
	Ledger  quota.Ledger
	Backend Backend
	Avatars AvatarResolver
	Feed    Publisher
	Log     *logger.Logger
	Metrics *observability.Metrics
}

// NewOrchestrator wires an orchestrator
func NewOrchestrator(deps Deps, cfg Config) *Orchestrator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	log := deps.Log
	if log == nil {
		log = logger.GetGlobal()
	}
	return &Orchestrator{
		store:   deps.Store,
		ledger:  deps.Ledger,
		backend: deps.Backend,
		avatars: deps.Avatars,
		feed:    deps.Feed,
		cfg:     cfg,
		log:     log.With("component", "orchestrator", "backend", deps.Backend.Name()),
		metrics: deps.Metrics,
		tracer:  otel.Tracer("ai-bot-network/generation"),
		now:     time.Now,
	}
}

// Validate normalizes req in place and rejects malformed input
func Validate(req *models.GenerationRequest) error {
	req.BotID = strings.TrimSpace(req.BotID)
	req.RequestedBy = strings.TrimSpace(req.RequestedBy)
	req.ContentType = strings.ToLower(strings.TrimSpace(req.ContentType))
	req.Prompt = strings.TrimSpace(req.Prompt)

	if req.BotID == "" {
		return apperrors.Validation("botId", "bot id is required")
	}
	if req.RequestedBy == "" {
		return apperrors.Validation("requestedBy", "requester id is required")
	}
	if req.ContentType == "" {
		req.ContentType = models.ContentPost
	}
	if !KnownContentType(req.ContentType) {
		return apperrors.Validation("contentType", "unknown content type "+req.ContentType)
	}
	if utf8.RuneCountInString(req.Prompt) > MaxPromptLength {
		return apperrors.Validation("prompt", "prompt is too long")
	}
	return nil
}

// Generate validates req, spends one credit, calls the backend and records
// the result on the bot. The credit is spent before the backend call and is
// not refunded when the call fails or the content is refused. A backend whose
// breaker is open is reported unavailable before any credit is spent.
func (o *Orchestrator) Generate(ctx context.Context, req models.GenerationRequest) (*models.GeneratedContent, error) {
	ctx, span := o.tracer.Start(ctx, "generation.Generate", trace.WithAttributes(
		attribute.String("bot.id", req.BotID),
		attribute.String("content.type", req.ContentType),
		attribute.String("backend", o.backend.Name()),
	))
	defer span.End()

	content, err := o.generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperrors.GetErrorCode(err))
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("usage.input_tokens", content.Usage.InputTokens),
		attribute.Int("usage.output_tokens", content.Usage.OutputTokens),
	)
	return content, nil
}

func (o *Orchestrator) generate(ctx context.Context, req models.GenerationRequest) (*models.GeneratedContent, error) {
	if err := Validate(&req); err != nil {
		return nil, err
	}

	bot, err := o.store.FindOne(ctx, req.RequestedBy, req.BotID)
	if err != nil {
		return nil, err
	}

	if req.Autonomous {
		if err := personality.CheckAutonomy(bot, o.now()); err != nil {
			return nil, err
		}
	}

	// no credit is spent while the backend breaker is known to be open
	if a, ok := o.backend.(interface{ Available() bool }); ok && !a.Available() {
		return nil, apperrors.New(apperrors.ErrBackendUnavailable, o.backend.Name()+" circuit open")
	}

	remaining, err := o.ledger.TryConsume(ctx, bot.ID)
	if err != nil {
		if apperrors.GetErrorCode(err) == apperrors.CodeQuotaExhausted {
			o.metrics.QuotaDenied(ctx)
		}
		return nil, err
	}

	prompt := BuildPrompt(PromptFor(bot, req.ContentType, req.Prompt))

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	start := time.Now()
	res, err := o.backend.Generate(callCtx, prompt, Options{
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
	})
	took := time.Since(start)
	cancel()
	if err != nil {
		err = Classify(err, o.backend.Name())
		o.metrics.Generation(ctx, o.backend.Name(), apperrors.GetErrorCode(err), took)
		o.log.Warn("Generation failed",
			"botId", bot.ID,
			"contentType", req.ContentType,
			"code", apperrors.GetErrorCode(err),
			"error", err.Error(),
			"duration", took.String(),
		)
		return nil, err
	}
	o.metrics.Generation(ctx, o.backend.Name(), "ok", took)

	now := o.now()
	content := &models.GeneratedContent{
		BotID:            bot.ID,
		ContentType:      req.ContentType,
		Text:             res.Text,
		Prompt:           prompt,
		Model:            res.Model,
		Usage:            res.Usage,
		LatencyMs:        took.Milliseconds(),
		CreditsRemaining: remaining,
		CreatedAt:        now,
	}

	patch := store.Patch{
		XP:           personality.GenerationXP,
		Energy:       -personality.GenerationEnergyCost,
		LastActiveAt: &now,
	}
	if req.ContentType == models.ContentPost {
		patch.Posts = 1
		patch.PostDay = personality.DayKey(now)
		patch.LastPostAt = &now
	}
	if req.ContentType == models.ContentAvatar && o.avatars != nil {
		resolved := o.avatars.Resolve(ctx, avatar.SeedInput{Description: bot.Name, RichText: res.Text})
		av := models.Avatar{
			Emoji:       models.DefaultAvatarEmoji,
			URL:         resolved.URL,
			Seed:        resolved.Seed,
			Description: res.Text,
			Provider:    resolved.Provider,
		}
		patch.Avatar = &av
		content.Avatar = &av
	}

	if _, err := o.store.UpdateOne(ctx, store.Filter{OwnerID: bot.OwnerID, BotID: bot.ID}, patch); err != nil {
		return nil, err
	}

	if req.ContentType == models.ContentPost && o.feed != nil {
		o.feed.Publish(*content)
	}

	o.log.Info("Generated content",
		"botId", bot.ID,
		"contentType", req.ContentType,
		"inputTokens", res.Usage.InputTokens,
		"outputTokens", res.Usage.OutputTokens,
		"creditsRemaining", remaining,
		"duration", took.String(),
	)
	return content, nil
}
