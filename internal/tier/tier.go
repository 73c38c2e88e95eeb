package tier

import (
	"context"
	"errors"
	"fmt"

	"ai-bot-network/backend/internal/models"
	apperrors "ai-bot-network/backend/pkg/errors"
	"ai-bot-network/backend/pkg/logger"
	"ai-bot-network/backend/shared/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Level names a degradation tier
type Level string

const (
	LevelFull    Level = "full"
	LevelReduced Level = "reduced"
	LevelMock    Level = "mock"
)

// Handler is the operation set every tier serves
type Handler interface {
	CreateBot(ctx context.Context, req models.CreateBotRequest) (*models.Bot, error)
	ListBots(ctx context.Context, ownerID string) ([]*models.Bot, error)
	GetBot(ctx context.Context, ownerID, botID string) (*models.Bot, error)
	TrainBot(ctx context.Context, ownerID, botID string, req models.TrainRequest) (*models.Bot, error)
	GenerateContent(ctx context.Context, req models.GenerationRequest) (*models.GeneratedContent, error)
	RefreshAvatar(ctx context.Context, ownerID, botID string, req models.AvatarRequest) (*models.Bot, error)
	DeleteBot(ctx context.Context, ownerID, botID string) error
	Quota(ctx context.Context, ownerID, botID string) (*models.QuotaStatus, error)
	GrantCredits(ctx context.Context, botID string, credits int) (*models.QuotaStatus, error)
	ResetBot(ctx context.Context, botID string) (*models.Bot, error)
}

// Tier is one rung of the degradation ladder. Terminal tiers use no external
// resources; the ladder must end with one. Circuit breakers belong to the
// dependencies a handler calls, never to the tier, so an outage of one
// dependency only diverts the operations that use it.
type Tier struct {
	Level    Level
	Handler  Handler
	Terminal bool
}

// Dispatcher walks the tiers in order for every request
type Dispatcher struct {
	tiers   []Tier
	log     *logger.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
}

// NewDispatcher validates the ladder
func NewDispatcher(tiers []Tier, log *logger.Logger, metrics *observability.Metrics) (*Dispatcher, error) {
	if len(tiers) == 0 {
		return nil, errors.New("tier: at least one tier is required")
	}
	for i, t := range tiers {
		if t.Handler == nil {
			return nil, fmt.Errorf("tier: %s has no handler", t.Level)
		}
		if t.Terminal && i != len(tiers)-1 {
			return nil, fmt.Errorf("tier: terminal tier %s must be last", t.Level)
		}
	}
	if !tiers[len(tiers)-1].Terminal {
		return nil, fmt.Errorf("tier: last tier %s must be terminal", tiers[len(tiers)-1].Level)
	}
	if log == nil {
		log = logger.GetGlobal()
	}
	return &Dispatcher{
		tiers:   tiers,
		log:     log.With("component", "dispatcher"),
		metrics: metrics,
		tracer:  otel.Tracer("ai-bot-network/tier"),
	}, nil
}

// Levels lists the configured tiers in order
func (d *Dispatcher) Levels() []Level {
	out := make([]Level, len(d.tiers))
	for i, t := range d.tiers {
		out[i] = t.Level
	}
	return out
}

// FallsThrough reports whether err lets the next tier try. Only failures of
// a collaborator qualify; errors about the request itself surface at once.
func FallsThrough(err error) bool {
	return apperrors.IsDependency(err)
}

// dispatch runs fn against each tier until one answers with anything other
// than a dependency failure
func dispatch[T any](ctx context.Context, d *Dispatcher, op string, fn func(context.Context, Handler) (T, error)) Envelope {
	ctx, span := d.tracer.Start(ctx, "tier."+op)
	defer span.End()

	var lastErr error
	var lastLevel Level

	for i, t := range d.tiers {
		if i > 0 && ctx.Err() != nil {
			break
		}

		out, err := fn(ctx, t.Handler)
		if err == nil {
			d.metrics.TierServed(ctx, string(t.Level), op)
			span.SetAttributes(attribute.String("tier", string(t.Level)))
			if i > 0 {
				d.log.Info("Request served by degraded tier", "op", op, "tier", string(t.Level))
			}
			return success(out, t.Level)
		}

		lastErr, lastLevel = err, t.Level
		if !FallsThrough(err) {
			break
		}

		d.metrics.Fallthrough(ctx, string(t.Level), op)
		d.log.Warn("Tier unavailable",
			"op", op,
			"tier", string(t.Level),
			"code", apperrors.GetErrorCode(err),
			"error", err.Error(),
		)
	}

	span.SetAttributes(attribute.String("tier", string(lastLevel)))
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, apperrors.GetErrorCode(lastErr))
	return failure(lastErr, lastLevel)
}
