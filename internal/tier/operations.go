package tier

import (
	"context"

	"ai-bot-network/backend/internal/models"
)

// DeleteResult is the payload of a successful delete
type DeleteResult struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

func (d *Dispatcher) CreateBot(ctx context.Context, req models.CreateBotRequest) Envelope {
	return dispatch(ctx, d, "createBot", func(ctx context.Context, h Handler) (*models.Bot, error) {
		return h.CreateBot(ctx, req)
	})
}

func (d *Dispatcher) ListBots(ctx context.Context, ownerID string) Envelope {
	return dispatch(ctx, d, "listBots", func(ctx context.Context, h Handler) ([]*models.Bot, error) {
		bots, err := h.ListBots(ctx, ownerID)
		if err == nil && bots == nil {
			bots = []*models.Bot{}
		}
		return bots, err
	})
}

func (d *Dispatcher) GetBot(ctx context.Context, ownerID, botID string) Envelope {
	return dispatch(ctx, d, "getBot", func(ctx context.Context, h Handler) (*models.Bot, error) {
		return h.GetBot(ctx, ownerID, botID)
	})
}

func (d *Dispatcher) TrainBot(ctx context.Context, ownerID, botID string, req models.TrainRequest) Envelope {
	return dispatch(ctx, d, "train", func(ctx context.Context, h Handler) (*models.Bot, error) {
		return h.TrainBot(ctx, ownerID, botID, req)
	})
}

func (d *Dispatcher) GenerateContent(ctx context.Context, req models.GenerationRequest) Envelope {
	return dispatch(ctx, d, "generate", func(ctx context.Context, h Handler) (*models.GeneratedContent, error) {
		return h.GenerateContent(ctx, req)
	})
}

func (d *Dispatcher) RefreshAvatar(ctx context.Context, ownerID, botID string, req models.AvatarRequest) Envelope {
	return dispatch(ctx, d, "refreshAvatar", func(ctx context.Context, h Handler) (*models.Bot, error) {
		return h.RefreshAvatar(ctx, ownerID, botID, req)
	})
}

func (d *Dispatcher) DeleteBot(ctx context.Context, ownerID, botID string) Envelope {
	return dispatch(ctx, d, "deleteBot", func(ctx context.Context, h Handler) (*DeleteResult, error) {
		if err := h.DeleteBot(ctx, ownerID, botID); err != nil {
			return nil, err
		}
		return &DeleteResult{ID: botID, Deleted: true}, nil
	})
}

func (d *Dispatcher) Quota(ctx context.Context, ownerID, botID string) Envelope {
	return dispatch(ctx, d, "quota", func(ctx context.Context, h Handler) (*models.QuotaStatus, error) {
		return h.Quota(ctx, ownerID, botID)
	})
}

func (d *Dispatcher) GrantCredits(ctx context.Context, botID string, credits int) Envelope {
	return dispatch(ctx, d, "grantCredits", func(ctx context.Context, h Handler) (*models.QuotaStatus, error) {
		return h.GrantCredits(ctx, botID, credits)
	})
}

func (d *Dispatcher) ResetBot(ctx context.Context, botID string) Envelope {
	return dispatch(ctx, d, "resetBot", func(ctx context.Context, h Handler) (*models.Bot, error) {
		return h.ResetBot(ctx, botID)
	})
}
