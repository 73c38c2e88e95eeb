package service

import (
	"context"
	"fmt"
	"testing"

	"ai-bot-network/backend/internal/avatar"
	"ai-bot-network/backend/internal/models"
	"ai-bot-network/backend/internal/personality"
	"ai-bot-network/backend/internal/quota"
	"ai-bot-network/backend/internal/store"
	apperrors "ai-bot-network/backend/pkg/errors"
	"ai-bot-network/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	calls int
}

func (g *stubGenerator) Generate(_ context.Context, req models.GenerationRequest) (*models.GeneratedContent, error) {
	g.calls++
	return &models.GeneratedContent{BotID: req.BotID, Text: "hi"}, nil
}

type stubAvatars struct{}

func (stubAvatars) Resolve(_ context.Context, in avatar.SeedInput) avatar.Result {
	seed := avatar.DeriveSeed(in)
	return avatar.Result{URL: "https://api.dicebear.com/7.x/bottts/svg?seed=" + seed, Seed: seed, Provider: "dicebear"}
}

func newBotService(t *testing.T, cfg BotConfig) (*BotService, *store.MemoryStore, *quota.MemoryLedger) {
	t.Helper()
	st := store.NewMemoryStore()
	ledger := quota.NewMemoryLedger(0)
	svc := NewBotService(st, ledger, &stubGenerator{}, stubAvatars{}, cfg, logger.Nop())
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("bot-%d", n)
	}
	return svc, st, ledger
}

func TestCreateBotAppliesDefaultsAndOpensQuota(t *testing.T) {
	svc, _, ledger := newBotService(t, BotConfig{DefaultCredits: 7})
	ctx := context.Background()

	bot, err := svc.CreateBot(ctx, models.CreateBotRequest{OwnerID: "owner-1", Name: " Ada "})
	require.NoError(t, err)
	assert.Equal(t, "bot-1", bot.ID)
	assert.Equal(t, "Ada", bot.Name)
	assert.Equal(t, models.DefaultTraits(), bot.Traits)
	assert.Equal(t, 1, bot.Stats.Level)
	assert.Equal(t, models.StageHatchling, bot.Evolution.Stage)
	assert.Equal(t, models.DefaultAvatarEmoji, bot.Avatar.Emoji)
	assert.Empty(t, bot.Avatar.URL)
	assert.False(t, bot.CreatedAt.IsZero())

	n, err := ledger.Remaining(ctx, bot.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestCreateBotResolvesAvatarFromDescription(t *testing.T) {
	svc, _, _ := newBotService(t, BotConfig{})

	bot, err := svc.CreateBot(context.Background(), models.CreateBotRequest{
		OwnerID:           "owner-1",
		Name:              "Ada",
		AvatarDescription: "Brass Robot",
	})
	require.NoError(t, err)
	assert.Equal(t, "dicebear", bot.Avatar.Provider)
	assert.Equal(t, "brassrobot", bot.Avatar.Seed)
	assert.Equal(t, "Brass Robot", bot.Avatar.Description)
}

func TestCreateBotValidation(t *testing.T) {
	svc, st, _ := newBotService(t, BotConfig{})

	_, err := svc.CreateBot(context.Background(), models.CreateBotRequest{OwnerID: "owner-1"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.False(t, st.Has("bot-1"))
}

func TestCreateBotEnforcesOwnerLimit(t *testing.T) {
	svc, _, _ := newBotService(t, BotConfig{MaxBotsPerUser: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := svc.CreateBot(ctx, models.CreateBotRequest{OwnerID: "owner-1", Name: "Ada"})
		require.NoError(t, err)
	}
	_, err := svc.CreateBot(ctx, models.CreateBotRequest{OwnerID: "owner-1", Name: "Ada"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.CreateBot(ctx, models.CreateBotRequest{OwnerID: "owner-2", Name: "Grace"})
	assert.NoError(t, err)
}

func TestTrainBot(t *testing.T) {
	svc, _, _ := newBotService(t, BotConfig{})
	ctx := context.Background()
	bot, err := svc.CreateBot(ctx, models.CreateBotRequest{OwnerID: "owner-1", Name: "Ada"})
	require.NoError(t, err)

	trained, err := svc.TrainBot(ctx, "owner-1", bot.ID, models.TrainRequest{
		Personality:   map[string]int{"wittyDry": 150, "nonsense": 3},
		CoreDirective: "  be kind  ",
	})
	require.NoError(t, err)
	assert.Equal(t, 100, trained.Traits.WittyDry)
	assert.Equal(t, "be kind", trained.CoreDirective)
	assert.Equal(t, personality.TraitUpdateXP+personality.DirectiveXP, trained.Stats.XP)
	assert.Equal(t, 100, trained.Stats.Energy)
	assert.Equal(t, 15, trained.Stats.Drift)

	_, err = svc.TrainBot(ctx, "owner-1", bot.ID, models.TrainRequest{Personality: map[string]int{"nonsense": 1}})
	assert.ErrorIs(t, err, apperrors.ErrNoValidUpdate)

	_, err = svc.TrainBot(ctx, "owner-2", bot.ID, models.TrainRequest{CoreDirective: "mine now"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDeleteHidesBot(t *testing.T) {
	svc, _, _ := newBotService(t, BotConfig{})
	ctx := context.Background()
	bot, err := svc.CreateBot(ctx, models.CreateBotRequest{OwnerID: "owner-1", Name: "Ada"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteBot(ctx, "owner-1", bot.ID))

	_, err = svc.GetBot(ctx, "owner-1", bot.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	bots, err := svc.ListBots(ctx, "owner-1")
	require.NoError(t, err)
	assert.Empty(t, bots)

	assert.ErrorIs(t, svc.DeleteBot(ctx, "owner-1", bot.ID), apperrors.ErrNotFound)
}

func TestRefreshAvatarFallsBackToName(t *testing.T) {
	svc, _, _ := newBotService(t, BotConfig{})
	ctx := context.Background()
	bot, err := svc.CreateBot(ctx, models.CreateBotRequest{OwnerID: "owner-1", Name: "Ada Bot"})
	require.NoError(t, err)

	updated, err := svc.RefreshAvatar(ctx, "owner-1", bot.ID, models.AvatarRequest{})
	require.NoError(t, err)
	assert.Equal(t, "adabot", updated.Avatar.Seed)

	updated, err = svc.RefreshAvatar(ctx, "owner-1", bot.ID, models.AvatarRequest{Description: "tin can"})
	require.NoError(t, err)
	assert.Equal(t, "tincan", updated.Avatar.Seed)
	assert.Equal(t, "tin can", updated.Avatar.Description)
}

func TestQuotaGrantAndReset(t *testing.T) {
	svc, _, _ := newBotService(t, BotConfig{DefaultCredits: 1})
	ctx := context.Background()
	bot, err := svc.CreateBot(ctx, models.CreateBotRequest{OwnerID: "owner-1", Name: "Ada"})
	require.NoError(t, err)

	status, err := svc.Quota(ctx, "owner-1", bot.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Remaining)

	status, err = svc.GrantCredits(ctx, bot.ID, 25)
	require.NoError(t, err)
	assert.Equal(t, 25, status.Remaining)

	_, err = svc.GrantCredits(ctx, "ghost", 5)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = svc.GrantCredits(ctx, bot.ID, -1)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.TrainBot(ctx, "owner-1", bot.ID, models.TrainRequest{CoreDirective: "grow"})
	require.NoError(t, err)
	reset, err := svc.ResetBot(ctx, bot.ID)
	require.NoError(t, err)
	assert.Zero(t, reset.Stats.XP)
	assert.Equal(t, models.StageHatchling, reset.Evolution.Stage)
}
