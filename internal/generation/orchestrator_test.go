package generation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-bot-network/backend/internal/avatar"
	"ai-bot-network/backend/internal/models"
	"ai-bot-network/backend/internal/personality"
	"ai-bot-network/backend/internal/quota"
	"ai-bot-network/backend/internal/store"
	apperrors "ai-bot-network/backend/pkg/errors"
	"ai-bot-network/backend/pkg/logger"
	"ai-bot-network/backend/pkg/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	fn      func(ctx context.Context, prompt string) (*Result, error)
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Generate(ctx context.Context, prompt string, _ Options) (*Result, error) {
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx, prompt)
	}
	return &Result{Text: "hello network", Model: "fake-1", Usage: models.Usage{InputTokens: 40, OutputTokens: 3}}, nil
}

type fakeFeed struct {
	mu    sync.Mutex
	items []models.GeneratedContent
}

func (f *fakeFeed) Publish(c models.GeneratedContent) {
	f.mu.Lock()
	f.items = append(f.items, c)
	f.mu.Unlock()
}

type fixedAvatars struct{}

func (fixedAvatars) Resolve(_ context.Context, in avatar.SeedInput) avatar.Result {
	seed := avatar.DeriveSeed(in)
	return avatar.Result{URL: "https://robohash.org/" + seed + ".png", Seed: seed, Provider: "robohash"}
}

type fixture struct {
	store   *store.MemoryStore
	ledger  *quota.MemoryLedger
	backend *fakeBackend
	feed    *fakeFeed
	orch    *Orchestrator
	bot     *models.Bot
}

func newFixture(t *testing.T, credits int) *fixture {
	t.Helper()
	f := &fixture{
		store:   store.NewMemoryStore(),
		ledger:  quota.NewMemoryLedger(0),
		backend: &fakeBackend{},
		feed:    &fakeFeed{},
	}
	f.orch = NewOrchestrator(Deps{
		Store:   f.store,
		Ledger:  f.ledger,
		Backend: f.backend,
		Avatars: fixedAvatars{},
		Feed:    f.feed,
		Log:     logger.Nop(),
	}, Config{Timeout: time.Second, MaxTokens: 100, Temperature: 0.5})

	f.bot = personality.NewBot(models.CreateBotRequest{
		OwnerID:   "owner-1",
		Name:      "Ada",
		Focus:     "testing",
		Interests: []string{"compilers", "chess"},
	})
	f.bot.ID = "bot-1"
	require.NoError(t, f.store.InsertOne(context.Background(), f.bot))
	require.NoError(t, f.ledger.Open(context.Background(), f.bot.ID, credits))
	return f
}

func (f *fixture) request(contentType string) models.GenerationRequest {
	return models.GenerationRequest{BotID: f.bot.ID, RequestedBy: "owner-1", ContentType: contentType}
}

func (f *fixture) credits(t *testing.T) int {
	n, err := f.ledger.Remaining(context.Background(), f.bot.ID)
	require.NoError(t, err)
	return n
}

func TestGeneratePostUpdatesStats(t *testing.T) {
	f := newFixture(t, 3)

	out, err := f.orch.Generate(context.Background(), f.request(models.ContentPost))
	require.NoError(t, err)
	assert.Equal(t, "hello network", out.Text)
	assert.Equal(t, "fake-1", out.Model)
	assert.Equal(t, 2, out.CreditsRemaining)
	assert.Equal(t, 40, out.Usage.InputTokens)
	assert.Contains(t, out.Prompt, "Name: Ada")

	bot, err := f.store.FindOne(context.Background(), "owner-1", f.bot.ID)
	require.NoError(t, err)
	assert.Equal(t, personality.GenerationXP, bot.Stats.XP)
	assert.Equal(t, 95, bot.Stats.Energy)
	assert.Equal(t, 1, bot.Stats.Posts)
	assert.Equal(t, 1, bot.Stats.PostsToday)
	assert.NotNil(t, bot.Stats.LastActiveAt)
	assert.NotNil(t, bot.Stats.LastPostAt)

	require.Len(t, f.feed.items, 1)
	assert.Equal(t, f.bot.ID, f.feed.items[0].BotID)
}

func TestGenerateBioDoesNotCountAsPost(t *testing.T) {
	f := newFixture(t, 3)

	_, err := f.orch.Generate(context.Background(), f.request(models.ContentBio))
	require.NoError(t, err)

	bot, err := f.store.FindOne(context.Background(), "owner-1", f.bot.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, bot.Stats.Posts)
	assert.Nil(t, bot.Stats.LastPostAt)
	assert.Empty(t, f.feed.items)
}

func TestGenerateAvatarPersistsResolvedAvatar(t *testing.T) {
	f := newFixture(t, 3)
	f.backend.fn = func(context.Context, string) (*Result, error) {
		return &Result{Text: "A brass robot with green eyes", Model: "fake-1"}, nil
	}

	out, err := f.orch.Generate(context.Background(), f.request(models.ContentAvatar))
	require.NoError(t, err)
	require.NotNil(t, out.Avatar)
	assert.Equal(t, "robohash", out.Avatar.Provider)

	bot, err := f.store.FindOne(context.Background(), "owner-1", f.bot.ID)
	require.NoError(t, err)
	assert.Equal(t, out.Avatar.URL, bot.Avatar.URL)
	assert.Equal(t, "A brass robot with green eyes", bot.Avatar.Description)
}

func TestGenerateQuotaExhausted(t *testing.T) {
	f := newFixture(t, 1)

	_, err := f.orch.Generate(context.Background(), f.request(models.ContentPost))
	require.NoError(t, err)

	_, err = f.orch.Generate(context.Background(), f.request(models.ContentPost))
	assert.ErrorIs(t, err, apperrors.ErrQuotaExhausted)
	assert.Equal(t, 1, f.backend.calls, "backend is not called without credits")
}

func TestGenerateSpendsCreditOnBackendFailure(t *testing.T) {
	cases := map[string]struct {
		err  error
		kind *apperrors.AppError
	}{
		"generic": {errors.New("unexpected payload"), apperrors.ErrBackendError},
		"refused": {Refused("fake", "SAFETY"), apperrors.ErrBackendRejectedContent},
		"quota":   {ClassifyStatus(429, errors.New("slow down"), "fake"), apperrors.ErrBackendQuotaExceeded},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, 2)
			f.backend.fn = func(context.Context, string) (*Result, error) { return nil, tc.err }

			_, err := f.orch.Generate(context.Background(), f.request(models.ContentPost))
			assert.ErrorIs(t, err, tc.kind)
			assert.Equal(t, 1, f.credits(t))

			bot, err := f.store.FindOne(context.Background(), "owner-1", f.bot.ID)
			require.NoError(t, err)
			assert.Equal(t, 0, bot.Stats.XP, "failed generations earn nothing")
		})
	}
}

func TestGenerateSpendsNoCreditWhileBackendBreakerIsOpen(t *testing.T) {
	f := newFixture(t, 5)
	f.backend.fn = func(context.Context, string) (*Result, error) {
		return nil, ClassifyStatus(503, errors.New("overloaded"), "fake")
	}
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "backend",
		FailureThreshold: 1,
		RetryTimeout:     time.Hour,
		IsFailure:        apperrors.IsDependency,
	}, logger.Nop())
	orch := NewOrchestrator(Deps{
		Store:   f.store,
		Ledger:  f.ledger,
		Backend: NewGuardedBackend(f.backend, breaker),
		Log:     logger.Nop(),
	}, Config{Timeout: time.Second})

	_, err := orch.Generate(context.Background(), f.request(models.ContentPost))
	assert.ErrorIs(t, err, apperrors.ErrBackendUnavailable)
	assert.Equal(t, 4, f.credits(t))
	assert.Equal(t, resilience.StateOpen, breaker.GetState())

	_, err = orch.Generate(context.Background(), f.request(models.ContentPost))
	assert.ErrorIs(t, err, apperrors.ErrBackendUnavailable)
	assert.Equal(t, 4, f.credits(t), "no credit spent while the breaker is open")
	assert.Equal(t, 1, f.backend.calls)
}

func TestGuardedBackendIgnoresRefusals(t *testing.T) {
	backend := &fakeBackend{fn: func(context.Context, string) (*Result, error) {
		return nil, Refused("fake", "SAFETY")
	}}
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "backend",
		FailureThreshold: 1,
		IsFailure:        apperrors.IsDependency,
	}, logger.Nop())
	g := NewGuardedBackend(backend, breaker)

	for i := 0; i < 3; i++ {
		_, err := g.Generate(context.Background(), "hi", Options{})
		assert.ErrorIs(t, err, apperrors.ErrBackendRejectedContent)
	}
	assert.True(t, g.Available())
	assert.Equal(t, "fake", g.Name())
	assert.NoError(t, g.Ping(context.Background()), "backends without a ping are assumed reachable")
}

func TestGenerateTimeoutIsBackendUnavailable(t *testing.T) {
	f := newFixture(t, 2)
	f.orch.cfg.Timeout = 30 * time.Millisecond
	f.backend.fn = func(ctx context.Context, _ string) (*Result, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	start := time.Now()
	_, err := f.orch.Generate(context.Background(), f.request(models.ContentPost))
	assert.ErrorIs(t, err, apperrors.ErrBackendUnavailable)
	assert.True(t, apperrors.IsDependency(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestGenerateNotFound(t *testing.T) {
	f := newFixture(t, 2)

	req := f.request(models.ContentPost)
	req.RequestedBy = "intruder"
	_, err := f.orch.Generate(context.Background(), req)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.Equal(t, 2, f.credits(t))
	assert.Zero(t, f.backend.calls)
}

func TestGenerateValidation(t *testing.T) {
	f := newFixture(t, 2)
	long := make([]byte, MaxPromptLength+1)
	for i := range long {
		long[i] = 'a'
	}

	cases := map[string]models.GenerationRequest{
		"missing bot":       {RequestedBy: "owner-1"},
		"missing requester": {BotID: "bot-1"},
		"unknown type":      {BotID: "bot-1", RequestedBy: "owner-1", ContentType: "poem"},
		"prompt too long":   {BotID: "bot-1", RequestedBy: "owner-1", Prompt: string(long)},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.orch.Generate(context.Background(), req)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
	assert.Equal(t, 2, f.credits(t))
}

func TestGenerateAutonomousRespectsConfig(t *testing.T) {
	f := newFixture(t, 5)
	req := f.request(models.ContentPost)
	req.Autonomous = true

	_, err := f.orch.Generate(context.Background(), req)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, 5, f.credits(t))
}

func TestGenerateXPNonDecreasing(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	fail := false
	f.backend.fn = func(context.Context, string) (*Result, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return &Result{Text: "ok"}, nil
	}

	prev := 0
	for i := 0; i < 6; i++ {
		fail = i%3 == 2
		_, _ = f.orch.Generate(ctx, f.request(models.ContentPost))
		bot, err := f.store.FindOne(ctx, "owner-1", f.bot.ID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, bot.Stats.XP, prev)
		prev = bot.Stats.XP
	}
}
