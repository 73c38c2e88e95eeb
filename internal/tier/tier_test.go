package tier

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"ai-bot-network/backend/internal/generation"
	"ai-bot-network/backend/internal/models"
	"ai-bot-network/backend/internal/personality"
	"ai-bot-network/backend/internal/quota"
	"ai-bot-network/backend/internal/service"
	"ai-bot-network/backend/internal/store"
	apperrors "ai-bot-network/backend/pkg/errors"
	"ai-bot-network/backend/pkg/logger"
	"ai-bot-network/backend/pkg/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type switchBackend struct {
	down  atomic.Bool
	calls atomic.Int32
}

func (b *switchBackend) Name() string { return "switch" }

func (b *switchBackend) Generate(_ context.Context, _ string, _ generation.Options) (*generation.Result, error) {
	b.calls.Add(1)
	if b.down.Load() {
		return nil, generation.ClassifyStatus(503, errors.New("upstream down"), "switch")
	}
	return &generation.Result{Text: "Hello from Ada", Model: "switch-1", Usage: models.Usage{InputTokens: 12, OutputTokens: 3}}, nil
}

type ladder struct {
	dispatcher     *Dispatcher
	backend        *switchBackend
	db             *gorm.DB
	mirror         *store.MemoryStore
	dbBreaker      *resilience.CircuitBreaker
	backendBreaker *resilience.CircuitBreaker
}

func newBreaker(name string) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 2,
		RetryTimeout:     time.Hour,
		IsFailure:        apperrors.IsDependency,
	}, logger.Nop())
}

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, store.Migrate(db))
	return db
}

func closeDB(t *testing.T, db *gorm.DB) {
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

func newLadder(t *testing.T, credits int) *ladder {
	t.Helper()
	log := logger.Nop()
	db := openDB(t)
	backend := &switchBackend{}
	mirror := store.NewMemoryStore()
	dbBreaker := newBreaker("database")
	backendBreaker := newBreaker("backend")
	guardedBackend := generation.NewGuardedBackend(backend, backendBreaker)

	fullStore := store.NewMirrored(store.NewGuarded(store.NewGormStore(db), dbBreaker, nil), mirror)
	fullLedger := quota.NewGuarded(quota.NewGormLedger(db), dbBreaker, nil)
	full := service.NewBotService(fullStore, fullLedger,
		generation.NewOrchestrator(generation.Deps{Store: fullStore, Ledger: fullLedger, Backend: guardedBackend, Log: log}, generation.Config{Timeout: time.Second}),
		nil, service.BotConfig{DefaultCredits: credits}, log)

	reducedStore := store.NewTransient(mirror)
	reducedLedger := quota.NewMemoryLedger(3)
	reduced := service.NewBotService(reducedStore, reducedLedger,
		generation.NewOrchestrator(generation.Deps{Store: reducedStore, Ledger: reducedLedger, Backend: guardedBackend, Log: log}, generation.Config{Timeout: time.Second}),
		nil, service.BotConfig{DefaultCredits: 3}, log)

	d, err := NewDispatcher([]Tier{
		{Level: LevelFull, Handler: full},
		{Level: LevelReduced, Handler: reduced},
		{Level: LevelMock, Handler: NewMockHandler("http://localhost:8081"), Terminal: true},
	}, log, nil)
	require.NoError(t, err)

	return &ladder{
		dispatcher:     d,
		backend:        backend,
		db:             db,
		mirror:         mirror,
		dbBreaker:      dbBreaker,
		backendBreaker: backendBreaker,
	}
}

func botOf(t *testing.T, env Envelope) *models.Bot {
	t.Helper()
	require.True(t, env.Success, "envelope failed: %+v", env.Error)
	bot, ok := env.Data.(*models.Bot)
	require.True(t, ok, "data is %T", env.Data)
	return bot
}

func TestNewDispatcherRequiresTerminalLast(t *testing.T) {
	mock := NewMockHandler("http://x")

	_, err := NewDispatcher(nil, logger.Nop(), nil)
	assert.Error(t, err)

	_, err = NewDispatcher([]Tier{{Level: LevelFull, Handler: mock}}, logger.Nop(), nil)
	assert.Error(t, err)

	_, err = NewDispatcher([]Tier{
		{Level: LevelMock, Handler: mock, Terminal: true},
		{Level: LevelFull, Handler: mock},
	}, logger.Nop(), nil)
	assert.Error(t, err)

	d, err := NewDispatcher([]Tier{{Level: LevelMock, Handler: mock, Terminal: true}}, logger.Nop(), nil)
	require.NoError(t, err)
	assert.Equal(t, []Level{LevelMock}, d.Levels())
}

func TestAdaEndToEnd(t *testing.T) {
	l := newLadder(t, 1)
	ctx := context.Background()

	created := l.dispatcher.CreateBot(ctx, models.CreateBotRequest{OwnerID: "owner-1", Name: "Ada"})
	assert.Equal(t, LevelFull, created.Tier)
	ada := botOf(t, created)
	assert.Equal(t, models.DefaultTraits(), ada.Traits)
	assert.Equal(t, 1, ada.Stats.Level)
	assert.Equal(t, 0, ada.Stats.XP)
	assert.Equal(t, 100, ada.Stats.Energy)
	assert.Equal(t, models.StageHatchling, ada.Evolution.Stage)

	trained := botOf(t, l.dispatcher.TrainBot(ctx, "owner-1", ada.ID, models.TrainRequest{
		Personality: map[string]int{"wittyDry": 90},
	}))
	assert.Equal(t, 90, trained.Traits.WittyDry)
	assert.Equal(t, personality.TraitUpdateXP, trained.Stats.XP)

	first := l.dispatcher.GenerateContent(ctx, models.GenerationRequest{BotID: ada.ID, RequestedBy: "owner-1"})
	require.True(t, first.Success, "%+v", first.Error)
	assert.Equal(t, LevelFull, first.Tier)
	content := first.Data.(*models.GeneratedContent)
	assert.Equal(t, "Hello from Ada", content.Text)
	assert.Equal(t, 0, content.CreditsRemaining)

	second := l.dispatcher.GenerateContent(ctx, models.GenerationRequest{BotID: ada.ID, RequestedBy: "owner-1"})
	assert.False(t, second.Success)
	assert.Equal(t, LevelFull, second.Tier)
	assert.Equal(t, apperrors.CodeQuotaExhausted, second.Error.Code)
	assert.Equal(t, 429, second.Status())
	assert.EqualValues(t, 1, l.backend.calls.Load())
}

func TestBackendDownIsServedByLowerTier(t *testing.T) {
	l := newLadder(t, 5)
	ctx := context.Background()
	ada := botOf(t, l.dispatcher.CreateBot(ctx, models.CreateBotRequest{OwnerID: "owner-1", Name: "Ada"}))

	l.backend.down.Store(true)
	env := l.dispatcher.GenerateContent(ctx, models.GenerationRequest{BotID: ada.ID, RequestedBy: "owner-1"})
	require.True(t, env.Success)
	assert.NotEqual(t, LevelFull, env.Tier)
	assert.Equal(t, LevelMock, env.Tier, "the reduced tier shares the backend")
	assert.Equal(t, "echo", env.Data.(*models.GeneratedContent).Model)
}

func TestDatabaseDownIsServedFromMirror(t *testing.T) {
	l := newLadder(t, 5)
	ctx := context.Background()
	ada := botOf(t, l.dispatcher.CreateBot(ctx, models.CreateBotRequest{OwnerID: "owner-1", Name: "Ada"}))
	require.True(t, l.mirror.Has(ada.ID))

	closeDB(t, l.db)

	got := l.dispatcher.GetBot(ctx, "owner-1", ada.ID)
	assert.Equal(t, LevelReduced, got.Tier)
	assert.Equal(t, "Ada", botOf(t, got).Name)

	gen := l.dispatcher.GenerateContent(ctx, models.GenerationRequest{BotID: ada.ID, RequestedBy: "owner-1"})
	require.True(t, gen.Success)
	assert.Equal(t, LevelReduced, gen.Tier)
	assert.Equal(t, 2, gen.Data.(*models.GeneratedContent).CreditsRemaining)

	// unknown to the mirror: the mirror miss falls through to the mock tier
	ghost := l.dispatcher.GetBot(ctx, "owner-1", "ghost")
	assert.Equal(t, LevelMock, ghost.Tier)
	assert.True(t, ghost.Success)
}

func TestMockTierRefusesChangesItCannotRecord(t *testing.T) {
	l := newLadder(t, 5)
	ctx := context.Background()
	closeDB(t, l.db)

	for name, env := range map[string]Envelope{
		"delete": l.dispatcher.DeleteBot(ctx, "owner-1", "does-not-exist"),
		"reset":  l.dispatcher.ResetBot(ctx, "does-not-exist"),
		"grant":  l.dispatcher.GrantCredits(ctx, "does-not-exist", 5),
	} {
		assert.False(t, env.Success, name)
		assert.Equal(t, LevelMock, env.Tier, name)
		require.NotNil(t, env.Error, name)
		assert.Equal(t, apperrors.CodeReadOnly, env.Error.Code, name)
		assert.Equal(t, 503, env.Status(), name)
	}

	// reads still get canned answers
	assert.True(t, l.dispatcher.GetBot(ctx, "owner-1", "does-not-exist").Success)
}

func TestInvalidInputDoesNotFallThrough(t *testing.T) {
	l := newLadder(t, 5)
	ctx := context.Background()

	env := l.dispatcher.CreateBot(ctx, models.CreateBotRequest{OwnerID: "owner-1"})
	assert.False(t, env.Success)
	assert.Equal(t, LevelFull, env.Tier)
	assert.Equal(t, apperrors.CodeValidation, env.Error.Code)
	assert.Equal(t, 400, env.Status())

	missing := l.dispatcher.GetBot(ctx, "owner-1", "ghost")
	assert.False(t, missing.Success)
	assert.Equal(t, LevelFull, missing.Tier)
	assert.Equal(t, apperrors.CodeNotFound, missing.Error.Code)

	ada := botOf(t, l.dispatcher.CreateBot(ctx, models.CreateBotRequest{OwnerID: "owner-1", Name: "Ada"}))
	noop := l.dispatcher.TrainBot(ctx, "owner-1", ada.ID, models.TrainRequest{Personality: map[string]int{"unknown": 1}})
	assert.Equal(t, LevelFull, noop.Tier)
	assert.Equal(t, apperrors.CodeNoValidUpdate, noop.Error.Code)
}

type countingHandler struct {
	*MockHandler
	calls atomic.Int32
	err   error
}

func (h *countingHandler) GetBot(ctx context.Context, ownerID, botID string) (*models.Bot, error) {
	h.calls.Add(1)
	if h.err != nil {
		return nil, h.err
	}
	return h.MockHandler.GetBot(ctx, ownerID, botID)
}

func TestBackendOutageLeavesStoreOperationsOnFullTier(t *testing.T) {
	l := newLadder(t, 5)
	ctx := context.Background()
	ada := botOf(t, l.dispatcher.CreateBot(ctx, models.CreateBotRequest{OwnerID: "owner-1", Name: "Ada"}))

	l.backend.down.Store(true)
	for i := 0; i < 3; i++ {
		env := l.dispatcher.GenerateContent(ctx, models.GenerationRequest{BotID: ada.ID, RequestedBy: "owner-1"})
		assert.Equal(t, LevelMock, env.Tier)
	}
	assert.Equal(t, resilience.StateOpen, l.backendBreaker.GetState())
	assert.Equal(t, resilience.StateClosed, l.dbBreaker.GetState())
	assert.EqualValues(t, 2, l.backend.calls.Load(), "an open breaker stops further backend calls")

	created := l.dispatcher.CreateBot(ctx, models.CreateBotRequest{OwnerID: "owner-1", Name: "Grace"})
	assert.Equal(t, LevelFull, created.Tier)
	grace := botOf(t, created)

	trained := l.dispatcher.TrainBot(ctx, "owner-1", grace.ID, models.TrainRequest{Personality: map[string]int{"wittyDry": 90}})
	assert.Equal(t, LevelFull, trained.Tier)

	var count int64
	require.NoError(t, l.db.Model(&models.Bot{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
	var stored models.Bot
	require.NoError(t, l.db.Where("id = ?", grace.ID).First(&stored).Error)
	assert.Equal(t, 90, stored.Traits.WittyDry)
	assert.Equal(t, personality.TraitUpdateXP, stored.Stats.XP)

	assert.Equal(t, LevelFull, l.dispatcher.DeleteBot(ctx, "owner-1", ada.ID).Tier)
	assert.Equal(t, LevelFull, l.dispatcher.ResetBot(ctx, grace.ID).Tier)
}

func TestDatabaseOutageOpensOnlyTheDatabaseBreaker(t *testing.T) {
	l := newLadder(t, 5)
	ctx := context.Background()
	ada := botOf(t, l.dispatcher.CreateBot(ctx, models.CreateBotRequest{OwnerID: "owner-1", Name: "Ada"}))
	closeDB(t, l.db)

	for i := 0; i < 3; i++ {
		assert.Equal(t, LevelReduced, l.dispatcher.GetBot(ctx, "owner-1", ada.ID).Tier)
	}
	assert.Equal(t, resilience.StateOpen, l.dbBreaker.GetState())
	assert.Equal(t, resilience.StateClosed, l.backendBreaker.GetState())
}

func TestLastTierErrorSurfaces(t *testing.T) {
	down := apperrors.New(apperrors.ErrDependencyUnavailable, "nothing works")
	a := &countingHandler{MockHandler: NewMockHandler("http://x"), err: down}
	b := &countingHandler{MockHandler: NewMockHandler("http://x"), err: apperrors.New(apperrors.ErrBackendUnavailable, "still down")}
	d, err := NewDispatcher([]Tier{
		{Level: LevelFull, Handler: a},
		{Level: LevelMock, Handler: b, Terminal: true},
	}, logger.Nop(), nil)
	require.NoError(t, err)

	env := d.GetBot(context.Background(), "owner-1", "bot-1")
	assert.False(t, env.Success)
	assert.Equal(t, LevelMock, env.Tier)
	assert.Equal(t, apperrors.CodeBackendUnavailable, env.Error.Code)
	assert.Equal(t, 503, env.Status())
}

func TestCancelledContextStopsWalk(t *testing.T) {
	a := &countingHandler{MockHandler: NewMockHandler("http://x"), err: apperrors.New(apperrors.ErrDependencyUnavailable, "slow db")}
	b := &countingHandler{MockHandler: NewMockHandler("http://x")}
	d, err := NewDispatcher([]Tier{
		{Level: LevelFull, Handler: a},
		{Level: LevelMock, Handler: b, Terminal: true},
	}, logger.Nop(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	env := d.GetBot(ctx, "owner-1", "bot-1")
	assert.False(t, env.Success)
	assert.Equal(t, LevelFull, env.Tier)
	assert.Zero(t, b.calls.Load())
}

func TestEnvelopeShape(t *testing.T) {
	ok, err := json.Marshal(success(&models.QuotaStatus{BotID: "b", Remaining: 2}, LevelReduced))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":{"botId":"b","remaining":2},"tier":"reduced"}`, string(ok))

	bad, err := json.Marshal(failure(apperrors.New(apperrors.ErrNotFound, "bot not found"), LevelFull))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":{"code":"NOT_FOUND","message":"bot not found"},"tier":"full"}`, string(bad))
}

func TestMockTierIsDeterministic(t *testing.T) {
	m := NewMockHandler("http://localhost:8081")
	ctx := context.Background()

	a, err := m.CreateBot(ctx, models.CreateBotRequest{OwnerID: "owner-1", Name: "Ada", AvatarDescription: "tin can"})
	require.NoError(t, err)
	b, err := m.CreateBot(ctx, models.CreateBotRequest{OwnerID: "owner-1", Name: "Ada", AvatarDescription: "tin can"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, "placeholder", a.Avatar.Provider)

	c1, err := m.GenerateContent(ctx, models.GenerationRequest{BotID: "bot-1", RequestedBy: "owner-1"})
	require.NoError(t, err)
	c2, err := m.GenerateContent(ctx, models.GenerationRequest{BotID: "bot-1", RequestedBy: "owner-1"})
	require.NoError(t, err)
	assert.Equal(t, c1, c2)

	trained, err := m.TrainBot(ctx, "owner-1", "bot-1", models.TrainRequest{Personality: map[string]int{"wittyDry": 150}})
	require.NoError(t, err)
	assert.Equal(t, 100, trained.Traits.WittyDry)
	assert.Equal(t, personality.TraitUpdateXP, trained.Stats.XP)

	_, err = m.TrainBot(ctx, "owner-1", "bot-1", models.TrainRequest{})
	assert.ErrorIs(t, err, apperrors.ErrNoValidUpdate)

	assert.ErrorIs(t, m.DeleteBot(ctx, "owner-1", "bot-1"), apperrors.ErrReadOnly)
	assert.ErrorIs(t, m.DeleteBot(ctx, "", "bot-1"), apperrors.ErrValidation)
	_, err = m.ResetBot(ctx, "bot-1")
	assert.ErrorIs(t, err, apperrors.ErrReadOnly)
	_, err = m.GenerateContent(ctx, models.GenerationRequest{BotID: "bot-1", RequestedBy: "owner-1", ContentType: "poem"})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
