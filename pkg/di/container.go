package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"ai-bot-network/backend/internal/avatar"
	"ai-bot-network/backend/internal/generation"
	"ai-bot-network/backend/internal/quota"
	"ai-bot-network/backend/internal/service"
	"ai-bot-network/backend/internal/store"
	"ai-bot-network/backend/internal/tier"
	"ai-bot-network/backend/internal/ws"
	"ai-bot-network/backend/pkg/config"
	apperrors "ai-bot-network/backend/pkg/errors"
	"ai-bot-network/backend/pkg/health"
	"ai-bot-network/backend/pkg/jwt"
	"ai-bot-network/backend/pkg/logger"
	"ai-bot-network/backend/pkg/resilience"
	"ai-bot-network/backend/pkg/secrets"
	sharedredis "ai-bot-network/backend/shared/redis"
	"ai-bot-network/backend/shared/observability"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Container holds all the dependencies for the application
type Container struct {
	Config         *config.Config
	DB             *gorm.DB
	Redis          *redis.Client // nil unless the redis ledger is configured
	Logger         *logger.Logger
	JWTService     *jwt.Service
	UserService    *service.UserService
	Schema         *store.Schema
	Secrets        secrets.Manager
	Backend        generation.Backend
	Avatars        *avatar.Chain
	Feed           *ws.Hub // nil when the feed is disabled
	Dispatcher     *tier.Dispatcher
	Health         *health.Checker
	// Breakers guard the database, the generation backend and, when
	// configured, redis. Keyed by dependency name.
	Breakers       map[string]*resilience.CircuitBreaker
	MetricsHandler http.Handler

	closers []func(context.Context) error
}

// New wires every component from cfg. The database handle is opened by the
// caller so tests can pass their own. An unreachable database does not fail
// New: the schema is migrated on first successful use and the ladder serves
// requests from the lower tiers until then.
func New(ctx context.Context, cfg *config.Config, db *gorm.DB, log *logger.Logger) (*Container, error) {
	c := &Container{Config: cfg, DB: db, Logger: log, Breakers: map[string]*resilience.CircuitBreaker{}}
	ok := false
	defer func() {
		if !ok {
			c.Close(context.Background())
		}
	}()

	c.Schema = store.NewSchema(db)
	if err := c.Schema.Ensure(ctx); err != nil {
		log.Warn("Database schema not migrated yet, retrying on first use", "error", err)
	}

	meterProvider, metricsHandler, err := observability.SetupPrometheusMetrics(cfg.Observability.ServiceName)
	if err != nil {
		return nil, err
	}
	c.MetricsHandler = metricsHandler
	c.closers = append(c.closers, meterProvider.Shutdown)
	metrics, err := observability.NewMetrics(meterProvider.Meter(cfg.Observability.ServiceName))
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	if cfg.Observability.Tracing {
		shutdown, err := observability.SetupTracing(cfg.Observability.ServiceName, os.Stdout)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, shutdown)
	}

	vault, err := secrets.NewVaultManager(secrets.VaultConfig{
		Enabled:   cfg.Vault.Enabled,
		Address:   cfg.Vault.Address,
		Token:     cfg.Vault.Token,
		Namespace: cfg.Vault.Namespace,
		Mount:     cfg.Vault.Mount,
		Path:      cfg.Vault.Path,
		CacheTTL:  cfg.Vault.CacheTTL,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create secrets manager: %w", err)
	}
	c.Secrets = vault
	c.closers = append(c.closers, func(context.Context) error { vault.Close(); return nil })

	c.JWTService = jwt.NewService(vault.GetSecretWithDefault(ctx, secrets.KeyJWTSecret, cfg.JWT.Secret), cfg.JWT.Expiry)
	c.UserService = service.NewUserService(db, c.JWTService, cfg.Security.AdminEmails).UseSchema(c.Schema.Ensure)

	backend, err := newBackend(ctx, cfg, vault)
	if err != nil {
		return nil, err
	}
	guarded := generation.NewGuardedBackend(backend, c.breaker("backend"))
	c.Backend = guarded
	log.Info("Generation backend selected", "backend", c.Backend.Name(), "model", cfg.Generation.Model)

	providers, err := avatar.ParseProviders(cfg.Avatar.Providers, cfg.Server.BaseURL)
	if err != nil {
		return nil, err
	}
	c.Avatars, err = avatar.NewChain(providers, avatar.NewHTTPProber(), avatar.Config{
		ProbeTimeout: cfg.Avatar.ProbeTimeout,
		CacheTTL:     cfg.Avatar.CacheTTL,
		CacheSize:    cfg.Avatar.CacheSize,
	}, log, metrics)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, func(context.Context) error { c.Avatars.Close(); return nil })

	if cfg.Features.EnableFeed {
		c.Feed = ws.NewHub(log)
	}

	c.Health = health.NewChecker(log, cfg.Health.Interval)
	// The ladder keeps serving without the database, so it only degrades
	// the overall status.
	c.Health.RegisterPingCheck("database", false, store.NewGormStore(db).Ping)
	c.Health.RegisterPingCheck("generation-backend", false, guarded.Ping)

	fullLedger, err := c.fullLedger(ctx)
	if err != nil {
		return nil, err
	}

	c.Dispatcher, err = c.buildLadder(fullLedger, metrics)
	if err != nil {
		return nil, err
	}

	ok = true
	return c, nil
}

func (c *Container) fullLedger(ctx context.Context) (quota.Ledger, error) {
	cfg := c.Config
	switch cfg.Quota.Backend {
	case "redis":
		client, err := sharedredis.NewClient(ctx, sharedredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		c.Redis = client
		c.closers = append(c.closers, func(context.Context) error { return client.Close() })
		c.Health.RegisterPingCheck("redis", false, sharedredis.Pinger(client))
		return quota.NewGuarded(quota.NewRedisLedger(client, "botnet:quota:"), c.breaker("redis"), nil), nil
	case "db", "":
		return quota.NewGuarded(quota.NewGormLedger(c.DB), c.breaker("database"), c.Schema.Ensure), nil
	default:
		return nil, fmt.Errorf("unknown quota backend %q", cfg.Quota.Backend)
	}
}

// buildLadder assembles full, reduced and mock tiers. The full tier's store
// mirrors every read into memory so the reduced tier can serve it when the
// database is down.
func (c *Container) buildLadder(fullLedger quota.Ledger, metrics *observability.Metrics) (*tier.Dispatcher, error) {
	cfg := c.Config
	mirror := store.NewMemoryStore()
	botCfg := service.BotConfig{DefaultCredits: cfg.Quota.DefaultCredits, MaxBotsPerUser: cfg.Features.MaxBotsPerUser}
	genCfg := generation.Config{
		Timeout:     cfg.Generation.Timeout,
		MaxTokens:   cfg.Generation.MaxTokens,
		Temperature: cfg.Generation.Temperature,
	}

	newService := func(st store.Store, ledger quota.Ledger, credits int) *service.BotService {
		deps := generation.Deps{
			Store:   st,
			Ledger:  ledger,
			Backend: c.Backend,
			Avatars: c.Avatars,
			Log:     c.Logger,
			Metrics: metrics,
		}
		if c.Feed != nil {
			deps.Feed = c.Feed
		}
		bc := botCfg
		bc.DefaultCredits = credits
		return service.NewBotService(st, ledger, generation.NewOrchestrator(deps, genCfg), c.Avatars, bc, c.Logger)
	}

	fullStore := store.NewMirrored(store.NewGuarded(store.NewGormStore(c.DB), c.breaker("database"), c.Schema), mirror)
	tiers := []tier.Tier{{
		Level:   tier.LevelFull,
		Handler: newService(fullStore, fullLedger, cfg.Quota.DefaultCredits),
	}}

	if cfg.Tiers.ReducedEnabled {
		tiers = append(tiers, tier.Tier{
			Level:   tier.LevelReduced,
			Handler: newService(store.NewTransient(mirror), quota.NewMemoryLedger(cfg.Quota.ReducedCredits), cfg.Quota.ReducedCredits),
		})
	}

	tiers = append(tiers, tier.Tier{
		Level:    tier.LevelMock,
		Handler:  tier.NewMockHandler(cfg.Server.BaseURL),
		Terminal: true,
	})

	return tier.NewDispatcher(tiers, c.Logger, metrics)
}

// breaker returns the shared breaker for a dependency, creating it on first
// use. Only outages count against it; client errors and refusals do not.
func (c *Container) breaker(name string) *resilience.CircuitBreaker {
	if cb, ok := c.Breakers[name]; ok {
		return cb
	}
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: c.Config.Breaker.Failures,
		SuccessThreshold: c.Config.Breaker.Successes,
		RetryTimeout:     c.Config.Breaker.Cooldown,
		IsFailure:        apperrors.IsDependency,
	}, c.Logger)
	c.Breakers[name] = cb
	return cb
}

// newBackend selects the generation backend. API keys come from the secrets
// manager, which falls back to the environment.
func newBackend(ctx context.Context, cfg *config.Config, sm secrets.Manager) (generation.Backend, error) {
	switch cfg.Generation.Provider {
	case "gemini":
		key, err := sm.GetSecret(ctx, secrets.KeyGeminiAPIKey)
		if err != nil {
			return nil, fmt.Errorf("gemini backend: %w", err)
		}
		return generation.NewGeminiBackend(ctx, key, cfg.Generation.Model, "")
	case "openai":
		key, err := sm.GetSecret(ctx, secrets.KeyOpenAIAPIKey)
		if err != nil {
			return nil, fmt.Errorf("openai backend: %w", err)
		}
		return generation.NewOpenAIBackend(key, cfg.Generation.Model, "", cleanhttp.DefaultPooledClient())
	case "http":
		key := sm.GetSecretWithDefault(ctx, secrets.KeyAIServiceAPIKey, "")
		return generation.NewHTTPBackend(cfg.Generation.AIServiceURL, key, cfg.Generation.Model), nil
	case "echo":
		return generation.EchoBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Generation.Provider)
	}
}

// Close releases every resource in reverse creation order
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
