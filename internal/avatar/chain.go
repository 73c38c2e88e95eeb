package avatar

import (
	"context"
	"errors"
	"time"

	"ai-bot-network/backend/pkg/cache"
	"ai-bot-network/backend/pkg/logger"
	"ai-bot-network/backend/shared/observability"

	"golang.org/x/sync/singleflight"
)

// Result is a resolved avatar
type Result struct {
	URL      string `json:"url"`
	Seed     string `json:"seed"`
	Provider string `json:"provider"`
	// Fallback is set when the terminal provider served the avatar
	Fallback bool `json:"fallback"`
}

// Config tunes a Chain
type Config struct {
	ProbeTimeout time.Duration
	CacheTTL     time.Duration
	CacheSize    int
}

// placeholder results are cached briefly so a recovered provider is picked up soon
const maxFallbackTTL = time.Minute

// Chain resolves avatars by probing providers in order
type Chain struct {
	providers []Provider
	prober    Prober
	cfg       Config
	cache     *cache.Cache
	group     singleflight.Group
	log       *logger.Logger
	metrics   *observability.Metrics
}

// NewChain checks that the last provider is local, so Resolve always has an answer
func NewChain(providers []Provider, prober Prober, cfg Config, log *logger.Logger, metrics *observability.Metrics) (*Chain, error) {
	if len(providers) == 0 {
		return nil, errors.New("avatar chain needs at least one provider")
	}
	if providers[len(providers)-1].Remote() {
		return nil, errors.New("last avatar provider must not depend on a remote service")
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 2 * time.Second
	}
	if log == nil {
		log = logger.GetGlobal()
	}
	results := cache.NewCache(cache.Options{
		TTL:             cfg.CacheTTL,
		CleanupInterval: cfg.CacheTTL,
		MaxItems:        cfg.CacheSize,
	})
	results.SetOnEvicted(func(seed string, _ interface{}) {
		log.Debug("Avatar result evicted", "seed", seed)
	})
	return &Chain{
		providers: providers,
		prober:    prober,
		cfg:       cfg,
		cache:     results,
		log:       log,
		metrics:   metrics,
	}, nil
}

// Close releases the result cache
func (c *Chain) Close() {
	c.cache.Close()
}

// ProbeBudget is the worst-case time Resolve spends probing
func (c *Chain) ProbeBudget() time.Duration {
	var remote int
	for _, p := range c.providers {
		if p.Remote() {
			remote++
		}
	}
	return time.Duration(remote) * c.cfg.ProbeTimeout
}

// Resolve never fails. Concurrent calls for one seed share a single probe
// walk; a cancelled ctx ends probing and yields the terminal provider.
func (c *Chain) Resolve(ctx context.Context, in SeedInput) Result {
	seed := DeriveSeed(in)

	if v, ok := c.cache.Get(seed); ok {
		return v.(Result)
	}

	v, _, _ := c.group.Do(seed, func() (any, error) {
		res := c.walk(ctx, seed)
		if ctx.Err() == nil && c.cfg.CacheTTL > 0 {
			ttl := c.cfg.CacheTTL
			if res.Fallback && ttl > maxFallbackTTL {
				ttl = maxFallbackTTL
			}
			c.cache.SetWithExpiration(seed, res, ttl)
		}
		return res, nil
	})
	res := v.(Result)
	c.metrics.AvatarResolved(ctx, res.Provider)
	return res
}

// Refresh drops the cached result for in and probes the providers again
func (c *Chain) Refresh(ctx context.Context, in SeedInput) Result {
	c.cache.Delete(DeriveSeed(in))
	return c.Resolve(ctx, in)
}

func (c *Chain) walk(ctx context.Context, seed string) Result {
	lastIdx := len(c.providers) - 1
	last := c.providers[lastIdx]

	for i, p := range c.providers {
		if !p.Remote() {
			return Result{URL: p.URL(seed), Seed: seed, Provider: p.ID(), Fallback: i == lastIdx}
		}
		if ctx.Err() != nil {
			break
		}

		url := p.URL(seed)
		probeCtx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
		err := c.prober.Probe(probeCtx, url)
		cancel()
		if err == nil {
			return Result{URL: url, Seed: seed, Provider: p.ID()}
		}
		c.log.Warn("Avatar provider probe failed", "provider", p.ID(), "error", err.Error())
	}

	return Result{URL: last.URL(seed), Seed: seed, Provider: last.ID(), Fallback: true}
}
