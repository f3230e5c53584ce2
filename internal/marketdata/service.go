package marketdata

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/prophetlabs/prophet-engine/internal/observ"
)

const (
	defaultBarLimit = 100
	maxBarLimit     = 1000
)

// Config holds every tunable of the data layer. Zero fields are filled with
// the defaults below by NewService.
type Config struct {
	FreshTTL            time.Duration // bars served with zero network calls
	StaleTTL            time.Duration // bars served stale while revalidating
	PriceFreshTTL       time.Duration
	PriceStaleTTL       time.Duration
	BackoffBase         time.Duration
	BackoffCap          time.Duration
	BreakerThreshold    int
	BreakerRecoveryBase time.Duration
	BreakerRecoveryCap  time.Duration
	MaxCacheEntries     int
	FetchTimeout        time.Duration // per upstream call
	FallbackCeiling     time.Duration // absolute staleness ceiling for chain fallback
	MaxStaleness        time.Duration // default quality-validation recency limit
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		FreshTTL:            45 * time.Second,
		StaleTTL:            5 * time.Minute,
		PriceFreshTTL:       15 * time.Second,
		PriceStaleTTL:       2 * time.Minute,
		BackoffBase:         30 * time.Second,
		BackoffCap:          5 * time.Minute,
		BreakerThreshold:    3,
		BreakerRecoveryBase: 2 * time.Minute,
		BreakerRecoveryCap:  15 * time.Minute,
		MaxCacheEntries:     200,
		FetchTimeout:        10 * time.Second,
		FallbackCeiling:     time.Hour,
		MaxStaleness:        15 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FreshTTL <= 0 {
		c.FreshTTL = d.FreshTTL
	}
	if c.StaleTTL <= 0 {
		c.StaleTTL = d.StaleTTL
	}
	if c.PriceFreshTTL <= 0 {
		c.PriceFreshTTL = d.PriceFreshTTL
	}
	if c.PriceStaleTTL <= 0 {
		c.PriceStaleTTL = d.PriceStaleTTL
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = d.BackoffBase
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = d.BackoffCap
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = d.BreakerThreshold
	}
	if c.BreakerRecoveryBase <= 0 {
		c.BreakerRecoveryBase = d.BreakerRecoveryBase
	}
	if c.BreakerRecoveryCap <= 0 {
		c.BreakerRecoveryCap = d.BreakerRecoveryCap
	}
	if c.MaxCacheEntries <= 0 {
		c.MaxCacheEntries = d.MaxCacheEntries
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
	if c.FallbackCeiling <= 0 {
		c.FallbackCeiling = d.FallbackCeiling
	}
	if c.MaxStaleness <= 0 {
		c.MaxStaleness = d.MaxStaleness
	}
	return c
}

// Service is the public entry point of the data layer. It composes the cache,
// per-key backoff, per-provider breakers, the provider chain, and the
// background refresh coordinator into one request algorithm shared by bars
// and prices. All state is per-instance: two Services are fully isolated.
type Service struct {
	cfg       Config
	cache     *TimestampedCache
	failures  *FailureTracker
	breaker   *CircuitBreaker
	refresher *RefreshCoordinator
	chain     *ProviderChain
	sf        singleflight.Group
	now       func() time.Time
}

// NewService builds a Service over the given per-asset-class provider chains.
func NewService(cfg Config, chains map[AssetClass][]Provider) *Service {
	cfg = cfg.withDefaults()
	s := &Service{
		cfg:      cfg,
		cache:    NewTimestampedCache(cfg.MaxCacheEntries),
		failures: NewFailureTracker(cfg.BackoffBase, cfg.BackoffCap),
		breaker:  NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerRecoveryBase, cfg.BreakerRecoveryCap),
		now:      time.Now,
	}
	s.refresher = NewRefreshCoordinator(&s.sf)
	s.chain = NewProviderChain(chains, s.breaker, s.cache, cfg.FetchTimeout, cfg.FallbackCeiling)
	return s
}

// GetBars returns up to limit bars for symbol at the given timeframe,
// consulting the cache, backoff state, and the provider chain in that order.
func (s *Service) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]Bar, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("empty symbol")
	}
	if err := ValidateTimeframe(timeframe); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultBarLimit
	}
	if limit > maxBarLimit {
		limit = maxBarLimit
	}

	key := BarsKey(symbol, timeframe)
	fetch := func(ctx context.Context) (FetchOutcome, error) {
		return s.chain.FetchBars(ctx, symbol, timeframe, limit)
	}
	payload, cached, err := s.getResource(ctx, key, ttlPolicy{fresh: s.cfg.FreshTTL, stale: s.cfg.StaleTTL}, fetch)
	if err != nil {
		return nil, err
	}
	bars := tailBars(payload.([]Bar), limit)
	if cached {
		return markBarsCached(bars), nil
	}
	return bars, nil
}

// GetLatestPrice returns the latest price for symbol via the same algorithm
// as GetBars, with tighter TTLs.
func (s *Service) GetLatestPrice(ctx context.Context, symbol string) (Price, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return Price{}, fmt.Errorf("empty symbol")
	}

	key := PriceKey(symbol)
	fetch := func(ctx context.Context) (FetchOutcome, error) {
		return s.chain.FetchPrice(ctx, symbol)
	}
	payload, cached, err := s.getResource(ctx, key, ttlPolicy{fresh: s.cfg.PriceFreshTTL, stale: s.cfg.PriceStaleTTL}, fetch)
	if err != nil {
		return Price{}, err
	}
	price := payload.(Price)
	price.IsCached = cached
	return price, nil
}

// ValidateDataQuality runs the quality checks against bars. A non-positive
// maxStaleness falls back to the configured default.
func (s *Service) ValidateDataQuality(bars []Bar, maxStaleness time.Duration) QualityReport {
	if maxStaleness <= 0 {
		maxStaleness = s.cfg.MaxStaleness
	}
	return ValidateQuality(bars, maxStaleness, s.now())
}

// ClearCache resets the cache, failure records, and breaker records.
func (s *Service) ClearCache() {
	s.cache.Reset()
	s.failures.Reset()
	s.breaker.Reset()
	observ.Log("cache_cleared", nil)
}

// Diagnostics is a point-in-time view of the layer's internal state.
type Diagnostics struct {
	CacheSize        int                      `json:"cache_size"`
	FailedCacheSize  int                      `json:"failed_cache_size"`
	PendingRefreshes int                      `json:"pending_refreshes"`
	Providers        map[string]BreakerStatus `json:"providers"`
}

// GetDiagnostics reports cache, backoff, refresh, and breaker state.
func (s *Service) GetDiagnostics() Diagnostics {
	return Diagnostics{
		CacheSize:        s.cache.Len(),
		FailedCacheSize:  s.failures.Len(),
		PendingRefreshes: s.refresher.Pending(),
		Providers:        s.breaker.Snapshot(),
	}
}

type ttlPolicy struct {
	fresh time.Duration
	stale time.Duration
}

// getResource is the single request algorithm behind both resource types:
//
//  1. fresh cache hit: return as-is, zero network calls
//  2. stale-but-usable hit: return cached, revalidate in the background
//  3. backoff window active: serve any cached value, else fail fast
//  4. otherwise run the provider chain and record the outcome
func (s *Service) getResource(ctx context.Context, key string, pol ttlPolicy, fetch func(context.Context) (FetchOutcome, error)) (any, bool, error) {
	entry, hasEntry := s.cache.Get(key)
	if hasEntry {
		age := s.now().Sub(entry.WrittenAt)
		if age < pol.fresh {
			return entry.Payload, false, nil
		}
		if age < pol.stale {
			s.scheduleRefresh(key, fetch)
			return entry.Payload, true, nil
		}
	}

	if remaining := s.failures.BackoffRemaining(key); remaining > 0 {
		observ.IncCounter("backoff_rejected_total", nil)
		if hasEntry {
			// Anything cached beats hammering a failing upstream, even past
			// the stale window.
			return entry.Payload, true, nil
		}
		return nil, false, NewBackoffError(key, remaining)
	}

	// The flight group is shared with the refresh coordinator, so a foreground
	// fetch racing an in-flight background refresh for the same key coalesces
	// into it.
	v, err, _ := s.sf.Do(key, func() (any, error) {
		out, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		s.failures.OnFailure(key, err)
		return nil, false, err
	}

	out := v.(FetchOutcome)
	if out.FromCache {
		// Every upstream failed but the chain served from cache inside the
		// fallback ceiling. That still counts as a failed fetch for backoff.
		s.failures.OnFailure(key, out.LastErr)
		return out.Payload, true, nil
	}
	s.cache.Set(key, out.Payload)
	s.failures.OnSuccess(key)
	return out.Payload, false, nil
}

// scheduleRefresh kicks off a fire-and-forget revalidation for key. The caller
// is never blocked and never sees refresh errors.
func (s *Service) scheduleRefresh(key string, fetch func(context.Context) (FetchOutcome, error)) {
	s.refresher.Schedule(key, func() (any, error) {
		out, err := fetch(context.Background())
		if err != nil {
			return nil, err
		}
		if out.FromCache {
			// A refresh that only rediscovered the cache entry refreshed nothing.
			if out.LastErr != nil {
				return nil, out.LastErr
			}
			return nil, NewUnavailableError(key, nil)
		}
		return out, nil
	}, func(v any) {
		out := v.(FetchOutcome)
		s.cache.Set(key, out.Payload)
		s.failures.OnSuccess(key)
	})
}

func markBarsCached(bars []Bar) []Bar {
	out := make([]Bar, len(bars))
	copy(out, bars)
	for i := range out {
		out[i].IsCached = true
	}
	return out
}

func tailBars(bars []Bar, limit int) []Bar {
	if len(bars) <= limit {
		return bars
	}
	return bars[len(bars)-limit:]
}
