package marketdata

import (
	"context"
	"time"

	"github.com/prophetlabs/prophet-engine/internal/observ"
)

// Provider is the minimal contract an upstream data source must present.
// Implementations live in internal/adapters; the chain only needs an identity
// and the two fetch operations.
type Provider interface {
	ID() string
	Bars(ctx context.Context, symbol, timeframe string, limit int) ([]Bar, error)
	Price(ctx context.Context, symbol string) (Price, error)
}

// FetchOutcome is the result of running the provider chain for one key.
// LastErr is set whenever the chain was exhausted, even if a cache fallback
// ended up serving the request.
type FetchOutcome struct {
	Payload   any
	FromCache bool
	LastErr   error
}

// ProviderChain runs an ordered, asset-class-specific list of providers until
// one succeeds. Provider order is policy (cheapest or lowest-latency first)
// configured per asset class, not chosen per call site. A provider whose
// circuit is open is skipped outright. If every provider is skipped or fails,
// the chain falls back to the most recent cache entry as long as it is younger
// than the absolute fallback ceiling.
type ProviderChain struct {
	chains          map[AssetClass][]Provider
	breaker         *CircuitBreaker
	cache           *TimestampedCache
	fetchTimeout    time.Duration
	fallbackCeiling time.Duration
	now             func() time.Time
}

// NewProviderChain wires a chain over shared breaker and cache state.
func NewProviderChain(chains map[AssetClass][]Provider, breaker *CircuitBreaker, cache *TimestampedCache, fetchTimeout, fallbackCeiling time.Duration) *ProviderChain {
	return &ProviderChain{
		chains:          chains,
		breaker:         breaker,
		cache:           cache,
		fetchTimeout:    fetchTimeout,
		fallbackCeiling: fallbackCeiling,
		now:             time.Now,
	}
}

// FetchBars runs the chain for a bar series.
func (pc *ProviderChain) FetchBars(ctx context.Context, symbol, timeframe string, limit int) (FetchOutcome, error) {
	key := BarsKey(symbol, timeframe)
	return pc.execute(ctx, key, DetectAssetClass(symbol), "bars", symbol, func(ctx context.Context, p Provider) (any, error) {
		return p.Bars(ctx, symbol, timeframe, limit)
	})
}

// FetchPrice runs the chain for a latest-price lookup.
func (pc *ProviderChain) FetchPrice(ctx context.Context, symbol string) (FetchOutcome, error) {
	key := PriceKey(symbol)
	return pc.execute(ctx, key, DetectAssetClass(symbol), "price", symbol, func(ctx context.Context, p Provider) (any, error) {
		return p.Price(ctx, symbol)
	})
}

func (pc *ProviderChain) execute(ctx context.Context, key string, class AssetClass, op, symbol string, call func(context.Context, Provider) (any, error)) (FetchOutcome, error) {
	var lastErr error

	for _, p := range pc.chains[class] {
		id := p.ID()
		if !pc.breaker.IsAvailable(id) {
			observ.IncCounter("breaker_skipped_total", map[string]string{"provider": id})
			continue
		}

		cctx, cancel := context.WithTimeout(ctx, pc.fetchTimeout)
		start := pc.now()
		payload, err := call(cctx, p)
		cancel()

		observ.IncCounter("provider_requests_total", map[string]string{"provider": id, "op": op})
		observ.RecordDuration("provider_latency", time.Since(start), map[string]string{"provider": id})

		if err != nil {
			// Timeouts count as ordinary provider failures.
			lastErr = NewProviderError(id, op, symbol, err)
			pc.breaker.RecordFailure(id)
			observ.IncCounter("provider_errors_total", map[string]string{"provider": id, "op": op})
			continue
		}

		pc.breaker.RecordSuccess(id)
		pc.cache.Set(key, payload)
		return FetchOutcome{Payload: payload}, nil
	}

	// Chain exhausted: serve the newest cache entry if it is inside the
	// absolute staleness ceiling, regardless of the fresh/stale windows.
	if entry, ok := pc.cache.Get(key); ok && pc.now().Sub(entry.WrittenAt) <= pc.fallbackCeiling {
		observ.IncCounter("chain_cache_fallback_total", nil)
		observ.Log("chain_cache_fallback", map[string]any{
			"key":    key,
			"age_ms": pc.now().Sub(entry.WrittenAt).Milliseconds(),
		})
		return FetchOutcome{Payload: entry.Payload, FromCache: true, LastErr: lastErr}, nil
	}

	return FetchOutcome{LastErr: lastErr}, NewUnavailableError(key, lastErr)
}
