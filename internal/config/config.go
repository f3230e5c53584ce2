package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/prophetlabs/prophet-engine/internal/marketdata"
)

type Server struct {
	Addr string `yaml:"addr"`
}

type Cache struct {
	FreshMs           int `yaml:"fresh_ms"`
	StaleMs           int `yaml:"stale_ms"`
	PriceFreshMs      int `yaml:"price_fresh_ms"`
	PriceStaleMs      int `yaml:"price_stale_ms"`
	MaxEntries        int `yaml:"max_entries"`
	FallbackCeilingMs int `yaml:"fallback_ceiling_ms"`
	MaxStalenessMs    int `yaml:"max_staleness_ms"`
}

type Backoff struct {
	BaseMs int `yaml:"base_ms"`
	CapMs  int `yaml:"cap_ms"`
}

type Breaker struct {
	Threshold      int `yaml:"threshold"`
	RecoveryBaseMs int `yaml:"recovery_base_ms"`
	RecoveryCapMs  int `yaml:"recovery_cap_ms"`
}

type Providers struct {
	Equity         []string `yaml:"equity"` // provider ids, tried in order
	Crypto         []string `yaml:"crypto"`
	FetchTimeoutMs int      `yaml:"fetch_timeout_ms"`
	UseMock        bool     `yaml:"use_mock"` // serve synthetic data only
}

type Upstream struct {
	BaseURL        string `yaml:"base_url"`
	RatePerMinute  int    `yaml:"rate_per_minute"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Root struct {
	Server    Server    `yaml:"server"`
	Cache     Cache     `yaml:"cache"`
	Backoff   Backoff   `yaml:"backoff"`
	Breaker   Breaker   `yaml:"breaker"`
	Providers Providers `yaml:"providers"`
	Yahoo     Upstream  `yaml:"yahoo"`
	CoinGecko Upstream  `yaml:"coingecko"`
}

// Load reads path and fills defaults for anything the file leaves unset. An
// empty path returns pure defaults.
func Load(path string) (Root, error) {
	var c Root
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return c, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return c, err
		}
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8090"
	}

	if c.Cache.FreshMs == 0 {
		c.Cache.FreshMs = 45_000
	}
	if c.Cache.StaleMs == 0 {
		c.Cache.StaleMs = 300_000
	}
	if c.Cache.PriceFreshMs == 0 {
		c.Cache.PriceFreshMs = 15_000
	}
	if c.Cache.PriceStaleMs == 0 {
		c.Cache.PriceStaleMs = 120_000
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = 200
	}
	if c.Cache.FallbackCeilingMs == 0 {
		c.Cache.FallbackCeilingMs = 3_600_000
	}
	if c.Cache.MaxStalenessMs == 0 {
		c.Cache.MaxStalenessMs = 900_000
	}

	if c.Backoff.BaseMs == 0 {
		c.Backoff.BaseMs = 30_000
	}
	if c.Backoff.CapMs == 0 {
		c.Backoff.CapMs = 300_000
	}

	if c.Breaker.Threshold == 0 {
		c.Breaker.Threshold = 3
	}
	if c.Breaker.RecoveryBaseMs == 0 {
		c.Breaker.RecoveryBaseMs = 120_000
	}
	if c.Breaker.RecoveryCapMs == 0 {
		c.Breaker.RecoveryCapMs = 900_000
	}

	if len(c.Providers.Equity) == 0 {
		c.Providers.Equity = []string{"yahoo"}
	}
	if len(c.Providers.Crypto) == 0 {
		c.Providers.Crypto = []string{"coingecko", "yahoo"}
	}
	if c.Providers.FetchTimeoutMs == 0 {
		c.Providers.FetchTimeoutMs = 10_000
	}

	if c.Yahoo.RatePerMinute == 0 {
		c.Yahoo.RatePerMinute = 60
	}
	if c.CoinGecko.RatePerMinute == 0 {
		c.CoinGecko.RatePerMinute = 10
	}

	return c, nil
}

// MarketData translates the file-level millisecond knobs into the service
// config.
func (c Root) MarketData() marketdata.Config {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	return marketdata.Config{
		FreshTTL:            ms(c.Cache.FreshMs),
		StaleTTL:            ms(c.Cache.StaleMs),
		PriceFreshTTL:       ms(c.Cache.PriceFreshMs),
		PriceStaleTTL:       ms(c.Cache.PriceStaleMs),
		BackoffBase:         ms(c.Backoff.BaseMs),
		BackoffCap:          ms(c.Backoff.CapMs),
		BreakerThreshold:    c.Breaker.Threshold,
		BreakerRecoveryBase: ms(c.Breaker.RecoveryBaseMs),
		BreakerRecoveryCap:  ms(c.Breaker.RecoveryCapMs),
		MaxCacheEntries:     c.Cache.MaxEntries,
		FetchTimeout:        ms(c.Providers.FetchTimeoutMs),
		FallbackCeiling:     ms(c.Cache.FallbackCeilingMs),
		MaxStaleness:        ms(c.Cache.MaxStalenessMs),
	}
}
