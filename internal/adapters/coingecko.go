package adapters

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/prophetlabs/prophet-engine/internal/marketdata"
)

// coinGeckoIDs maps the "-USD" pair symbols we serve to CoinGecko coin ids.
var coinGeckoIDs = map[string]string{
	"BTC-USD":   "bitcoin",
	"ETH-USD":   "ethereum",
	"SOL-USD":   "solana",
	"ADA-USD":   "cardano",
	"XRP-USD":   "ripple",
	"DOGE-USD":  "dogecoin",
	"DOT-USD":   "polkadot",
	"AVAX-USD":  "avalanche-2",
	"LINK-USD":  "chainlink",
	"MATIC-USD": "matic-network",
}

// CoinGeckoConfig holds configuration for the CoinGecko adapter.
type CoinGeckoConfig struct {
	BaseURL        string
	RatePerMinute  int
	TimeoutSeconds int
}

// CoinGeckoAdapter serves crypto prices and OHLC candles from the free
// CoinGecko API. CoinGecko picks candle granularity from the requested day
// span, so timeframes map to spans rather than exact intervals; volume is not
// part of the OHLC endpoint and comes back zero.
type CoinGeckoAdapter struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewCoinGeckoAdapter creates a CoinGecko adapter with defaults filled in.
func NewCoinGeckoAdapter(cfg CoinGeckoConfig) *CoinGeckoAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = 10 // free tier is roughly 10-30/min
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 10
	}
	return &CoinGeckoAdapter{
		baseURL:     cfg.BaseURL,
		httpClient:  &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		rateLimiter: rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60), 1),
	}
}

func (cg *CoinGeckoAdapter) ID() string { return "coingecko" }

func coinID(symbol string) (string, error) {
	id, ok := coinGeckoIDs[marketdata.NormalizeSymbol(symbol)]
	if !ok {
		return "", fmt.Errorf("symbol %s not mapped to a coingecko id", symbol)
	}
	return id, nil
}

var coinGeckoDays = map[string]string{
	// <=1 day gives ~30m candles, <=7 gives 4h, <=90 gives daily
	"1m": "1", "5m": "1", "15m": "7", "1h": "7", "1d": "90",
}

// Bars fetches OHLC candles for a crypto pair.
func (cg *CoinGeckoAdapter) Bars(ctx context.Context, symbol, timeframe string, limit int) ([]marketdata.Bar, error) {
	id, err := coinID(symbol)
	if err != nil {
		return nil, err
	}
	if err := cg.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	days, ok := coinGeckoDays[timeframe]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe %q", timeframe)
	}
	u := fmt.Sprintf("%s/coins/%s/ohlc?vs_currency=usd&days=%s", cg.baseURL, id, days)

	// rows of [timestamp_ms, open, high, low, close]
	var rows [][]float64
	if err := doGetJSON(ctx, cg.httpClient, u, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty ohlc response for %s", symbol)
	}

	bars := make([]marketdata.Bar, 0, len(rows))
	for _, row := range rows {
		if len(row) < 5 {
			continue
		}
		bars = append(bars, marketdata.Bar{
			Timestamp: int64(row[0]),
			Open:      row[1],
			High:      row[2],
			Low:       row[3],
			Close:     row[4],
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no usable candles for %s", symbol)
	}
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

// Price fetches the current USD price for a crypto pair.
func (cg *CoinGeckoAdapter) Price(ctx context.Context, symbol string) (marketdata.Price, error) {
	id, err := coinID(symbol)
	if err != nil {
		return marketdata.Price{}, err
	}
	if err := cg.rateLimiter.Wait(ctx); err != nil {
		return marketdata.Price{}, err
	}

	u := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd&include_last_updated_at=true", cg.baseURL, id)

	var out map[string]struct {
		USD           float64 `json:"usd"`
		LastUpdatedAt int64   `json:"last_updated_at"`
	}
	if err := doGetJSON(ctx, cg.httpClient, u, &out); err != nil {
		return marketdata.Price{}, err
	}

	entry, ok := out[strings.ToLower(id)]
	if !ok || entry.USD <= 0 {
		return marketdata.Price{}, fmt.Errorf("no price returned for %s", symbol)
	}
	ts := entry.LastUpdatedAt * 1000
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	return marketdata.Price{
		Symbol:    marketdata.NormalizeSymbol(symbol),
		Price:     entry.USD,
		Timestamp: ts,
	}, nil
}
