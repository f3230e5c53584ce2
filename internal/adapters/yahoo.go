package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/prophetlabs/prophet-engine/internal/marketdata"
)

// YahooConfig holds configuration for the Yahoo Finance chart adapter.
type YahooConfig struct {
	BaseURL        string
	RatePerMinute  int
	TimeoutSeconds int
}

// YahooAdapter serves bars and latest prices from the Yahoo Finance chart
// API. It handles both equities and "-USD" crypto pairs, which makes it the
// usual tail provider in both chains.
type YahooAdapter struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewYahooAdapter creates a Yahoo chart adapter with defaults filled in.
func NewYahooAdapter(cfg YahooConfig) *YahooAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://query1.finance.yahoo.com"
	}
	if cfg.RatePerMinute <= 0 {
		cfg.RatePerMinute = 60
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 10
	}
	return &YahooAdapter{
		baseURL:     cfg.BaseURL,
		httpClient:  &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		rateLimiter: rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60), 1),
	}
}

func (y *YahooAdapter) ID() string { return "yahoo" }

// chart API wire format, trimmed to the fields we read
type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

var yahooIntervals = map[string]string{
	"1m": "1m", "5m": "5m", "15m": "15m", "1h": "60m", "1d": "1d",
}

// ranges wide enough to cover maxBarLimit bars at each interval
var yahooRanges = map[string]string{
	"1m": "1d", "5m": "5d", "15m": "5d", "1h": "1mo", "1d": "6mo",
}

// Bars fetches up to limit bars for symbol at the given timeframe.
func (y *YahooAdapter) Bars(ctx context.Context, symbol, timeframe string, limit int) ([]marketdata.Bar, error) {
	if err := y.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	interval, ok := yahooIntervals[timeframe]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe %q", timeframe)
	}
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s",
		y.baseURL, url.PathEscape(marketdata.NormalizeSymbol(symbol)), interval, yahooRanges[timeframe])

	var out yahooChartResponse
	if err := doGetJSON(ctx, y.httpClient, u, &out); err != nil {
		return nil, err
	}
	if out.Chart.Error != nil {
		return nil, fmt.Errorf("chart error %s: %s", out.Chart.Error.Code, out.Chart.Error.Description)
	}
	if len(out.Chart.Result) == 0 || len(out.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("empty chart result for %s", symbol)
	}

	result := out.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]marketdata.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		// Yahoo pads incomplete minutes with nulls; skip them.
		if i >= len(quote.Close) || quote.Open[i] == nil || quote.High[i] == nil ||
			quote.Low[i] == nil || quote.Close[i] == nil {
			continue
		}
		bar := marketdata.Bar{
			Timestamp: ts * 1000,
			Open:      *quote.Open[i],
			High:      *quote.High[i],
			Low:       *quote.Low[i],
			Close:     *quote.Close[i],
		}
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			bar.Volume = *quote.Volume[i]
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no usable bars for %s", symbol)
	}
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

// Price fetches the latest price for symbol from chart metadata.
func (y *YahooAdapter) Price(ctx context.Context, symbol string) (marketdata.Price, error) {
	if err := y.rateLimiter.Wait(ctx); err != nil {
		return marketdata.Price{}, err
	}

	sym := marketdata.NormalizeSymbol(symbol)
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1m&range=1d", y.baseURL, url.PathEscape(sym))

	var out yahooChartResponse
	if err := doGetJSON(ctx, y.httpClient, u, &out); err != nil {
		return marketdata.Price{}, err
	}
	if out.Chart.Error != nil {
		return marketdata.Price{}, fmt.Errorf("chart error %s: %s", out.Chart.Error.Code, out.Chart.Error.Description)
	}
	if len(out.Chart.Result) == 0 {
		return marketdata.Price{}, fmt.Errorf("empty chart result for %s", symbol)
	}

	meta := out.Chart.Result[0].Meta
	if meta.RegularMarketPrice <= 0 {
		return marketdata.Price{}, fmt.Errorf("no market price for %s", symbol)
	}
	ts := meta.RegularMarketTime * 1000
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	return marketdata.Price{Symbol: sym, Price: meta.RegularMarketPrice, Timestamp: ts}, nil
}
