package marketdata

import (
	"fmt"
	"strings"
)

// Bar is one OHLCV candle normalized from any provider.
type Bar struct {
	Timestamp int64   `json:"timestamp"` // epoch milliseconds
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Synthetic bool    `json:"synthetic,omitempty"` // generated, not observed on an exchange
	IsCached  bool    `json:"is_cached,omitempty"`
}

// Price is the latest traded price for a symbol.
type Price struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"` // epoch milliseconds
	IsCached  bool    `json:"is_cached,omitempty"`
}

// AssetClass selects which provider chain serves a symbol.
type AssetClass string

const (
	AssetEquity AssetClass = "equity"
	AssetCrypto AssetClass = "crypto"
)

var validTimeframes = map[string]bool{
	"1m": true, "5m": true, "15m": true, "1h": true, "1d": true,
}

// NormalizeSymbol uppercases and trims a raw symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ValidateTimeframe rejects anything outside the supported set.
func ValidateTimeframe(timeframe string) error {
	if !validTimeframes[timeframe] {
		return fmt.Errorf("unsupported timeframe %q (want 1m, 5m, 15m, 1h, or 1d)", timeframe)
	}
	return nil
}

// DetectAssetClass distinguishes crypto pairs from equities by symbol shape.
// "BTC-USD" style pairs route to the crypto chain, everything else is equity.
func DetectAssetClass(symbol string) AssetClass {
	s := NormalizeSymbol(symbol)
	if strings.HasSuffix(s, "-USD") || strings.HasSuffix(s, "-USDT") {
		return AssetCrypto
	}
	return AssetEquity
}

// BarsKey builds the cache/backoff key for a bar series.
func BarsKey(symbol, timeframe string) string {
	return NormalizeSymbol(symbol) + "_" + timeframe
}

// PriceKey builds the cache/backoff key for a latest-price lookup.
func PriceKey(symbol string) string {
	return "price_" + NormalizeSymbol(symbol)
}
