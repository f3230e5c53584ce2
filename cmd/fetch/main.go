// Command fetch is a one-shot CLI for poking the data layer without the HTTP
// server: fetch bars or a price for a symbol and print JSON to stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/prophetlabs/prophet-engine/internal/adapters"
	"github.com/prophetlabs/prophet-engine/internal/config"
	"github.com/prophetlabs/prophet-engine/internal/marketdata"
	"github.com/prophetlabs/prophet-engine/internal/ta"
)

func main() {
	configPath := flag.String("config", "", "path to yaml config")
	symbol := flag.String("symbol", "AAPL", "symbol to fetch")
	timeframe := flag.String("timeframe", "5m", "bar timeframe")
	limit := flag.Int("limit", 50, "max bars")
	priceOnly := flag.Bool("price", false, "fetch latest price only")
	useMock := flag.Bool("mock", false, "use the synthetic provider")
	summarize := flag.Bool("summary", false, "print an indicator summary instead of raw bars")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *useMock {
		cfg.Providers.UseMock = true
	}

	svc := marketdata.NewService(cfg.MarketData(), chains(cfg))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if *priceOnly {
		price, err := svc.GetLatestPrice(ctx, *symbol)
		if err != nil {
			log.Fatalf("price %s: %v", *symbol, err)
		}
		_ = enc.Encode(price)
		return
	}

	bars, err := svc.GetBars(ctx, *symbol, *timeframe, *limit)
	if err != nil {
		log.Fatalf("bars %s: %v", *symbol, err)
	}
	if *summarize {
		closes := make([]float64, len(bars))
		for i, b := range bars {
			closes[i] = b.Close
		}
		_ = enc.Encode(ta.Summarize(closes))
		fmt.Fprintf(os.Stderr, "quality: %+v\n", svc.ValidateDataQuality(bars, 0))
		return
	}
	_ = enc.Encode(bars)
}

func chains(cfg config.Root) map[marketdata.AssetClass][]marketdata.Provider {
	registry := map[string]marketdata.Provider{
		"yahoo": adapters.NewYahooAdapter(adapters.YahooConfig{
			BaseURL:        cfg.Yahoo.BaseURL,
			RatePerMinute:  cfg.Yahoo.RatePerMinute,
			TimeoutSeconds: cfg.Yahoo.TimeoutSeconds,
		}),
		"coingecko": adapters.NewCoinGeckoAdapter(adapters.CoinGeckoConfig{
			BaseURL:        cfg.CoinGecko.BaseURL,
			RatePerMinute:  cfg.CoinGecko.RatePerMinute,
			TimeoutSeconds: cfg.CoinGecko.TimeoutSeconds,
		}),
		"mock": adapters.NewMockAdapter("mock"),
	}
	resolve := func(ids []string) []marketdata.Provider {
		if cfg.Providers.UseMock {
			ids = []string{"mock"}
		}
		out := make([]marketdata.Provider, 0, len(ids))
		for _, id := range ids {
			p, ok := registry[id]
			if !ok {
				log.Fatalf("unknown provider id %q in config", id)
			}
			out = append(out, p)
		}
		return out
	}
	return map[marketdata.AssetClass][]marketdata.Provider{
		marketdata.AssetEquity: resolve(cfg.Providers.Equity),
		marketdata.AssetCrypto: resolve(cfg.Providers.Crypto),
	}
}
