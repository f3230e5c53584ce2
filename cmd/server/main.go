package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prophetlabs/prophet-engine/internal/adapters"
	"github.com/prophetlabs/prophet-engine/internal/config"
	"github.com/prophetlabs/prophet-engine/internal/marketdata"
	"github.com/prophetlabs/prophet-engine/internal/observ"
	"github.com/prophetlabs/prophet-engine/internal/server"
)

func main() {
	configPath := flag.String("config", "", "path to yaml config (defaults apply when empty)")
	addr := flag.String("addr", "", "listen address override")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	svc := marketdata.NewService(cfg.MarketData(), buildChains(cfg))

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.NewRouter(server.NewHandler(svc)),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		observ.Log("server_started", map[string]any{"addr": cfg.Server.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	observ.Log("server_stopping", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// buildChains resolves the configured provider id lists into adapter
// instances, one chain per asset class.
func buildChains(cfg config.Root) map[marketdata.AssetClass][]marketdata.Provider {
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
