package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const yahooChartFixture = `{
  "chart": {
    "result": [{
      "meta": {"regularMarketPrice": 231.59, "regularMarketTime": 1756380000},
      "timestamp": [1756379700, 1756379760, 1756379820, 1756379880],
      "indicators": {
        "quote": [{
          "open":   [231.10, 231.20, null, 231.40],
          "high":   [231.30, 231.45, null, 231.60],
          "low":    [231.00, 231.15, null, 231.35],
          "close":  [231.25, 231.40, null, 231.59],
          "volume": [120000, 98000, null, 110500]
        }]
      }
    }],
    "error": null
  }
}`

func TestYahooBars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v8/finance/chart/AAPL" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("interval"); got != "5m" {
			t.Errorf("interval = %s, want 5m", got)
		}
		w.Write([]byte(yahooChartFixture))
	}))
	defer srv.Close()

	y := NewYahooAdapter(YahooConfig{BaseURL: srv.URL, RatePerMinute: 600})
	bars, err := y.Bars(context.Background(), "aapl", "5m", 10)
	if err != nil {
		t.Fatalf("Bars() error = %v", err)
	}
	// The null-padded row is dropped.
	if len(bars) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(bars))
	}
	last := bars[len(bars)-1]
	if last.Timestamp != 1756379880*1000 {
		t.Errorf("timestamp should be epoch ms, got %d", last.Timestamp)
	}
	if last.Close != 231.59 || last.Volume != 110500 {
		t.Errorf("unexpected last bar: %+v", last)
	}
	if last.Synthetic {
		t.Error("live data must not be flagged synthetic")
	}
}

func TestYahooBarsLimitTail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(yahooChartFixture))
	}))
	defer srv.Close()

	y := NewYahooAdapter(YahooConfig{BaseURL: srv.URL, RatePerMinute: 600})
	bars, err := y.Bars(context.Background(), "AAPL", "5m", 2)
	if err != nil {
		t.Fatalf("Bars() error = %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[1].Close != 231.59 {
		t.Error("limit should keep the newest bars")
	}
}

func TestYahooPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(yahooChartFixture))
	}))
	defer srv.Close()

	y := NewYahooAdapter(YahooConfig{BaseURL: srv.URL, RatePerMinute: 600})
	price, err := y.Price(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("Price() error = %v", err)
	}
	if price.Symbol != "AAPL" || price.Price != 231.59 {
		t.Errorf("unexpected price: %+v", price)
	}
	if price.Timestamp != 1756380000*1000 {
		t.Errorf("timestamp = %d", price.Timestamp)
	}
}

func TestYahooErrors(t *testing.T) {
	t.Run("chart_error_payload", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
		}))
		defer srv.Close()

		y := NewYahooAdapter(YahooConfig{BaseURL: srv.URL, RatePerMinute: 600})
		if _, err := y.Bars(context.Background(), "NOPE", "5m", 10); err == nil {
			t.Error("chart error payload should surface as an error")
		}
	})

	t.Run("http_error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		y := NewYahooAdapter(YahooConfig{BaseURL: srv.URL, RatePerMinute: 600})
		if _, err := y.Price(context.Background(), "AAPL"); err == nil {
			t.Error("429 should surface as an error")
		}
	})

	t.Run("bad_timeframe", func(t *testing.T) {
		y := NewYahooAdapter(YahooConfig{BaseURL: "http://unused", RatePerMinute: 600})
		if _, err := y.Bars(context.Background(), "AAPL", "2m", 10); err == nil {
			t.Error("unsupported timeframe should fail before any request")
		}
	})
}
