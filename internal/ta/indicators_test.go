package ta

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	if got := SMA(values, 5); !almostEqual(got, 3) {
		t.Errorf("SMA full = %v", got)
	}
	if got := SMA(values, 2); !almostEqual(got, 4.5) {
		t.Errorf("SMA last2 = %v", got)
	}
	// Short series averages what it has.
	if got := SMA([]float64{10, 20}, 5); !almostEqual(got, 15) {
		t.Errorf("SMA short = %v", got)
	}
	if got := SMA(nil, 5); got != 0 {
		t.Errorf("SMA empty = %v", got)
	}
}

func TestEMA(t *testing.T) {
	// A constant series has itself as its EMA.
	flat := []float64{50, 50, 50, 50, 50}
	if got := EMA(flat, 3); !almostEqual(got, 50) {
		t.Errorf("EMA flat = %v", got)
	}
	// EMA tracks toward recent values but lags behind them.
	rising := []float64{10, 10, 10, 10, 20}
	got := EMA(rising, 3)
	if got <= 10 || got >= 20 {
		t.Errorf("EMA rising should land between 10 and 20, got %v", got)
	}
	if s := EMASeries(nil, 3); s != nil {
		t.Errorf("EMASeries empty = %v", s)
	}
}

func TestRSI(t *testing.T) {
	// Monotonic gains push RSI to 100, losses to 0.
	var up, down []float64
	for i := 0; i < 30; i++ {
		up = append(up, float64(100+i))
		down = append(down, float64(100-i))
	}
	if got := RSI(up, 14); !almostEqual(got, 100) {
		t.Errorf("RSI all-gains = %v", got)
	}
	if got := RSI(down, 14); !almostEqual(got, 0) {
		t.Errorf("RSI all-losses = %v", got)
	}
	// Too short to compute: neutral.
	if got := RSI([]float64{1, 2, 3}, 14); got != 50 {
		t.Errorf("RSI short = %v", got)
	}
	// Flat series: neutral.
	if got := RSI([]float64{5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5}, 14); got != 50 {
		t.Errorf("RSI flat = %v", got)
	}
}

func TestSummarize(t *testing.T) {
	var rising []float64
	for i := 0; i < 60; i++ {
		rising = append(rising, 100+float64(i))
	}
	s := Summarize(rising)
	if s.Trend != "bullish" {
		t.Errorf("steady rise should be bullish, got %s", s.Trend)
	}
	if s.Momentum != "overbought" {
		t.Errorf("unbroken gains should be overbought, got %s", s.Momentum)
	}
	if !almostEqual(s.Price, 159) {
		t.Errorf("price = %v", s.Price)
	}
	if s.ChangePct <= 0 {
		t.Errorf("change pct = %v", s.ChangePct)
	}

	var falling []float64
	for i := 0; i < 60; i++ {
		falling = append(falling, 200-float64(i))
	}
	s = Summarize(falling)
	if s.Trend != "bearish" || s.Momentum != "oversold" {
		t.Errorf("steady fall should be bearish/oversold, got %s/%s", s.Trend, s.Momentum)
	}

	s = Summarize(nil)
	if s.Trend != "neutral" || s.Momentum != "neutral" || s.Price != 0 {
		t.Errorf("empty summary = %+v", s)
	}
}
