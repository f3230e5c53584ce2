package adapters

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/prophetlabs/prophet-engine/internal/marketdata"
)

// MockAdapter generates deterministic synthetic data. It backs tests and the
// demo wiring, and every bar it emits is flagged Synthetic so the quality
// validator can spot it downstream.
type MockAdapter struct {
	mu         sync.Mutex
	id         string
	failWith   error
	barCalls   int
	priceCalls int
}

// NewMockAdapter creates a mock provider under the given identity.
func NewMockAdapter(id string) *MockAdapter {
	if id == "" {
		id = "mock"
	}
	return &MockAdapter{id: id}
}

func (m *MockAdapter) ID() string { return m.id }

// SetError makes every subsequent fetch fail with err; nil restores success.
func (m *MockAdapter) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// Calls reports how many bar and price fetches the adapter has served.
func (m *MockAdapter) Calls() (bars, prices int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.barCalls, m.priceCalls
}

var timeframeMs = map[string]int64{
	"1m": 60_000, "5m": 300_000, "15m": 900_000, "1h": 3_600_000, "1d": 86_400_000,
}

// Bars returns a deterministic random-walk series ending at the current time.
func (m *MockAdapter) Bars(ctx context.Context, symbol, timeframe string, limit int) ([]marketdata.Bar, error) {
	m.mu.Lock()
	m.barCalls++
	err := m.failWith
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	step, ok := timeframeMs[timeframe]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe %q", timeframe)
	}
	if limit <= 0 {
		limit = 100
	}

	rng := rand.New(rand.NewSource(symbolSeed(symbol)))
	price := 20 + rng.Float64()*480 // stable per-symbol base price
	now := time.Now().UnixMilli()
	start := now - int64(limit-1)*step

	bars := make([]marketdata.Bar, 0, limit)
	for i := 0; i < limit; i++ {
		open := price
		close := open + open*(rng.Float64()*0.02-0.01)
		high := math.Max(open, close) * (1 + rng.Float64()*0.003)
		low := math.Min(open, close) * (1 - rng.Float64()*0.003)
		bars = append(bars, marketdata.Bar{
			Timestamp: start + int64(i)*step,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    float64(1000 + rng.Intn(100_000)),
			Synthetic: true,
		})
		price = close
	}
	return bars, nil
}

// Price returns the close of a fresh two-bar one-minute series.
func (m *MockAdapter) Price(ctx context.Context, symbol string) (marketdata.Price, error) {
	m.mu.Lock()
	m.priceCalls++
	err := m.failWith
	m.mu.Unlock()
	if err != nil {
		return marketdata.Price{}, err
	}
	if ctx.Err() != nil {
		return marketdata.Price{}, ctx.Err()
	}

	bars, err := m.Bars(ctx, symbol, "1m", 2)
	if err != nil {
		return marketdata.Price{}, err
	}
	last := bars[len(bars)-1]
	return marketdata.Price{
		Symbol:    marketdata.NormalizeSymbol(symbol),
		Price:     last.Close,
		Timestamp: last.Timestamp,
	}, nil
}

func symbolSeed(symbol string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(marketdata.NormalizeSymbol(symbol)))
	return int64(h.Sum64())
}
