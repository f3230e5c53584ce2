package adapters

import (
	"context"
	"errors"
	"testing"
)

func TestMockBarsDeterministic(t *testing.T) {
	m := NewMockAdapter("mock")
	a, err := m.Bars(context.Background(), "AAPL", "5m", 50)
	if err != nil {
		t.Fatalf("Bars() error = %v", err)
	}
	b, err := m.Bars(context.Background(), "AAPL", "5m", 50)
	if err != nil {
		t.Fatalf("Bars() error = %v", err)
	}
	if len(a) != 50 || len(b) != 50 {
		t.Fatalf("expected 50 bars, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Close != b[i].Close {
			t.Fatalf("series must be deterministic per symbol, diverged at %d", i)
		}
		if !a[i].Synthetic {
			t.Fatal("mock bars must be flagged synthetic")
		}
		if a[i].High < a[i].Low || a[i].Close <= 0 {
			t.Fatalf("malformed bar %d: %+v", i, a[i])
		}
	}
	// Different symbols walk differently.
	c, _ := m.Bars(context.Background(), "MSFT", "5m", 50)
	if c[10].Close == a[10].Close {
		t.Error("distinct symbols should produce distinct series")
	}
}

func TestMockErrorInjection(t *testing.T) {
	m := NewMockAdapter("mock")
	m.SetError(errors.New("injected"))

	if _, err := m.Bars(context.Background(), "AAPL", "5m", 10); err == nil {
		t.Fatal("expected injected error")
	}
	if _, err := m.Price(context.Background(), "AAPL"); err == nil {
		t.Fatal("expected injected error")
	}

	m.SetError(nil)
	if _, err := m.Price(context.Background(), "AAPL"); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}

	bars, prices := m.Calls()
	if bars < 2 || prices != 2 {
		t.Errorf("unexpected call counts: bars=%d prices=%d", bars, prices)
	}
}
