package marketdata

import (
	"strings"
	"testing"
	"time"
)

func freshBars(n int, now time.Time) []Bar {
	return makeBars(n, now.Add(-time.Duration(n)*time.Minute), time.Minute)
}

func TestQualityValidSeries(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	report := ValidateQuality(freshBars(30, now), 15*time.Minute, now)

	if !report.Valid {
		t.Fatalf("expected valid, got issues: %v", report.Issues)
	}
	if report.BarCount != 30 {
		t.Errorf("expected bar count 30, got %d", report.BarCount)
	}
	if report.HasMockData {
		t.Error("no synthetic bars present")
	}
}

func TestQualityEmptySeries(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	report := ValidateQuality(nil, 15*time.Minute, now)

	if report.Valid {
		t.Fatal("empty series must be invalid")
	}
	if len(report.Issues) != 1 || report.Issues[0] != "series is empty" {
		t.Errorf("unexpected issues: %v", report.Issues)
	}
}

func TestQualityFlagsSyntheticBars(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	bars := freshBars(20, now)
	bars[3].Synthetic = true

	report := ValidateQuality(bars, 15*time.Minute, now)
	if report.Valid || !report.HasMockData {
		t.Fatalf("synthetic bars must invalidate: %+v", report)
	}
}

func TestQualityStaleness(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	bars := makeBars(20, now.Add(-2*time.Hour), time.Minute)

	report := ValidateQuality(bars, 15*time.Minute, now)
	if report.Valid {
		t.Fatal("two-hour-old series must be stale")
	}
	found := false
	for _, issue := range report.Issues {
		if strings.HasPrefix(issue, "stale data:") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a staleness issue, got %v", report.Issues)
	}
	if report.AgeMs < 15*60*1000 {
		t.Errorf("unexpected age: %d", report.AgeMs)
	}
}

func TestQualityOHLCWindowChecks(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	t.Run("high_below_low_in_window", func(t *testing.T) {
		bars := freshBars(30, now)
		i := len(bars) - 2
		bars[i].High, bars[i].Low = bars[i].Low, bars[i].High+5

		report := ValidateQuality(bars, 15*time.Minute, now)
		if report.Valid {
			t.Fatal("inverted high/low must invalidate")
		}
	})

	t.Run("high_below_low_outside_window", func(t *testing.T) {
		bars := freshBars(30, now)
		// Corruption older than the trailing window is not inspected.
		bars[2].High, bars[2].Low = bars[2].Low, bars[2].High+5

		report := ValidateQuality(bars, 15*time.Minute, now)
		if !report.Valid {
			t.Fatalf("old corruption should pass the trailing check, got %v", report.Issues)
		}
	})

	t.Run("non_positive_price", func(t *testing.T) {
		bars := freshBars(30, now)
		bars[len(bars)-1].Close = 0
		// keep high >= low consistent
		report := ValidateQuality(bars, 15*time.Minute, now)
		if report.Valid {
			t.Fatal("zero close must invalidate")
		}
	})
}

func TestQualityFlatSeries(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	bars := freshBars(30, now)
	for i := len(bars) - ohlcWindow; i < len(bars); i++ {
		bars[i].Close = 123.45
	}

	report := ValidateQuality(bars, 15*time.Minute, now)
	if report.Valid {
		t.Fatal("flat closes must invalidate")
	}

	// A short series never triggers the flatline check.
	short := freshBars(5, now)
	for i := range short {
		short[i].Close = 50
	}
	report = ValidateQuality(short, 15*time.Minute, now)
	for _, issue := range report.Issues {
		if strings.HasPrefix(issue, "flat series") {
			t.Errorf("flat check should need %d bars, got issue on %d", ohlcWindow, len(short))
		}
	}
}

func TestQualityCollectsMultipleIssues(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	bars := makeBars(20, now.Add(-2*time.Hour), time.Minute)
	bars[0].Synthetic = true
	bars[len(bars)-1].High = 1
	bars[len(bars)-1].Low = 2

	report := ValidateQuality(bars, 15*time.Minute, now)
	if report.Valid {
		t.Fatal("expected invalid")
	}
	if len(report.Issues) < 3 {
		t.Errorf("expected synthetic+stale+ohlc issues, got %v", report.Issues)
	}
}
