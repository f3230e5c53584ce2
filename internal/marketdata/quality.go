package marketdata

import (
	"fmt"
	"time"
)

// ohlcWindow bounds how many trailing bars the sanity checks inspect, and
// doubles as the flat-close window.
const ohlcWindow = 10

// QualityReport is the structured result of a data quality pass. It is advice
// for the caller, never an error: degraded data still gets delivered.
type QualityReport struct {
	Valid         bool     `json:"valid"`
	Issues        []string `json:"issues"`
	BarCount      int      `json:"bar_count"`
	LastTimestamp int64    `json:"last_timestamp"`
	AgeMs         int64    `json:"age_ms"`
	HasMockData   bool     `json:"has_mock_data"`
}

// ValidateQuality runs stateless sanity checks over a bar series: presence,
// synthetic contamination, recency, OHLC shape over the trailing window, and
// a flatline heuristic. It flags problems and never panics or errors.
func ValidateQuality(bars []Bar, maxStaleness time.Duration, now time.Time) QualityReport {
	report := QualityReport{Valid: true, Issues: []string{}, BarCount: len(bars)}

	if len(bars) == 0 {
		report.Valid = false
		report.Issues = append(report.Issues, "series is empty")
		return report
	}

	for _, b := range bars {
		if b.Synthetic {
			report.HasMockData = true
			report.Valid = false
			report.Issues = append(report.Issues, "series contains synthetic bars")
			break
		}
	}

	last := bars[len(bars)-1]
	report.LastTimestamp = last.Timestamp
	report.AgeMs = now.UnixMilli() - last.Timestamp
	if report.AgeMs > maxStaleness.Milliseconds() {
		report.Valid = false
		report.Issues = append(report.Issues,
			fmt.Sprintf("stale data: most recent bar is %dms old (limit %dms)", report.AgeMs, maxStaleness.Milliseconds()))
	}

	start := len(bars) - ohlcWindow
	if start < 0 {
		start = 0
	}
	for i := start; i < len(bars); i++ {
		b := bars[i]
		if b.High < b.Low {
			report.Valid = false
			report.Issues = append(report.Issues,
				fmt.Sprintf("high < low at bar %d (high=%.4f low=%.4f)", i, b.High, b.Low))
		}
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			report.Valid = false
			report.Issues = append(report.Issues,
				fmt.Sprintf("non-positive price at bar %d", i))
		}
	}

	if len(bars) >= ohlcWindow && allClosesEqual(bars[len(bars)-ohlcWindow:]) {
		report.Valid = false
		report.Issues = append(report.Issues,
			fmt.Sprintf("flat series: last %d closes are identical", ohlcWindow))
	}

	return report
}

func allClosesEqual(bars []Bar) bool {
	for i := 1; i < len(bars); i++ {
		if bars[i].Close != bars[0].Close {
			return false
		}
	}
	return true
}
