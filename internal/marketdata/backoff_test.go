package marketdata

import (
	"errors"
	"testing"
	"time"
)

func TestBackoffDoublesUpToCap(t *testing.T) {
	ft := NewFailureTracker(30*time.Second, 300*time.Second)
	testCases := []struct {
		attempts int
		want     time.Duration
	}{
		{1, 30 * time.Second},
		{2, 60 * time.Second},
		{3, 120 * time.Second},
		{4, 240 * time.Second},
		{5, 300 * time.Second}, // capped
		{6, 300 * time.Second},
		{50, 300 * time.Second}, // deep shift still capped
	}
	for _, tc := range testCases {
		if got := ft.waitFor(tc.attempts); got != tc.want {
			t.Errorf("waitFor(%d) = %v, want %v", tc.attempts, got, tc.want)
		}
	}
}

func TestBackoffRemainingCountsDown(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	ft := NewFailureTracker(30*time.Second, 300*time.Second)
	ft.now = func() time.Time { return now }

	ft.OnFailure("AAPL_5m", errors.New("boom"))

	if got := ft.BackoffRemaining("AAPL_5m"); got != 30*time.Second {
		t.Fatalf("expected 30s remaining right after failure, got %v", got)
	}
	now = now.Add(20 * time.Second)
	if got := ft.BackoffRemaining("AAPL_5m"); got != 10*time.Second {
		t.Fatalf("expected 10s remaining after 20s, got %v", got)
	}
	now = now.Add(15 * time.Second)
	if got := ft.BackoffRemaining("AAPL_5m"); got != 0 {
		t.Fatalf("expected no backoff after window elapsed, got %v", got)
	}
}

func TestBackoffGrowsAcrossConsecutiveFailures(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	ft := NewFailureTracker(30*time.Second, 300*time.Second)
	ft.now = func() time.Time { return now }

	ft.OnFailure("k", errors.New("one"))
	now = now.Add(time.Minute)
	ft.OnFailure("k", errors.New("two"))

	// Second failure restarts the window at 60s.
	if got := ft.BackoffRemaining("k"); got != 60*time.Second {
		t.Fatalf("expected 60s after second failure, got %v", got)
	}
	rec, ok := ft.Record("k")
	if !ok || rec.Attempts != 2 || rec.LastError != "two" {
		t.Fatalf("unexpected record: %+v ok=%v", rec, ok)
	}
}

func TestBackoffResetOnSuccess(t *testing.T) {
	ft := NewFailureTracker(30*time.Second, 300*time.Second)
	ft.OnFailure("k", errors.New("boom"))
	ft.OnFailure("k", errors.New("boom"))
	ft.OnSuccess("k")

	if got := ft.BackoffRemaining("k"); got != 0 {
		t.Fatalf("expected zero backoff after success, got %v", got)
	}
	// Next failure starts over at the base window.
	ft.OnFailure("k", errors.New("again"))
	rec, _ := ft.Record("k")
	if rec.Attempts != 1 {
		t.Fatalf("expected attempts reset to 1, got %d", rec.Attempts)
	}
}

func TestBackoffKeysAreIndependent(t *testing.T) {
	ft := NewFailureTracker(30*time.Second, 300*time.Second)
	ft.OnFailure("AAPL_5m", errors.New("boom"))

	if got := ft.BackoffRemaining("MSFT_5m"); got != 0 {
		t.Fatalf("unrelated key should have no backoff, got %v", got)
	}
	if ft.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", ft.Len())
	}
}

func TestBackoffUnknownKey(t *testing.T) {
	ft := NewFailureTracker(30*time.Second, 300*time.Second)
	if got := ft.BackoffRemaining("never-seen"); got != 0 {
		t.Fatalf("expected zero for unknown key, got %v", got)
	}
}
