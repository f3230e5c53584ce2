package marketdata

import (
	"sync"
	"time"
)

// FailureRecord tracks an unbroken run of fetch failures for one resource key.
type FailureRecord struct {
	FailedAt  time.Time
	LastError string
	Attempts  int
}

// FailureTracker keeps per-key exponential backoff state. Backoff is keyed by
// resource (symbol+timeframe), independent of which provider failed; provider
// health is the circuit breaker's job.
type FailureTracker struct {
	mu      sync.Mutex
	records map[string]FailureRecord
	base    time.Duration
	cap     time.Duration
	now     func() time.Time
}

// NewFailureTracker creates a tracker with the given backoff base and cap.
func NewFailureTracker(base, cap time.Duration) *FailureTracker {
	return &FailureTracker{
		records: make(map[string]FailureRecord),
		base:    base,
		cap:     cap,
		now:     time.Now,
	}
}

// OnFailure bumps the attempt count for key and restarts its backoff window.
func (ft *FailureTracker) OnFailure(key string, err error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	rec := ft.records[key]
	rec.Attempts++
	rec.FailedAt = ft.now()
	if err != nil {
		rec.LastError = err.Error()
	}
	ft.records[key] = rec
}

// OnSuccess deletes the failure record for key, resetting its backoff.
func (ft *FailureTracker) OnSuccess(key string) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	delete(ft.records, key)
}

// BackoffRemaining returns how long the key must still wait before the next
// upstream fetch. Zero means no backoff is active.
func (ft *FailureTracker) BackoffRemaining(key string) time.Duration {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	rec, ok := ft.records[key]
	if !ok {
		return 0
	}
	wait := ft.waitFor(rec.Attempts)
	remaining := wait - ft.now().Sub(rec.FailedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// waitFor computes min(base * 2^(attempts-1), cap).
func (ft *FailureTracker) waitFor(attempts int) time.Duration {
	if attempts < 1 {
		return 0
	}
	// Shifting past ~30 doublings is always over any sane cap.
	if attempts-1 > 30 {
		return ft.cap
	}
	wait := ft.base << uint(attempts-1)
	if wait > ft.cap || wait <= 0 {
		return ft.cap
	}
	return wait
}

// Record returns the failure record for key, if one exists.
func (ft *FailureTracker) Record(key string) (FailureRecord, bool) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	rec, ok := ft.records[key]
	return rec, ok
}

// Len reports how many keys currently have failure records.
func (ft *FailureTracker) Len() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return len(ft.records)
}

// Reset drops every failure record.
func (ft *FailureTracker) Reset() {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.records = make(map[string]FailureRecord)
}
