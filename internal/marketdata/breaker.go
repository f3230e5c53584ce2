package marketdata

import (
	"sync"
	"time"

	"github.com/prophetlabs/prophet-engine/internal/observ"
)

// BreakerState is the circuit state for one provider.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

// BreakerRecord tracks consecutive failures for one provider identity. The
// record is shared across every key routed through that provider: it models
// upstream health, not per-symbol health.
type BreakerRecord struct {
	ConsecutiveFailures int
	LastFailureAt       time.Time
	OpenUntil           time.Time
	probing             bool
}

// CircuitBreaker holds per-provider breaker records. Once a provider crosses
// the failure threshold it is held open for an exponentially growing window,
// then allowed exactly one probe request.
type CircuitBreaker struct {
	mu           sync.Mutex
	records      map[string]*BreakerRecord
	threshold    int
	recoveryBase time.Duration
	recoveryCap  time.Duration
	now          func() time.Time
}

// BreakerStatus is the externally visible state of one provider's breaker.
type BreakerStatus struct {
	Failures  int    `json:"failures"`
	IsOpen    bool   `json:"is_open"`
	OpenUntil int64  `json:"open_until,omitempty"` // epoch ms, zero when closed
	State     string `json:"state"`
}

// NewCircuitBreaker creates a breaker with the given threshold and recovery
// window parameters.
func NewCircuitBreaker(threshold int, recoveryBase, recoveryCap time.Duration) *CircuitBreaker {
	if threshold < 1 {
		threshold = 1
	}
	return &CircuitBreaker{
		records:      make(map[string]*BreakerRecord),
		threshold:    threshold,
		recoveryBase: recoveryBase,
		recoveryCap:  recoveryCap,
		now:          time.Now,
	}
}

// IsAvailable reports whether the provider may be called. Closed providers are
// always available. An open provider becomes half-open once its window
// elapses; the first caller to observe that claims the single probe slot, and
// subsequent callers are refused until the probe reports back.
func (cb *CircuitBreaker) IsAvailable(provider string) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	rec, ok := cb.records[provider]
	if !ok || rec.ConsecutiveFailures < cb.threshold {
		return true
	}
	if cb.now().Before(rec.OpenUntil) {
		return false
	}
	// Half-open: one probe at a time.
	if rec.probing {
		return false
	}
	rec.probing = true
	observ.IncCounter("breaker_probes_total", map[string]string{"provider": provider})
	return true
}

// RecordSuccess closes the circuit for provider by deleting its record.
func (cb *CircuitBreaker) RecordSuccess(provider string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	rec, ok := cb.records[provider]
	if !ok {
		return
	}
	if rec.ConsecutiveFailures >= cb.threshold {
		observ.Log("breaker_closed", map[string]any{
			"provider": provider,
			"failures": rec.ConsecutiveFailures,
		})
	}
	delete(cb.records, provider)
}

// RecordFailure bumps the provider's consecutive failure count and, at or past
// the threshold, opens the circuit for min(base*2^min(excess,3), cap) where
// excess counts failures beyond the threshold.
func (cb *CircuitBreaker) RecordFailure(provider string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	rec, ok := cb.records[provider]
	if !ok {
		rec = &BreakerRecord{}
		cb.records[provider] = rec
	}
	rec.ConsecutiveFailures++
	rec.LastFailureAt = cb.now()
	rec.probing = false

	if rec.ConsecutiveFailures < cb.threshold {
		return
	}
	excess := rec.ConsecutiveFailures - cb.threshold
	if excess > 3 {
		excess = 3
	}
	window := cb.recoveryBase << uint(excess)
	if window > cb.recoveryCap {
		window = cb.recoveryCap
	}
	rec.OpenUntil = rec.LastFailureAt.Add(window)
	observ.Log("breaker_opened", map[string]any{
		"provider":   provider,
		"failures":   rec.ConsecutiveFailures,
		"open_until": rec.OpenUntil.UTC().Format(time.RFC3339),
	})
	observ.IncCounter("breaker_opened_total", map[string]string{"provider": provider})
}

// State reports the current circuit state for provider.
func (cb *CircuitBreaker) State(provider string) BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	rec, ok := cb.records[provider]
	if !ok || rec.ConsecutiveFailures < cb.threshold {
		return BreakerClosed
	}
	if cb.now().Before(rec.OpenUntil) {
		return BreakerOpen
	}
	return BreakerHalfOpen
}

// Snapshot returns per-provider breaker status for diagnostics.
func (cb *CircuitBreaker) Snapshot() map[string]BreakerStatus {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	out := make(map[string]BreakerStatus, len(cb.records))
	now := cb.now()
	for provider, rec := range cb.records {
		open := rec.ConsecutiveFailures >= cb.threshold && now.Before(rec.OpenUntil)
		st := BreakerClosed
		if rec.ConsecutiveFailures >= cb.threshold {
			st = BreakerHalfOpen
			if open {
				st = BreakerOpen
			}
		}
		status := BreakerStatus{
			Failures: rec.ConsecutiveFailures,
			IsOpen:   open,
			State:    string(st),
		}
		if rec.ConsecutiveFailures >= cb.threshold {
			status.OpenUntil = rec.OpenUntil.UnixMilli()
		}
		out[provider] = status
	}
	return out
}

// Reset drops every breaker record.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.records = make(map[string]*BreakerRecord)
}
