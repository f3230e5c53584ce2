package marketdata

import (
	"fmt"
	"time"
)

// BackoffError is returned when a key is inside its backoff window and no
// cached value of any age exists to serve instead.
type BackoffError struct {
	Key       string
	Remaining time.Duration
}

func (e *BackoffError) Error() string {
	return fmt.Sprintf("backoff active for %s: retry in %s", e.Key, e.Remaining.Round(time.Millisecond))
}

// NewBackoffError creates a BackoffError carrying the remaining wait.
func NewBackoffError(key string, remaining time.Duration) *BackoffError {
	return &BackoffError{Key: key, Remaining: remaining}
}

// UnavailableError is terminal for one request: the whole provider chain was
// exhausted and no cache entry inside the fallback ceiling existed.
type UnavailableError struct {
	Key   string
	Cause error
}

func (e *UnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("data unavailable for %s: %v", e.Key, e.Cause)
	}
	return fmt.Sprintf("data unavailable for %s: all providers skipped", e.Key)
}

func (e *UnavailableError) Unwrap() error { return e.Cause }

// NewUnavailableError creates an UnavailableError with the last chain error.
func NewUnavailableError(key string, cause error) *UnavailableError {
	return &UnavailableError{Key: key, Cause: cause}
}

// ProviderError wraps a single upstream failure. It is recorded against the
// provider's breaker and the key's failure tracker, never surfaced directly.
type ProviderError struct {
	Provider string
	Op       string // "bars" | "price"
	Symbol   string
	Cause    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s %s(%s): %v", e.Provider, e.Op, e.Symbol, e.Cause)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// NewProviderError wraps an upstream fetch failure.
func NewProviderError(provider, op, symbol string, cause error) *ProviderError {
	return &ProviderError{Provider: provider, Op: op, Symbol: symbol, Cause: cause}
}
