package marketdata

import "time"

// setClock pins the service and every component it owns to a single clock.
// Tests use it to step through TTL, backoff, and breaker windows without
// sleeping.
func (s *Service) setClock(now func() time.Time) {
	s.now = now
	s.cache.now = now
	s.failures.now = now
	s.breaker.now = now
	s.chain.now = now
}
