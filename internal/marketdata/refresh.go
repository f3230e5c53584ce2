package marketdata

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/prophetlabs/prophet-engine/internal/observ"
)

// RefreshCoordinator guarantees at most one concurrent background refresh per
// key. The fetch itself runs through a singleflight group shared with the
// foreground path, so a foreground fetch landing during a refresh coalesces
// into it instead of hitting upstream twice.
type RefreshCoordinator struct {
	mu       sync.Mutex
	inflight map[string]struct{}
	sf       *singleflight.Group
}

// NewRefreshCoordinator creates a coordinator using the given flight group.
func NewRefreshCoordinator(sf *singleflight.Group) *RefreshCoordinator {
	return &RefreshCoordinator{
		inflight: make(map[string]struct{}),
		sf:       sf,
	}
}

// Schedule runs fetch asynchronously unless a refresh for key is already in
// flight. The caller never blocks on fetch. On success onSuccess receives the
// fetched payload; failures are logged and swallowed. Returns whether a new
// refresh was started.
func (rc *RefreshCoordinator) Schedule(key string, fetch func() (any, error), onSuccess func(any)) bool {
	rc.mu.Lock()
	if _, busy := rc.inflight[key]; busy {
		rc.mu.Unlock()
		return false
	}
	rc.inflight[key] = struct{}{}
	rc.mu.Unlock()

	observ.IncCounter("background_refresh_started_total", nil)
	go func() {
		v, err, _ := rc.sf.Do(key, fetch)

		rc.mu.Lock()
		delete(rc.inflight, key)
		rc.mu.Unlock()

		if err != nil {
			observ.IncCounter("background_refresh_failures_total", nil)
			observ.Log("background_refresh_failed", map[string]any{
				"key":   key,
				"error": err.Error(),
			})
			return
		}
		onSuccess(v)
	}()
	return true
}

// Pending reports how many keys have an in-flight refresh.
func (rc *RefreshCoordinator) Pending() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.inflight)
}
