package observ

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

type registry struct {
	mu       sync.Mutex
	counters map[string]map[string]int64   // name -> labelsKey -> count
	gauges   map[string]map[string]float64 // name -> labelsKey -> value
	hist     map[string]map[string][]float64
}

var reg = &registry{
	counters: map[string]map[string]int64{},
	gauges:   map[string]map[string]float64{},
	hist:     map[string]map[string][]float64{},
}

// canonicalize label map so key order is stable
func canonLabels(lbl map[string]string) string {
	if len(lbl) == 0 {
		return ""
	}
	keys := make([]string, 0, len(lbl))
	for k := range lbl {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(lbl[k])
	}
	return b.String()
}

func IncCounter(name string, labels map[string]string) {
	IncCounterBy(name, labels, 1.0)
}

func IncCounterBy(name string, labels map[string]string, value float64) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.counters[name]
	if !ok {
		m = map[string]int64{}
		reg.counters[name] = m
	}
	k := canonLabels(labels)
	m[k] += int64(value)
}

func SetGauge(name string, value float64, labels map[string]string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.gauges[name]
	if !ok {
		m = map[string]float64{}
		reg.gauges[name] = m
	}
	k := canonLabels(labels)
	m[k] = value
}

func Observe(name string, value float64, labels map[string]string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	m, ok := reg.hist[name]
	if !ok {
		m = map[string][]float64{}
		reg.hist[name] = m
	}
	k := canonLabels(labels)
	m[k] = append(m[k], value)
}

// RecordDuration records a latency observation in milliseconds.
func RecordDuration(name string, duration time.Duration, labels map[string]string) {
	Observe(name+"_ms", float64(duration.Milliseconds()), labels)
}

// CounterValue sums a counter across all label sets. Used by tests and the
// health summary; not meant for hot paths.
func CounterValue(name string) int64 {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	var total int64
	for _, v := range reg.counters[name] {
		total += v
	}
	return total
}

// ResetForTest clears all recorded telemetry.
func ResetForTest() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.counters = map[string]map[string]int64{}
	reg.gauges = map[string]map[string]float64{}
	reg.hist = map[string]map[string][]float64{}
}

// Basic text/JSON dump for quick checks (not Prometheus format on purpose)
func Handler() http.Handler {
	type dump struct {
		Counters map[string]map[string]int64     `json:"counters"`
		Gauges   map[string]map[string]float64   `json:"gauges"`
		Hist     map[string]map[string][]float64 `json:"histograms"`
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reg.mu.Lock()
		defer reg.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dump{Counters: reg.counters, Gauges: reg.gauges, Hist: reg.hist})
	})
}

// HealthSummary captures the handful of numbers worth putting on a /health
// response: fetch success rate, cache effectiveness, and provider trouble.
type HealthSummary struct {
	Uptime          string  `json:"uptime"`
	FetchRequests   int64   `json:"fetch_requests"`
	FetchErrors     int64   `json:"fetch_errors"`
	SuccessRate     float64 `json:"success_rate"`
	CacheHitRate    float64 `json:"cache_hit_rate"`
	BreakerRejects  int64   `json:"breaker_rejects"`
	BackoffRejects  int64   `json:"backoff_rejects"`
	RefreshFailures int64   `json:"refresh_failures"`
}

var startTime = time.Now()

// Summary computes the health summary from the live registry.
func Summary() HealthSummary {
	s := HealthSummary{
		Uptime:          time.Since(startTime).String(),
		FetchRequests:   CounterValue("provider_requests_total"),
		FetchErrors:     CounterValue("provider_errors_total"),
		BreakerRejects:  CounterValue("breaker_skipped_total"),
		BackoffRejects:  CounterValue("backoff_rejected_total"),
		RefreshFailures: CounterValue("background_refresh_failures_total"),
	}
	if s.FetchRequests > 0 {
		s.SuccessRate = float64(s.FetchRequests-s.FetchErrors) / float64(s.FetchRequests)
	}
	hits := CounterValue("cache_hits_total")
	misses := CounterValue("cache_misses_total")
	if hits+misses > 0 {
		s.CacheHitRate = float64(hits) / float64(hits+misses)
	}
	return s
}
