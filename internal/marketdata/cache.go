package marketdata

import (
	"container/list"
	"sync"
	"time"

	"github.com/prophetlabs/prophet-engine/internal/observ"
)

// Entry is a cached payload plus the time it was written.
type Entry struct {
	Payload   any
	WrittenAt time.Time
}

type cacheItem struct {
	key       string
	payload   any
	writtenAt time.Time
}

// TimestampedCache is a bounded key -> (payload, writeTime) store. Eviction is
// by write order: the oldest-written entry goes first, and rewriting a key
// moves it to the most-recently-written position. Reads never touch the order,
// so this is deliberately not an access-aware LRU.
type TimestampedCache struct {
	mu      sync.RWMutex
	max     int
	entries map[string]*list.Element
	order   *list.List // front = oldest written
	now     func() time.Time
}

// NewTimestampedCache creates a cache bounded to max entries.
func NewTimestampedCache(max int) *TimestampedCache {
	if max <= 0 {
		max = 1
	}
	return &TimestampedCache{
		max:     max,
		entries: make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

// Get returns the entry for key, if present. It does not refresh the key's
// position in the eviction order.
func (c *TimestampedCache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	el, ok := c.entries[key]
	if !ok {
		observ.IncCounter("cache_misses_total", nil)
		return Entry{}, false
	}
	observ.IncCounter("cache_hits_total", nil)
	item := el.Value.(*cacheItem)
	return Entry{Payload: item.payload, WrittenAt: item.writtenAt}, true
}

// Set writes the payload under key and evicts oldest-written entries until the
// cache is back within its bound.
func (c *TimestampedCache) Set(key string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.entries[key]; ok {
		item := el.Value.(*cacheItem)
		item.payload = payload
		item.writtenAt = now
		c.order.MoveToBack(el)
		return
	}

	c.entries[key] = c.order.PushBack(&cacheItem{key: key, payload: payload, writtenAt: now})

	evicted := 0
	for c.order.Len() > c.max {
		front := c.order.Front()
		item := front.Value.(*cacheItem)
		c.order.Remove(front)
		delete(c.entries, item.key)
		evicted++
	}
	if evicted > 0 {
		observ.IncCounterBy("cache_evictions_total", nil, float64(evicted))
	}
	observ.SetGauge("cache_size", float64(c.order.Len()), nil)
}

// Len reports the current number of entries.
func (c *TimestampedCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}

// Reset drops every entry.
func (c *TimestampedCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order = list.New()
	observ.SetGauge("cache_size", 0, nil)
}
