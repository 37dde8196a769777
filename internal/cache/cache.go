// Package cache implements a time-bounded in-memory key/value store.
//
// Entries expire a fixed duration after they are written. There is no size bound and no LRU policy:
// an expired entry is logically absent as soon as its deadline passes, is removed lazily by [Cache.Get],
// and is physically reclaimed by the background sweep started with [Cache.Start].
package cache

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunefeed/internal/shared"
)

const (
	DefaultTTL           = 24 * time.Hour
	DefaultSweepInterval = time.Hour
)

// Recorder receives cache events. The metrics package provides a Prometheus implementation.
type Recorder interface {
	Hit()
	Miss()
	Expire()
	Sweep(removed int)
}

type noopRecorder struct{}

func (noopRecorder) Hit()      {}
func (noopRecorder) Miss()     {}
func (noopRecorder) Expire()   {}
func (noopRecorder) Sweep(int) {}

// Entry is a stored value with its lifecycle timestamps.
type Entry[V any] struct {
	Key            string
	Data           V
	CreatedAt      time.Time
	ExpiresAt      time.Time
	LastAccessedAt time.Time
}

func (e *Entry[V]) expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Stats is a diagnostic snapshot. It may race with concurrent writers and is advisory only.
type Stats struct {
	TotalItems   int           `json:"totalItems"`
	ExpiredItems int           `json:"expiredItems"`
	OldestAge    time.Duration `json:"oldestAge"`
	NewestAge    time.Duration `json:"newestAge"`
}

// Options configures a [Cache]. Zero values fall back to package defaults.
type Options struct {
	DefaultTTL    time.Duration
	SweepInterval time.Duration
	Now           func() time.Time
	Recorder      Recorder
	Logger        *log.Logger
}

// Cache is a generic TTL cache safe for concurrent use.
type Cache[V any] struct {
	mu      sync.Mutex
	entries map[string]*Entry[V]

	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	recorder Recorder
	logger   *log.Logger

	lifecycle sync.Mutex
	stop      chan struct{}
	done      chan struct{}
}

// New creates a cache. The sweep is not running until [Cache.Start] is called.
func New[V any](opts Options) *Cache[V] {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = DefaultTTL
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Recorder == nil {
		opts.Recorder = noopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Cache[V]{
		entries:  make(map[string]*Entry[V]),
		ttl:      opts.DefaultTTL,
		interval: opts.SweepInterval,
		now:      opts.Now,
		recorder: opts.Recorder,
		logger:   opts.Logger,
	}
}

// Get returns the stored value when present and unexpired.
//
// An expired entry is deleted as a side effect.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		c.recorder.Miss()
		return zero, false
	}

	if ent.expired(now) {
		delete(c.entries, key)
		c.recorder.Expire()
		c.recorder.Miss()
		return zero, false
	}

	ent.LastAccessedAt = now
	c.recorder.Hit()
	return ent.Data, true
}

// Set stores data under key with the default TTL.
func (c *Cache[V]) Set(key string, data V) {
	c.SetWithTTL(key, data, c.ttl)
}

// SetWithTTL stores data under key, replacing any existing entry. A non-positive ttl uses the default.
func (c *Cache[V]) SetWithTTL(key string, data V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &Entry[V]{
		Key:            key,
		Data:           data,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		LastAccessedAt: now,
	}
}

// Delete removes key and reports whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*Entry[V])
}

// Len returns the number of physically stored entries, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Stats returns a snapshot of the entry count and ages.
func (c *Cache[V]) Stats() Stats {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	var stats Stats
	var oldest, newest time.Time
	for _, ent := range c.entries {
		stats.TotalItems++
		if ent.expired(now) {
			stats.ExpiredItems++
		}
		if oldest.IsZero() || ent.CreatedAt.Before(oldest) {
			oldest = ent.CreatedAt
		}
		if newest.IsZero() || ent.CreatedAt.After(newest) {
			newest = ent.CreatedAt
		}
	}

	if stats.TotalItems > 0 {
		stats.OldestAge = now.Sub(oldest)
		stats.NewestAge = now.Sub(newest)
	}
	return stats
}

// Sweep deletes every entry whose deadline has passed and returns how many were removed.
func (c *Cache[V]) Sweep() int {
	now := c.now()

	c.mu.Lock()
	removed := 0
	for key, ent := range c.entries {
		if ent.expired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	c.mu.Unlock()

	c.recorder.Sweep(removed)
	if removed > 0 {
		c.logger.Debug("cache sweep completed", "removed", removed)
	}
	return removed
}

// Start launches the periodic sweep. Calling Start on a running cache is a no-op.
func (c *Cache[V]) Start() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if c.stop != nil {
		return
	}

	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.sweepLoop(c.stop, c.done)
}

// Stop halts the periodic sweep and waits for it to exit. Safe to call more than once.
func (c *Cache[V]) Stop() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	if c.stop == nil {
		return
	}

	close(c.stop)
	<-c.done
	c.stop, c.done = nil, nil
}

func (c *Cache[V]) sweepLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
