package cache

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/tunefeed/internal/shared"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

type countingRecorder struct {
	mu      sync.Mutex
	hits    int
	misses  int
	expired int
	swept   int
}

func (r *countingRecorder) Hit()    { r.mu.Lock(); r.hits++; r.mu.Unlock() }
func (r *countingRecorder) Miss()   { r.mu.Lock(); r.misses++; r.mu.Unlock() }
func (r *countingRecorder) Expire() { r.mu.Lock(); r.expired++; r.mu.Unlock() }
func (r *countingRecorder) Sweep(n int) {
	r.mu.Lock()
	r.swept += n
	r.mu.Unlock()
}

func newTestCache(clock *fakeClock, rec Recorder) *Cache[string] {
	return New[string](Options{
		DefaultTTL: time.Hour,
		Now:        clock.Now,
		Recorder:   rec,
		Logger:     shared.NewLogger(io.Discard),
	})
}

func TestCache(t *testing.T) {
	t.Run("Set then Get returns value", func(t *testing.T) {
		clock := newFakeClock()
		c := newTestCache(clock, nil)

		for _, ttl := range []time.Duration{time.Millisecond, time.Second, 24 * time.Hour} {
			c.SetWithTTL("k", "v", ttl)
			got, ok := c.Get("k")
			if !ok || got != "v" {
				t.Errorf("ttl %v: expected hit with v, got %q ok=%v", ttl, got, ok)
			}
		}
	})

	t.Run("Get after TTL is absent and deletes the entry", func(t *testing.T) {
		clock := newFakeClock()
		rec := &countingRecorder{}
		c := newTestCache(clock, rec)

		c.SetWithTTL("k", "v", 10*time.Second)
		clock.Advance(10*time.Second + time.Nanosecond)

		if _, ok := c.Get("k"); ok {
			t.Fatal("expected expired entry to be absent")
		}
		if c.Len() != 0 {
			t.Errorf("expected expired entry to be removed, len=%d", c.Len())
		}
		if rec.expired != 1 || rec.misses != 1 {
			t.Errorf("expected one expire and one miss, got %+v", rec)
		}
	})

	t.Run("Set uses default TTL", func(t *testing.T) {
		clock := newFakeClock()
		c := newTestCache(clock, nil)

		c.Set("k", "v")
		clock.Advance(59 * time.Minute)
		if _, ok := c.Get("k"); !ok {
			t.Fatal("expected entry alive before default ttl")
		}
		clock.Advance(2 * time.Minute)
		if _, ok := c.Get("k"); ok {
			t.Fatal("expected entry expired after default ttl")
		}
	})

	t.Run("non-positive ttl falls back to default", func(t *testing.T) {
		clock := newFakeClock()
		c := newTestCache(clock, nil)

		c.SetWithTTL("k", "v", 0)
		clock.Advance(30 * time.Minute)
		if _, ok := c.Get("k"); !ok {
			t.Fatal("expected default ttl to apply")
		}
	})

	t.Run("Set overwrites unconditionally", func(t *testing.T) {
		clock := newFakeClock()
		c := newTestCache(clock, nil)

		c.SetWithTTL("k", "old", time.Second)
		c.SetWithTTL("k", "new", time.Hour)
		clock.Advance(2 * time.Second)

		got, ok := c.Get("k")
		if !ok || got != "new" {
			t.Errorf("expected overwritten value with new ttl, got %q ok=%v", got, ok)
		}
	})

	t.Run("Get updates last access", func(t *testing.T) {
		clock := newFakeClock()
		c := newTestCache(clock, nil)

		c.Set("k", "v")
		clock.Advance(time.Minute)
		c.Get("k")

		c.mu.Lock()
		ent := c.entries["k"]
		c.mu.Unlock()
		if !ent.LastAccessedAt.Equal(clock.Now()) {
			t.Errorf("expected last access %v, got %v", clock.Now(), ent.LastAccessedAt)
		}
		if !ent.ExpiresAt.After(ent.CreatedAt) {
			t.Error("expected expiresAt after createdAt")
		}
	})

	t.Run("Delete and Clear", func(t *testing.T) {
		clock := newFakeClock()
		c := newTestCache(clock, nil)

		c.Set("a", "1")
		c.Set("b", "2")

		if !c.Delete("a") {
			t.Error("expected delete of existing key to report true")
		}
		if c.Delete("a") {
			t.Error("expected delete of missing key to report false")
		}

		c.Clear()
		if c.Len() != 0 {
			t.Errorf("expected empty cache after clear, len=%d", c.Len())
		}
	})

	t.Run("Stats", func(t *testing.T) {
		clock := newFakeClock()
		c := newTestCache(clock, nil)

		if stats := c.Stats(); stats != (Stats{}) {
			t.Errorf("expected zero stats for empty cache, got %+v", stats)
		}

		c.SetWithTTL("old", "1", time.Minute)
		clock.Advance(2 * time.Minute)
		c.SetWithTTL("new", "2", time.Hour)
		clock.Advance(time.Minute)

		stats := c.Stats()
		if stats.TotalItems != 2 {
			t.Errorf("expected 2 items, got %d", stats.TotalItems)
		}
		if stats.ExpiredItems != 1 {
			t.Errorf("expected 1 expired item, got %d", stats.ExpiredItems)
		}
		if stats.OldestAge != 3*time.Minute {
			t.Errorf("expected oldest age 3m, got %v", stats.OldestAge)
		}
		if stats.NewestAge != time.Minute {
			t.Errorf("expected newest age 1m, got %v", stats.NewestAge)
		}
	})

	t.Run("Sweep", func(t *testing.T) {
		clock := newFakeClock()
		rec := &countingRecorder{}
		c := newTestCache(clock, rec)

		c.SetWithTTL("short", "1", time.Second)
		c.SetWithTTL("medium", "2", time.Minute)
		c.SetWithTTL("long", "3", time.Hour)
		clock.Advance(2 * time.Minute)

		if removed := c.Sweep(); removed != 2 {
			t.Errorf("expected 2 removed, got %d", removed)
		}
		if removed := c.Sweep(); removed != 0 {
			t.Errorf("expected second sweep to remove nothing, got %d", removed)
		}
		if c.Len() != 1 {
			t.Errorf("expected 1 remaining entry, got %d", c.Len())
		}
		if rec.swept != 2 {
			t.Errorf("expected recorder to see 2 sweeps, got %d", rec.swept)
		}
	})

	t.Run("Start and Stop", func(t *testing.T) {
		clock := newFakeClock()
		c := New[string](Options{
			DefaultTTL:    time.Second,
			SweepInterval: 5 * time.Millisecond,
			Now:           clock.Now,
			Logger:        shared.NewLogger(io.Discard),
		})

		c.Set("k", "v")
		clock.Advance(time.Minute)

		c.Start()
		c.Start()

		deadline := time.Now().Add(2 * time.Second)
		for c.Len() != 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}

		c.Stop()
		c.Stop()

		if c.Len() != 0 {
			t.Error("expected background sweep to remove expired entry")
		}
	})

	t.Run("concurrent access", func(t *testing.T) {
		clock := newFakeClock()
		c := newTestCache(clock, nil)

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				c.Set("k", "v")
				c.Get("k")
				c.Stats()
				if i%10 == 0 {
					c.Sweep()
				}
			}(i)
		}
		wg.Wait()

		if _, ok := c.Get("k"); !ok {
			t.Error("expected key to be present")
		}
	})
}
