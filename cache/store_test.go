package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestStore_SetGet(t *testing.T) {
	s := NewStore()
	s.Set("a", 1, time.Minute)

	v, ok := s.Get("a")
	if !ok {
		t.Fatal("expected hit")
	}
	if v != 1 {
		t.Errorf("expected 1, got %v", v)
	}

	if _, ok := s.Get("missing"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestStore_TTLExpiry(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(WithClock(clock.Now))

	s.Set("invoices:2024", "data", 60*time.Second)

	clock.Advance(59 * time.Second)
	if _, ok := s.Get("invoices:2024"); !ok {
		t.Fatal("expected hit before TTL")
	}

	clock.Advance(2 * time.Second)
	if _, ok := s.Get("invoices:2024"); ok {
		t.Fatal("expected miss after TTL")
	}
	if got := s.Stats().Size; got != 0 {
		t.Errorf("expected expired entry removed on read, size %d", got)
	}
}

func TestStore_NonPositiveTTLNeverExpires(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(WithClock(clock.Now))

	s.Set("zero", 1, 0)
	s.Set("neg", 2, -time.Second)
	clock.Advance(365 * 24 * time.Hour)

	if _, ok := s.Get("zero"); !ok {
		t.Error("expected zero TTL entry to persist")
	}
	if _, ok := s.Get("neg"); !ok {
		t.Error("expected negative TTL entry to persist")
	}
}

func TestStore_CapacityBound(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(WithCapacity(20), WithClock(clock.Now))

	for i := 0; i < 100; i++ {
		clock.Advance(time.Millisecond)
		s.Set(fmt.Sprintf("k%d", i), i, 0)
		if size := s.Stats().Size; size > 20 {
			t.Fatalf("size %d exceeds capacity after insert %d", size, i)
		}
	}
}

func TestStore_EvictsLeastRecentlyAccessed(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(WithCapacity(10), WithClock(clock.Now))

	for i := 0; i < 10; i++ {
		clock.Advance(time.Second)
		s.Set(fmt.Sprintf("k%d", i), i, 0)
	}
	// Touch k0 so k1 becomes the oldest.
	clock.Advance(time.Second)
	s.Get("k0")

	clock.Advance(time.Second)
	s.Set("new", 99, 0)

	if _, ok := s.Get("k1"); ok {
		t.Error("expected oldest entry k1 to be evicted")
	}
	if _, ok := s.Get("k0"); !ok {
		t.Error("expected recently read k0 to survive")
	}
	if _, ok := s.Get("new"); !ok {
		t.Error("expected new entry to be stored")
	}
	if got := s.Stats().Size; got != 10 {
		t.Errorf("expected size 10, got %d", got)
	}
}

func TestStore_EvictPrefersExpired(t *testing.T) {
	clock := newFakeClock()
	s := NewStore(WithCapacity(4), WithClock(clock.Now))

	s.Set("short1", 1, time.Second)
	s.Set("short2", 2, time.Second)
	s.Set("long1", 3, time.Hour)
	s.Set("long2", 4, time.Hour)

	clock.Advance(2 * time.Second)
	if got := s.Stats().Expired; got != 2 {
		t.Errorf("expected 2 expired entries, got %d", got)
	}

	s.Set("new", 5, time.Hour)

	for _, k := range []string{"long1", "long2", "new"} {
		if _, ok := s.Get(k); !ok {
			t.Errorf("expected %s to survive eviction", k)
		}
	}
	if got := s.Stats().Size; got != 3 {
		t.Errorf("expected size 3, got %d", got)
	}
}

func TestStore_OverwriteAtCapacityDoesNotEvict(t *testing.T) {
	s := NewStore(WithCapacity(2))
	s.Set("a", 1, 0)
	s.Set("b", 2, 0)
	s.Set("a", 10, 0)

	if got := s.Stats().Size; got != 2 {
		t.Fatalf("expected size 2, got %d", got)
	}
	if v, _ := s.Get("a"); v != 10 {
		t.Errorf("expected overwritten value 10, got %v", v)
	}
	if _, ok := s.Get("b"); !ok {
		t.Error("expected b to survive overwrite of a")
	}
}

func TestStore_DeleteClearPrefix(t *testing.T) {
	s := NewStore()
	s.Set("invoices:1", 1, 0)
	s.Set("invoices:2", 2, 0)
	s.Set("invoicesx:3", 3, 0)
	s.Set("reports:1", 4, 0)

	s.Delete("reports:1")
	if _, ok := s.Get("reports:1"); ok {
		t.Error("expected deleted key to be absent")
	}

	if n := s.DeletePrefix("invoices:"); n != 2 {
		t.Errorf("expected 2 removed, got %d", n)
	}
	if keys := s.Keys(); len(keys) != 1 || keys[0] != "invoicesx:3" {
		t.Errorf("expected only invoicesx:3 left, got %v", keys)
	}

	s.Clear()
	if st := s.Stats(); st.Size != 0 || st.Capacity != DefaultCapacity {
		t.Errorf("unexpected stats after clear: %+v", st)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore(WithCapacity(50))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("g%d:%d", g, i%30)
				s.Set(key, i, time.Minute)
				s.Get(key)
				if i%50 == 0 {
					s.Evict()
				}
			}
		}(g)
	}
	wg.Wait()

	if size := s.Stats().Size; size > 50 {
		t.Errorf("size %d exceeds capacity", size)
	}
}
