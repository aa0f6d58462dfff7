package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLRUEvictionAndTTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](2, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Fatal("least recently used key should be evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a=1, got %d %v", v, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expired key must be absent")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("expected 1 expired entry, got %d", n)
	}
	if c.Size() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Size())
	}
}

func TestDeletePrefix(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)
	c.Set("owner:1:summary", "x")
	c.Set("owner:1:monthly:2024", "y")
	c.Set("owner:12:summary", "z")
	if n := c.DeletePrefix("owner:1:"); n != 2 {
		t.Fatalf("expected 2 removed, got %d", n)
	}
	if _, ok := c.Get("owner:12:summary"); !ok {
		t.Fatal("other owner must survive")
	}
}

func TestLoaderCollapsesConcurrentMisses(t *testing.T) {
	l := NewLoader[int](NewLRUCache[int](10, time.Minute))
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := l.Get(context.Background(), "k", func(context.Context) (int, error) {
				calls.Add(1)
				<-release
				return 42, nil
			})
			if err != nil || v != 42 {
				t.Errorf("unexpected %d %v", v, err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected one load, got %d", calls.Load())
	}
	if v, _ := l.Get(context.Background(), "k", nil); v != 42 {
		t.Fatal("expected cached value")
	}
}

func TestLoaderDoesNotCacheErrors(t *testing.T) {
	l := NewLoader[int](NewLRUCache[int](10, time.Minute))
	boom := errors.New("boom")
	if _, err := l.Get(context.Background(), "k", func(context.Context) (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	v, err := l.Get(context.Background(), "k", func(context.Context) (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("expected reload, got %d %v", v, err)
	}
}

func TestLoaderDropsLoadOverlappingInvalidate(t *testing.T) {
	l := NewLoader[int](NewLRUCache[int](10, time.Minute))
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		v, err := l.Get(ctx, "owner:1:summary", func(context.Context) (int, error) {
			close(started)
			<-release
			return 100, nil
		})
		if err != nil || v != 100 {
			t.Errorf("in-flight caller got %d, %v", v, err)
		}
	}()

	<-started
	l.Invalidate("owner:1:")
	// A caller after the invalidation starts its own load.
	v, err := l.Get(ctx, "owner:1:summary", func(context.Context) (int, error) { return 500, nil })
	if err != nil || v != 500 {
		t.Fatalf("post-invalidate caller got %d, %v", v, err)
	}
	close(release)
	wg.Wait()

	v, _ = l.Get(ctx, "owner:1:summary", func(context.Context) (int, error) { return -1, nil })
	if v != 500 {
		t.Fatalf("stale value cached: got %d, want 500", v)
	}
}

func TestManagerSweep(t *testing.T) {
	c := NewLRUCache[int](10, -time.Second)
	c.Set("a", 1)
	var reported int
	m := NewManager(func(n int) { reported = n })
	m.Register(c)
	if n := m.Sweep(); n != 1 || reported != 1 {
		t.Fatalf("expected one swept entry, got %d (reported %d)", n, reported)
	}
}
