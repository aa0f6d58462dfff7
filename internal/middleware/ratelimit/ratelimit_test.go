package ratelimit

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"finanzas/internal/log"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, perMinute int) (*Limiter, *clock) {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerMinute: perMinute, CleanupInterval: time.Hour}, log.New(log.Config{Output: io.Discard}))
	t.Cleanup(rl.Stop)
	c := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	rl.now = c.now
	return rl, c
}

func TestLimiter_Allow(t *testing.T) {
	rl, c := newTestLimiter(t, 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.1.1.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.Allow("1.1.1.1") {
		t.Fatal("fourth request in the window should be rejected")
	}
	if !rl.Allow("2.2.2.2") {
		t.Fatal("other clients have their own window")
	}
	if got := rl.RetryAfter("1.1.1.1"); got != time.Minute {
		t.Fatalf("RetryAfter = %v, want 1m", got)
	}

	c.advance(time.Minute)
	if !rl.Allow("1.1.1.1") {
		t.Fatal("a new window must reset the counter")
	}

	m := rl.GetMetrics()
	if m.Allowed != 5 || m.Rejected != 1 || m.ClientCount != 2 {
		t.Fatalf("unexpected metrics %+v", m)
	}
}

func TestLimiter_WindowIsFixed(t *testing.T) {
	rl, c := newTestLimiter(t, 2)
	rl.Allow("a")
	c.advance(40 * time.Second)
	rl.Allow("a")
	c.advance(30 * time.Second)
	// 70s after the first request the window has rolled over even though
	// the last request was recent.
	if !rl.Allow("a") {
		t.Fatal("expected the window to roll over")
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	rl, c := newTestLimiter(t, 10)
	rl.Allow("old")
	c.advance(11 * time.Minute)
	rl.Allow("new")

	if removed := rl.cleanupStaleEntries(); removed != 1 {
		t.Fatalf("removed %d entries, want 1", removed)
	}
	if rl.ActiveClients() != 1 {
		t.Fatalf("expected one remaining client, got %d", rl.ActiveClients())
	}
	rl.Stop()
	rl.Stop()
}

func TestLimiter_Middleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	extract := func(*http.Request) string { return "9.9.9.9" }

	t.Run("default rejection", func(t *testing.T) {
		h := rl.Middleware(extract, nil)(next)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transactions", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("first request got %d", rec.Code)
		}
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/transactions", nil))
		if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") != "60" {
			t.Fatalf("expected 429 with Retry-After, got %d %q", rec.Code, rec.Header().Get("Retry-After"))
		}
	})

	t.Run("custom rejection", func(t *testing.T) {
		called := false
		h := rl.Middleware(extract, func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusTeapot)
		})(next)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if !called || rec.Code != http.StatusTeapot {
			t.Fatalf("expected custom handler, got %d", rec.Code)
		}
	})
}
