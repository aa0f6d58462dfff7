package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"finanzas/internal/log"
)

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	m := NewMiddleware(func(*http.Request) string { return "10.0.0.1" }, log.New(log.Config{Output: &buf}))

	var seenID string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		if log.FromContext(r.Context()).Component() != log.ComponentTrace {
			t.Error("expected request logger in context")
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/stats/summary", nil))
	if !strings.HasPrefix(seenID, "req_") || rr.Header().Get(RequestIDHeader) != seenID {
		t.Fatalf("request id %q not propagated (header %q)", seenID, rr.Header().Get(RequestIDHeader))
	}
	if !strings.Contains(buf.String(), "HTTP request completed") || !strings.Contains(buf.String(), "status_code=500") {
		t.Fatalf("expected completion log, got %s", buf.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "upstream-42")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if seenID != "upstream-42" {
		t.Fatalf("expected upstream id reused, got %q", seenID)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "bad id\n")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seenID == "bad id\n" {
		t.Fatal("malformed request ids must be replaced")
	}

	metrics := m.GetMetrics()
	if metrics.TotalRequests != 3 || metrics.ServerErrors != 3 {
		t.Fatalf("unexpected metrics %+v", metrics)
	}
}

func TestGenerateRequestID(t *testing.T) {
	a, b := GenerateRequestID(), GenerateRequestID()
	if a == b || len(a) != len("req_")+16 {
		t.Fatalf("unexpected ids %q %q", a, b)
	}
}
