package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestIDGeneratesAndEchoes(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if seen == "" {
		t.Fatal("expected a generated request id")
	}
	if got := rec.Header().Get("X-Request-Id"); got != seen {
		t.Fatalf("header %q does not match context id %q", got, seen)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "client-supplied")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if seen != "client-supplied" {
		t.Fatalf("client id was not honored: %q", seen)
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(okHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Fatalf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestRateLimitRejectsBursts(t *testing.T) {
	h := RateLimit(okHandler(), 2, 1)

	var limited bool
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/info", nil)
		req.RemoteAddr = "203.0.113.5:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			if rec.Header().Get("Retry-After") == "" {
				t.Fatal("429 response missing Retry-After")
			}
		}
	}
	if !limited {
		t.Fatal("expected at least one 429 after exhausting the burst")
	}
}

func TestRateLimitIsPerClient(t *testing.T) {
	h := RateLimit(okHandler(), 1, 1)

	first := httptest.NewRequest(http.MethodGet, "/v1/info", nil)
	first.RemoteAddr = "203.0.113.5:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, first)
	if rec.Code != http.StatusOK {
		t.Fatalf("first client request: %d", rec.Code)
	}

	other := httptest.NewRequest(http.MethodGet, "/v1/info", nil)
	other.RemoteAddr = "198.51.100.7:9999"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	if rec.Code != http.StatusOK {
		t.Fatalf("second client must have its own bucket: %d", rec.Code)
	}
}

func TestPruneRateBuckets(t *testing.T) {
	now := time.Now()
	ttl := 5 * time.Minute
	buckets := map[string]*rateBucket{
		"stale": {ts: now.Add(-10 * time.Minute)},
		"fresh": {ts: now.Add(-time.Minute)},
	}

	pruneRateBuckets(buckets, now, ttl)

	if _, ok := buckets["stale"]; ok {
		t.Fatal("stale bucket was not pruned")
	}
	if _, ok := buckets["fresh"]; !ok {
		t.Fatal("fresh bucket must survive pruning")
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.5:1234"
	if got := clientIP(req); got != "203.0.113.5" {
		t.Fatalf("clientIP = %q", got)
	}

	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	if got := clientIP(req); got != "198.51.100.7" {
		t.Fatalf("clientIP with XFF = %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := CORS(okHandler())
	req := httptest.NewRequest(http.MethodOptions, "/v1/users", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status: %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://localhost:3000" {
		t.Fatalf("origin not allowed: %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}
