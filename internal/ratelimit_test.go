package internal

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRateLimiterAllow(t *testing.T) {
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := newRateLimiter(1, 1, 0)
	limiter.now = func() time.Time { return now }

	if !limiter.allow("client") {
		t.Fatalf("expected first request to be allowed")
	}
	if limiter.allow("client") {
		t.Fatalf("expected second request to be rate limited")
	}
	if !limiter.allow("other") {
		t.Fatalf("expected other client to have its own bucket")
	}

	now = now.Add(1100 * time.Millisecond)
	if !limiter.allow("client") {
		t.Fatalf("expected request after refill to be allowed")
	}
}

// TestRateLimiterSweep tests that idle clients are dropped after the ttl.
func TestRateLimiterSweep(t *testing.T) {
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := newRateLimiter(1, 1, time.Minute)
	limiter.now = func() time.Time { return now }

	limiter.allow("idle")
	now = now.Add(2 * time.Minute)
	limiter.allow("active")
	if _, ok := limiter.store["idle"]; ok {
		t.Fatalf("expected idle client to be swept")
	}
	if _, ok := limiter.store["active"]; !ok {
		t.Fatalf("expected active client to be tracked")
	}
}

func TestRateLimitHandler(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	handler := NewRateLimitHandler(next, 1, 1, time.Minute)

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests && rec.Header().Get("Retry-After") == "" {
			t.Fatalf("expected Retry-After header")
		}
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status codes: %v", codes)
	}

	if NewRateLimitHandler(next, 0, 0, 0) == nil {
		t.Fatalf("expected passthrough handler when disabled")
	}
}
