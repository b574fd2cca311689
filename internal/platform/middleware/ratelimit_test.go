package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func serve(t *testing.T, h echo.HandlerFunc, user string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if user != "" {
		c.Set("user_id", user)
	}
	return rec, h(c)
}

func TestRateLimit_WithinBurst(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})(okHandler)
	for i := 0; i < 5; i++ {
		rec, err := serve(t, h, "")
		if err != nil {
			t.Fatalf("request %d: unexpected error %v", i+1, err)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit 10, got %q", i+1, got)
		}
	}
}

func TestRateLimit_ExceedsBurst(t *testing.T) {
	l := newLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})
	fixed := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }
	h := rateLimit(l)(okHandler)

	for i := 0; i < 2; i++ {
		if _, err := serve(t, h, ""); err != nil {
			t.Fatalf("request %d: unexpected error %v", i+1, err)
		}
	}
	rec, err := serve(t, h, "")
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("expected Retry-After 1, got %q", rec.Header().Get("Retry-After"))
	}

	fixed = fixed.Add(time.Second)
	if _, err := serve(t, h, ""); err != nil {
		t.Fatalf("expected refill after one second, got %v", err)
	}
}

func TestRateLimit_KeyedByUser(t *testing.T) {
	l := newLimiter(RateLimitConfig{RequestsPerSecond: 0, BurstSize: 1})
	h := rateLimit(l)(okHandler)

	if _, err := serve(t, h, "alice"); err != nil {
		t.Fatalf("alice: %v", err)
	}
	if _, err := serve(t, h, "bob"); err != nil {
		t.Fatalf("bob should have his own bucket: %v", err)
	}
	if _, err := serve(t, h, "alice"); err == nil {
		t.Fatal("expected alice to be limited")
	}
}

func TestRateLimit_EvictsIdleBuckets(t *testing.T) {
	l := newLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, IdleTTL: time.Minute})
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	h := rateLimit(l)(okHandler)

	serve(t, h, "alice")
	serve(t, h, "bob")
	if l.size() != 2 {
		t.Fatalf("expected 2 buckets, got %d", l.size())
	}
	now = now.Add(5 * time.Minute)
	serve(t, h, "carol")
	if l.size() != 1 {
		t.Errorf("expected idle buckets to be dropped, got %d", l.size())
	}
}
