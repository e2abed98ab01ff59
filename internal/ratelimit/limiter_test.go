package ratelimit

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func newTestLimiter(capacity, refill int) (*Limiter, *fakeClock) {
	fc := &fakeClock{now: time.Unix(0, 0)}
	l := NewLimiter(capacity, refill)
	l.SetClock(fc)
	return l, fc
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, remoteAddr string) int {
	req := httptest.NewRequest("GET", "/api/data", nil)
	req.RemoteAddr = remoteAddr
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr.Code
}

func TestAllowedUnderLimit(t *testing.T) {
	limiter, _ := newTestLimiter(5, 1)
	handler := limiter.Middleware(okHandler())

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, serve(handler, "1.2.3.4:1234"))
	}
}

func TestBlockedOverLimit(t *testing.T) {
	limiter, _ := newTestLimiter(3, 1)
	handler := limiter.Middleware(okHandler())

	var code int
	for i := 0; i < 4; i++ {
		code = serve(handler, "5.5.5.5:9999")
	}

	assert.Equal(t, http.StatusTooManyRequests, code)
}

func TestRefillAfterWait(t *testing.T) {
	limiter, clock := newTestLimiter(1, 2)
	handler := limiter.Middleware(okHandler())

	require.Equal(t, http.StatusOK, serve(handler, "7.7.7.7:1"))
	require.Equal(t, http.StatusTooManyRequests, serve(handler, "7.7.7.7:1"))

	clock.Advance(500 * time.Millisecond)

	assert.Equal(t, http.StatusOK, serve(handler, "7.7.7.7:1"))
}

func TestIndependentLimitsPerIP(t *testing.T) {
	limiter, _ := newTestLimiter(1, 1)
	handler := limiter.Middleware(okHandler())

	assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.1:1"))
	assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.2:2"))
	assert.Equal(t, 2, limiter.Buckets())
}

func TestIdleFullBucketsAreSwept(t *testing.T) {
	limiter, clock := newTestLimiter(2, 1)
	handler := limiter.Middleware(okHandler())

	for i := 0; i < 100; i++ {
		serve(handler, fmt.Sprintf("10.1.%d.%d:1", i/256, i%256))
	}
	require.Equal(t, 100, limiter.Buckets())

	clock.Advance(SweepInterval)
	serve(handler, "10.2.0.1:1")

	assert.Equal(t, 1, limiter.Buckets())
}

func TestSweepKeepsDrainedBuckets(t *testing.T) {
	limiter, clock := newTestLimiter(1000, 1)
	handler := limiter.Middleware(okHandler())

	// drain well below capacity; a minute of refill cannot top it up
	for i := 0; i < 200; i++ {
		serve(handler, "10.3.0.1:1")
	}

	clock.Advance(SweepInterval)
	serve(handler, "10.3.0.2:1")

	assert.Equal(t, 2, limiter.Buckets())
}

func TestRejectionIsJSON(t *testing.T) {
	limiter, _ := newTestLimiter(1, 1)
	handler := limiter.Middleware(okHandler())

	serve(handler, "10.4.0.1:1")

	req := httptest.NewRequest("GET", "/api/data", nil)
	req.RemoteAddr = "10.4.0.1:1"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.JSONEq(t, `{"success":false,"error":"rate limit exceeded"}`, rr.Body.String())
}

func TestFallbackOnInternalError(t *testing.T) {
	limiter, _ := newTestLimiter(5, 1)

	// Corrupt internal state deliberately
	limiter.buckets = nil

	// Fallback allows only a very small number; first request should pass
	assert.Equal(t, http.StatusOK, serve(limiter.Middleware(okHandler()), "8.8.8.8:80"))
}

func TestDefaultsForNonPositiveValues(t *testing.T) {
	l := NewLimiter(0, -1)
	assert.Equal(t, DefaultCapacity, l.capacity)
	assert.Equal(t, DefaultRefillPerSecond, l.refillPS)
}

func TestNilLimiterHasNoBuckets(t *testing.T) {
	var l *Limiter
	assert.Zero(t, l.Buckets())
}
