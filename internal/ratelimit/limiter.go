package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"
)

/*
DESIGN OVERVIEW

A TOKEN BUCKET per client IP, in front of the route that calls the
backend. Bursts up to Capacity are allowed, then Refill tokens per second.

Fail-closed behavior:
- If internal state is unavailable or corrupted, apply a SMALL fallback limit.
- Never allow unlimited traffic.
*/

const (
	DefaultCapacity        = 50
	DefaultRefillPerSecond = 10

	// SweepInterval is how often buckets that have refilled are dropped.
	// A full bucket behaves exactly like a new one, so eviction is lossless.
	SweepInterval = time.Minute

	// Fallback (very conservative)
	FallbackCapacity = 2
	FallbackRefillPS = 1
)

// rejectedBody has the shape of a failed /api/data envelope so browser
// callers can still parse it.
var rejectedBody = []byte(`{"success":false,"error":"rate limit exceeded"}` + "\n")

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type bucket struct {
	capacity int
	tokens   float64
	refillPS float64
	last     time.Time
}

func newBucket(capacity int, refillPS int, now time.Time) *bucket {
	return &bucket{
		capacity: capacity,
		tokens:   float64(capacity),
		refillPS: float64(refillPS),
		last:     now,
	}
}

// full reports whether the bucket would be at capacity at now.
func (b *bucket) full(now time.Time) bool {
	return b.tokens+now.Sub(b.last).Seconds()*b.refillPS >= float64(b.capacity)
}

func (b *bucket) allow(now time.Time) bool {
	elapsed := now.Sub(b.last).Seconds()
	b.last = now

	b.tokens += elapsed * b.refillPS
	if b.tokens > float64(b.capacity) {
		b.tokens = float64(b.capacity)
	}

	if b.tokens < 1 {
		return false
	}

	b.tokens -= 1
	return true
}

type Limiter struct {
	mu    sync.Mutex
	clock Clock

	capacity  int
	refillPS  int
	buckets   map[string]*bucket
	lastSweep time.Time
}

// NewLimiter returns a per-IP limiter. Non-positive values fall back to
// the package defaults.
func NewLimiter(capacity, refillPerSecond int) *Limiter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if refillPerSecond <= 0 {
		refillPerSecond = DefaultRefillPerSecond
	}
	return &Limiter{
		clock:    realClock{},
		capacity: capacity,
		refillPS: refillPerSecond,
		buckets:  make(map[string]*bucket),
	}
}

// SetClock is used only for tests.
func (l *Limiter) SetClock(c Clock) {
	l.clock = c
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.safeAllow(r.RemoteAddr) {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write(rejectedBody)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Buckets returns the number of client IPs currently tracked.
func (l *Limiter) Buckets() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) safeAllow(remoteAddr string) (allowed bool) {
	defer func() {
		// Any panic = fallback limit
		if recover() != nil {
			allowed = fallbackAllow()
		}
	}()

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()

	if now.Sub(l.lastSweep) >= SweepInterval {
		l.sweep(now)
		l.lastSweep = now
	}

	ip := extractIP(remoteAddr)
	if ip == "" {
		return fallbackAllow()
	}

	b := l.buckets[ip]
	if b == nil {
		b = newBucket(l.capacity, l.refillPS, now)
		l.buckets[ip] = b
	}

	return b.allow(now)
}

// sweep drops every bucket that has refilled to capacity. Callers hold l.mu.
func (l *Limiter) sweep(now time.Time) {
	for ip, b := range l.buckets {
		if b.full(now) {
			delete(l.buckets, ip)
		}
	}
}

var fallbackMu sync.Mutex
var fallbackBucket = newBucket(FallbackCapacity, FallbackRefillPS, time.Now())

func fallbackAllow() bool {
	fallbackMu.Lock()
	defer fallbackMu.Unlock()
	return fallbackBucket.allow(time.Now())
}

func extractIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return ""
	}
	return host
}
