package middleware

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"sync"
	"time"
)

// TokenBucket refills continuously at refillRate tokens per second, up to
// capacity. Partial tokens carry over between calls.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refillRate float64
	updated    time.Time
	lastUsed   time.Time
	now        func() time.Time
}

func newTokenBucket(capacity, refillRate int, now func() time.Time) *TokenBucket {
	t := now()
	return &TokenBucket{
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: float64(refillRate),
		updated:    t,
		lastUsed:   t,
		now:        now,
	}
}

// Allow takes one token if available.
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	t := tb.now()
	if dt := t.Sub(tb.updated).Seconds(); dt > 0 {
		tb.tokens = math.Min(tb.capacity, tb.tokens+dt*tb.refillRate)
		tb.updated = t
	}
	tb.lastUsed = t

	if tb.tokens < 1 {
		return false
	}
	tb.tokens--
	return true
}

func (tb *TokenBucket) unusedFor(t time.Time) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return t.Sub(tb.lastUsed)
}

// RateLimiter hands out one TokenBucket per key (client IP). Buckets not
// touched for a while are dropped by a background sweep until Stop.
type RateLimiter struct {
	mu         sync.Mutex
	buckets    map[string]*TokenBucket
	capacity   int
	refillRate int
	now        func() time.Time
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewRateLimiter(capacity, refillRate int) *RateLimiter {
	rl := &RateLimiter{
		buckets:    map[string]*TokenBucket{},
		capacity:   capacity,
		refillRate: refillRate,
		now:        time.Now,
		stop:       make(chan struct{}),
	}
	// bersihkan bucket yang sudah lama idle
	go rl.sweep(5*time.Minute, 10*time.Minute)
	return rl
}

func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		b = newTokenBucket(rl.capacity, rl.refillRate, rl.now)
		rl.buckets[key] = b
	}
	rl.mu.Unlock()
	return b.Allow()
}

// Stop ends the background sweep. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) sweep(every, idle time.Duration) {
	tick := time.NewTicker(every)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			rl.evict(idle)
		case <-rl.stop:
			return
		}
	}
}

func (rl *RateLimiter) evict(idle time.Duration) {
	t := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.buckets {
		if b.unusedFor(t) > idle {
			delete(rl.buckets, key)
		}
	}
}

var tooManyRequests = errorMessage{Message: "Too many requests, please try again later"}

type errorMessage struct {
	Message string `json:"message"`
}

// RateLimitMiddleware rejects requests with 429 once the client's bucket is
// empty.
func RateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter.Allow(clientIP(r)) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", "1")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(tooManyRequests)
		})
	}
}

// clientIP strips the port from RemoteAddr; chi's RealIP has already
// swapped in X-Forwarded-For or X-Real-IP when present.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
