// Package ratelimit throttles write requests per authenticated user with
// token buckets from golang.org/x/time/rate.
package ratelimit

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/example/discussion-platform/internal/platform/api"
	"github.com/example/discussion-platform/internal/platform/auth"
	"github.com/example/discussion-platform/internal/platform/httpserver"
	"github.com/example/discussion-platform/internal/platform/observability"
)

const idleTTL = 10 * time.Minute

type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter holds one bucket per key. A Limiter with a zero rate allows
// everything.
type Limiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[string]*entry
	now     func() time.Time
	calls   int
}

// New allows perMinute events per key with the given burst.
func New(perMinute, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		buckets: map[string]*entry{},
		now:     time.Now,
	}
}

// Allow consumes a token for key. When denied it also returns how long until
// the next token.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	if l == nil || l.limit <= 0 {
		return true, 0
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if l.calls%1024 == 0 {
		l.sweep(now)
	}
	e, ok := l.buckets[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = e
	}
	e.lastSeen = now

	r := e.lim.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Minute
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

func (l *Limiter) sweep(now time.Time) {
	for k, e := range l.buckets {
		if now.Sub(e.lastSeen) > idleTTL {
			delete(l.buckets, k)
		}
	}
}

// Middleware rejects requests over the limit with 429. It keys on the user
// id set by auth.RequireUser and falls back to the client IP.
func (l *Limiter) Middleware(route string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + clientIP(r.RemoteAddr)
			if uid, ok := auth.UserIDFromContext(r.Context()); ok {
				key = "user:" + uid
			}
			ok, wait := l.Allow(key)
			if !ok {
				observability.RateLimited.WithLabelValues(route).Inc()
				api.Retryable(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests",
					httpserver.RequestIDFromContext(r.Context()), wait, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP drops the port so reconnects from one host share a bucket.
func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
