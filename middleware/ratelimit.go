package middleware

import (
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// DefaultLimiterIdle is how long a client's bucket is kept after its last request.
const DefaultLimiterIdle = 10 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// RateLimiter hands out one token bucket per client IP. Buckets idle for longer than Idle are
// dropped on a later request, so the map only holds recently active clients.
//
// The client IP is r.RemoteAddr. It reflects X-Forwarded-For only when chi's RealIP runs first,
// which the router enables solely behind a trusted proxy.
type RateLimiter struct {
	limiters  sync.Map
	rate      rate.Limit
	burst     int
	Idle      time.Duration
	now       func() time.Time
	lastSweep atomic.Int64
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	rl := &RateLimiter{rate: rate.Limit(perSecond), burst: burst, Idle: DefaultLimiterIdle, now: time.Now}
	rl.lastSweep.Store(rl.now().UnixNano())
	return rl
}

func (rl *RateLimiter) limiter(ip string, now time.Time) *rate.Limiter {
	v, ok := rl.limiters.Load(ip)
	if !ok {
		nv := &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		v, _ = rl.limiters.LoadOrStore(ip, nv)
	}
	vis := v.(*visitor)
	vis.lastSeen.Store(now.UnixNano())
	return vis.limiter
}

// sweep drops idle buckets at most once per Idle period.
func (rl *RateLimiter) sweep(now time.Time) {
	last := rl.lastSweep.Load()
	if now.UnixNano()-last < int64(rl.Idle) || !rl.lastSweep.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	cutoff := now.Add(-rl.Idle).UnixNano()
	rl.limiters.Range(func(key, value any) bool {
		if value.(*visitor).lastSeen.Load() < cutoff {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// Len reports how many client buckets are held.
func (rl *RateLimiter) Len() int {
	n := 0
	rl.limiters.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Limit rejects requests over the per-IP budget with 429.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := rl.now()
		rl.sweep(now)
		ip := clientIP(r)
		if !rl.limiter(ip, now).Allow() {
			log.Warn().Str("ip", ip).Str("path", r.URL.Path).Msg("rate limit exceeded")
			w.Header().Set("Retry-After", "1")
			http.Error(w, `{"error":"too many requests, please slow down"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
