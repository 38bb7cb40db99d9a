package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const idleClientTTL = 10 * time.Minute

// RateLimiter keeps one token bucket per client key. A bucket holds
// `requests` tokens and refills completely over `window`.
type RateLimiter struct {
	requests int
	window   time.Duration
	limit    rate.Limit

	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
	now       func() time.Time
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(requests int, windowSeconds int) *RateLimiter {
	if requests <= 0 {
		requests = 100
	}
	if windowSeconds <= 0 {
		windowSeconds = 60
	}

	window := time.Duration(windowSeconds) * time.Second
	return &RateLimiter{
		requests: requests,
		window:   window,
		limit:    rate.Limit(float64(requests) / window.Seconds()),
		clients:  make(map[string]*client),
		now:      time.Now,
	}
}

// Allow spends one token for key. It reports whether the request may pass,
// how many tokens are left and when the bucket will be full again.
func (rl *RateLimiter) Allow(key string) (bool, int, time.Time) {
	now := rl.now()

	rl.mu.Lock()
	rl.sweep(now)
	c, ok := rl.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.limit, rl.requests)}
		rl.clients[key] = c
	}
	c.lastSeen = now
	rl.mu.Unlock()

	allowed := c.limiter.AllowN(now, 1)
	tokens := c.limiter.TokensAt(now)

	remaining := int(math.Floor(tokens))
	if remaining < 0 {
		remaining = 0
	}
	missing := float64(rl.requests) - tokens
	reset := now.Add(time.Duration(missing / float64(rl.limit) * float64(time.Second)))

	return allowed, remaining, reset
}

// sweep drops idle clients at most once a minute. Callers hold mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < time.Minute {
		return
	}
	rl.lastSweep = now
	for key, c := range rl.clients {
		if now.Sub(c.lastSeen) > idleClientTTL {
			delete(rl.clients, key)
		}
	}
}

// retryAfter is the number of whole seconds until one token is available.
func (rl *RateLimiter) retryAfter() int64 {
	return int64(math.Ceil(rl.window.Seconds() / float64(rl.requests)))
}

func (rl *RateLimiter) handler(keyFn func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, reset := rl.Allow(keyFn(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

			if !allowed {
				w.Header().Set("Retry-After", strconv.FormatInt(rl.retryAfter(), 10))
				writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit limits requests per client IP.
func RateLimit(requests int, windowSeconds int) func(http.Handler) http.Handler {
	return NewRateLimiter(requests, windowSeconds).handler(ClientIP)
}

// RateLimitByUser limits requests per authenticated user and falls back to
// the client IP. It must run after Auth.
func RateLimitByUser(requests int, windowSeconds int) func(http.Handler) http.Handler {
	return NewRateLimiter(requests, windowSeconds).handler(func(r *http.Request) string {
		if identity := GetIdentity(r.Context()); identity != nil {
			return "user:" + identity.UserID.String()
		}
		return ClientIP(r)
	})
}

// ClientIP is the socket address without its port. Proxy headers are
// honoured only when the router installs chi's RealIP, which rewrites
// RemoteAddr from them.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
