package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/famhub/internal/auth"
	"github.com/dukerupert/famhub/internal/metrics"
)

// Limit is a named budget of requests per fixed window. Counters for
// different limits never share a key.
type Limit struct {
	Name     string
	Requests int
	Window   time.Duration
}

// KeyFunc picks the counter a request is charged to. An empty key is not
// limited.
type KeyFunc func(*http.Request) string

// ClientIP keys on the caller's address: the first X-Forwarded-For hop when
// a reverse proxy sets one, else RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// TargetProfile keys on the profile named by path parameter param within the
// caller's family, so guessing one profile's PIN is limited no matter how
// many devices or tokens try. It needs RequireAuth in front of it.
func TargetProfile(param string) KeyFunc {
	return func(r *http.Request) string {
		id := strings.TrimSpace(r.PathValue(param))
		familyID := auth.FamilyID(r.Context())
		if id == "" || familyID == "" {
			return ""
		}
		return familyID + "/" + id
	}
}

type window struct {
	count   int
	resetAt time.Time
}

// RateLimiter holds fixed-window counters for any number of limits.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{windows: make(map[string]*window), now: time.Now}
}

// Allow charges one request to key under l. When the budget is spent it
// returns false and how long until the window resets.
func (rl *RateLimiter) Allow(l Limit, key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	k := l.Name + "|" + key
	w, ok := rl.windows[k]
	if !ok || !now.Before(w.resetAt) {
		rl.windows[k] = &window{count: 1, resetAt: now.Add(l.Window)}
		return true, 0
	}
	if w.count >= l.Requests {
		return false, w.resetAt.Sub(now)
	}
	w.count++
	return true, 0
}

// Cleanup drops windows that have reset. The server runs it periodically.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for k, w := range rl.windows {
		if !now.Before(w.resetAt) {
			delete(rl.windows, k)
		}
	}
}

// RateLimit refuses requests over l with 429 and a Retry-After header.
func RateLimit(rl *RateLimiter, l Limit, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}
			if ok, wait := rl.Allow(l, k); !ok {
				metrics.RateLimited.WithLabelValues(l.Name).Inc()
				secs := int((wait + time.Second - 1) / time.Second)
				w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts, try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
