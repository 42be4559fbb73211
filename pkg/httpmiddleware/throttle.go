package httpmiddleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ThrottleConfig limits how often a single client may hit a route.
type ThrottleConfig struct {
	// Every is the minimum interval between requests once Burst is spent.
	Every time.Duration
	// Burst is the number of requests allowed back to back.
	Burst int
	// Idle is how long a client key may go unseen before its bucket is
	// dropped. Defaults to the time a bucket takes to refill, but no less
	// than a minute.
	Idle time.Duration
	// KeyFunc extracts the client key. Defaults to the client IP.
	KeyFunc func(*http.Request) string
}

// Throttle rejects requests above the configured rate with 429 Too Many
// Requests. Each client key gets its own token bucket.
func Throttle(cfg ThrottleConfig) Middleware {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = clientIP
	}
	limiters := newLimiterSet(cfg, time.Now)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := limiters.get(cfg.KeyFunc(r)).Reserve()
			if delay := res.Delay(); delay > 0 {
				res.Cancel()
				secs := int(delay.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type limiterEntry struct {
	limiter *rate.Limiter
	seen    time.Time
}

// limiterSet hands out one limiter per key and drops keys idle for longer
// than idle. A bucket idle that long is full again, so dropping it does not
// change any client's budget.
type limiterSet struct {
	every time.Duration
	burst int
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	entries   map[string]*limiterEntry
	lastSweep time.Time
}

func newLimiterSet(cfg ThrottleConfig, now func() time.Time) *limiterSet {
	burst := max(cfg.Burst, 1)
	idle := cfg.Idle
	if idle <= 0 {
		idle = max(cfg.Every*time.Duration(burst), time.Minute)
	}
	return &limiterSet{
		every:     cfg.Every,
		burst:     burst,
		idle:      idle,
		now:       now,
		entries:   make(map[string]*limiterEntry),
		lastSweep: now(),
	}
}

func (s *limiterSet) get(key string) *rate.Limiter {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) >= s.idle {
		s.sweep(now)
	}
	e, ok := s.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Every(s.every), s.burst)}
		s.entries[key] = e
	}
	e.seen = now
	return e.limiter
}

// sweep must be called with s.mu held.
func (s *limiterSet) sweep(now time.Time) {
	for key, e := range s.entries {
		if now.Sub(e.seen) >= s.idle {
			delete(s.entries, key)
		}
	}
	s.lastSweep = now
}

func (s *limiterSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// clientIP prefers the first X-Forwarded-For hop, then RemoteAddr.
func clientIP(r *http.Request) string {
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
