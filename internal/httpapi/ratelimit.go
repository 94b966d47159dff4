package httpapi

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LimiterStore keeps one token bucket per client key and forgets keys idle
// for longer than ttl. Idle keys are swept at most once per ttl, so a key may
// linger for up to twice ttl.
type LimiterStore struct {
	mu        sync.Mutex
	limiters  map[string]*clientLimiter
	r         rate.Limit
	b         int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type clientLimiter struct {
	lim     *rate.Limiter
	lastHit time.Time
}

// NewLimiterStore creates a store handing out limiters of rps and burst.
func NewLimiterStore(rps float64, burst int, ttl time.Duration) *LimiterStore {
	return &LimiterStore{
		limiters: make(map[string]*clientLimiter),
		r:        rate.Limit(rps),
		b:        burst,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Allow reports whether key may make one more request now.
func (s *LimiterStore) Allow(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unknown"
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if now.Sub(s.lastSweep) >= s.ttl {
		s.sweep(now)
	}

	cl, ok := s.limiters[key]
	if !ok {
		cl = &clientLimiter{lim: rate.NewLimiter(s.r, s.b)}
		s.limiters[key] = cl
	}
	cl.lastHit = now
	return cl.lim.AllowN(now, 1)
}

// sweep drops idle limiters. Callers hold s.mu.
func (s *LimiterStore) sweep(now time.Time) {
	for k, v := range s.limiters {
		if now.Sub(v.lastHit) > s.ttl {
			delete(s.limiters, k)
		}
	}
	s.lastSweep = now
}

// Len returns the number of tracked clients.
func (s *LimiterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// ClientIP prefers RemoteAddr; forwarded headers are spoofable.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
