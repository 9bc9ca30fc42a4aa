package handlers

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Login throttling: 10 attempts per minute per client, with a small
// burst. Limits are keyed by remote address (chi's RealIP middleware
// runs first, so r.RemoteAddr reflects the client).
const (
	loginRatePerSecond = 10.0 / 60.0
	loginBurst         = 5
	limiterIdleTTL     = 10 * time.Minute
	limiterPruneSize   = 1000
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// loginLimiter tracks a token bucket per client key. Stale entries are
// pruned lazily once the map grows past limiterPruneSize.
type loginLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
}

func newLoginLimiter() *loginLimiter {
	return &loginLimiter{limiters: make(map[string]*clientLimiter)}
}

func (l *loginLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) >= limiterPruneSize {
			l.prune(now)
		}
		entry = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(loginRatePerSecond), loginBurst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.Allow()
}

func (l *loginLimiter) prune(now time.Time) {
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.limiters, key)
		}
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
