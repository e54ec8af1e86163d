// Package ratelimit provides keyed token-bucket limiters for the login
// endpoint (keyed by client IP) and message sends (keyed by user id).
//
// The package is a leaf: it imports nothing from this module, so both
// handlers and middleware can use it without an import cycle.
package ratelimit

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// evictEvery controls how often (in Allow calls) idle keys are swept.
const evictEvery = 512

// KeyedLimiter applies an independent token bucket per key and evicts keys
// that have been idle for longer than idleTTL.
type KeyedLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu    sync.Mutex
	byKey map[string]*entry
	hits  uint64
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a limiter refilling at perSecond tokens per second with the
// given burst. It returns nil (which allows everything) when perSecond or
// burst is not positive, so a zero config disables limiting.
func New(perSecond float64, burst int, idleTTL time.Duration) *KeyedLimiter {
	if perSecond <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}
	return &KeyedLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idleTTL: idleTTL,
		now:     time.Now,
		byKey:   make(map[string]*entry),
	}
}

// PerMinute is New with a per-minute rate.
func PerMinute(perMinute float64, burst int, idleTTL time.Duration) *KeyedLimiter {
	return New(perMinute/60, burst, idleTTL)
}

// Allow consumes one token for key. When the bucket is empty it returns
// false and how long the caller should wait before retrying.
func (l *KeyedLimiter) Allow(key string) (bool, time.Duration) {
	if l == nil {
		return true, 0
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return true, 0
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = e
	}
	e.lastSeen = now

	l.hits++
	if l.hits%evictEvery == 0 {
		l.evictIdle(now)
	}

	if e.limiter.AllowN(now, 1) {
		return true, 0
	}

	r := e.limiter.ReserveN(now, 1)
	wait := r.DelayFrom(now)
	r.CancelAt(now)
	return false, wait
}

// Reset forgets key, e.g. after a successful login.
func (l *KeyedLimiter) Reset(key string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	delete(l.byKey, strings.TrimSpace(key))
	l.mu.Unlock()
}

// Len reports how many keys are tracked.
func (l *KeyedLimiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byKey)
}

func (l *KeyedLimiter) evictIdle(now time.Time) {
	cutoff := now.Add(-l.idleTTL)
	for k, v := range l.byKey {
		if v.lastSeen.Before(cutoff) {
			delete(l.byKey, k)
		}
	}
}

// RetryAfterSeconds rounds a wait up to whole seconds for the Retry-After
// header (minimum 1).
func RetryAfterSeconds(wait time.Duration) int {
	s := int(math.Ceil(wait.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

// ExtractIP returns the client IP, preferring X-Forwarded-For (first hop)
// and X-Real-IP over the socket address.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// FormatRetryMessage renders a wait for user-facing error messages.
func FormatRetryMessage(seconds int) string {
	if seconds >= 60 {
		return fmt.Sprintf("%d minute(s)", seconds/60)
	}
	return fmt.Sprintf("%d second(s)", seconds)
}
