package httpx

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitProfile names a preset request budget. Profiles can be overridden
// at deploy time via RATELIMIT_<PROFILE>_RPS and RATELIMIT_<PROFILE>_BURST.
type RateLimitProfile string

const (
	// RateLimitStrict protects credential-guessing surfaces: login, token
	// redemption, password reset.
	RateLimitStrict RateLimitProfile = "STRICT"

	// RateLimitModerate covers authenticated mutations.
	RateLimitModerate RateLimitProfile = "MODERATE"

	// RateLimitLenient covers authenticated reads.
	RateLimitLenient RateLimitProfile = "LENIENT"
)

type rateLimitSettings struct {
	rps   rate.Limit
	burst int
}

var rateLimitDefaults = map[RateLimitProfile]rateLimitSettings{
	RateLimitStrict:   {rps: rate.Limit(0.5), burst: 5},
	RateLimitModerate: {rps: rate.Limit(5), burst: 20},
	RateLimitLenient:  {rps: rate.Limit(20), burst: 60},
}

func settingsFor(profile RateLimitProfile) rateLimitSettings {
	settings, ok := rateLimitDefaults[profile]
	if !ok {
		settings = rateLimitDefaults[RateLimitModerate]
	}
	if raw := os.Getenv(fmt.Sprintf("RATELIMIT_%s_RPS", profile)); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v > 0 {
			settings.rps = rate.Limit(v)
		}
	}
	if raw := os.Getenv(fmt.Sprintf("RATELIMIT_%s_BURST", profile)); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			settings.burst = v
		}
	}
	return settings
}

// KeyFunc derives the bucketing key for a request. An empty key skips
// limiting for that request.
type KeyFunc func(r *http.Request) string

// KeyByClientIP buckets by the remote address, honouring X-Forwarded-For
// only when present (the service is expected to sit behind a proxy).
func KeyByClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return "ip:" + fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

// KeyByAccount buckets by the authenticated account, falling back to the
// client IP before authentication has run.
func KeyByAccount(r *http.Request) string {
	if id := AccountIDFromContext(r.Context()); id != "" {
		return "acct:" + id
	}
	return KeyByClientIP(r)
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	mu       sync.Mutex
	entries  map[string]*limiterEntry
	settings rateLimitSettings
}

func (l *rateLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.settings.rps, l.settings.burst)}
		l.entries[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

// evictStale drops buckets idle for longer than maxIdle so the map does not
// grow unboundedly under scanning traffic.
func (l *rateLimiter) evictStale(maxIdle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	for key, entry := range l.entries {
		if entry.lastSeen.Before(cutoff) {
			delete(l.entries, key)
		}
	}
}

// RateLimit enforces a token-bucket budget per derived key, answering 429
// with a Retry-After hint when exhausted.
func RateLimit(profile RateLimitProfile, keyFn KeyFunc) Middleware {
	limiter := &rateLimiter{
		entries:  make(map[string]*limiterEntry),
		settings: settingsFor(profile),
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			limiter.evictStale(15 * time.Minute)
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if key != "" && !limiter.allow(key) {
				w.Header().Set("Retry-After", "1")
				WriteError(w, r, http.StatusTooManyRequests, "rate_limited", "too many requests, slow down")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
