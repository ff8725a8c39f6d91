package server

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"careerlaunch/internal/errors"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client key. Buckets idle for longer
// than the eviction age are dropped by a background sweep.
type RateLimiter struct {
	mu        sync.Mutex
	entries   map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	rejected  uint64
	done      chan struct{}
	closeOnce sync.Once
	logger    *errors.Logger
}

const limiterIdleEviction = 10 * time.Minute

// NewRateLimiter allows requestsPerMin per key with a bucket of burstCapacity
func NewRateLimiter(requestsPerMin, burstCapacity int, logger *errors.Logger) *RateLimiter {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	rl := &RateLimiter{
		entries: make(map[string]*limiterEntry),
		limit:   rate.Limit(float64(requestsPerMin) / 60.0),
		burst:   max(burstCapacity, 1),
		done:    make(chan struct{}),
		logger:  logger,
	}

	go rl.sweepLoop(limiterIdleEviction)
	return rl
}

// Reserve charges one request to key. When the bucket is empty it returns
// false and how long the client should wait.
func (rl *RateLimiter) Reserve(key string) (bool, time.Duration) {
	now := time.Now()

	rl.mu.Lock()
	entry, ok := rl.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.entries[key] = entry
	}
	entry.lastSeen = now
	rl.mu.Unlock()

	reservation := entry.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		rl.countRejected()
		return false, 0
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		// give the token back, the request is refused rather than queued
		reservation.CancelAt(now)
		rl.countRejected()
		return false, delay
	}
	return true, 0
}

// Allow reports whether a request for key fits in its bucket
func (rl *RateLimiter) Allow(key string) bool {
	ok, _ := rl.Reserve(key)
	return ok
}

func (rl *RateLimiter) countRejected() {
	rl.mu.Lock()
	rl.rejected++
	rl.mu.Unlock()
}

// GetStats returns current rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]any {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]any{
		"enabled":           true,
		"active_limiters":   len(rl.entries),
		"rate_per_minute":   float64(rl.limit) * 60.0,
		"burst_capacity":    rl.burst,
		"rejected_requests": rl.rejected,
	}
}

func (rl *RateLimiter) sweepLoop(evictionAge time.Duration) {
	ticker := time.NewTicker(evictionAge)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			rl.sweep(now, evictionAge)
		case <-rl.done:
			return
		}
	}
}

// sweep drops buckets last used before now minus evictionAge
func (rl *RateLimiter) sweep(now time.Time, evictionAge time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, entry := range rl.entries {
		if now.Sub(entry.lastSeen) > evictionAge {
			delete(rl.entries, key)
		}
	}
	rl.logger.Debug("Rate limiter sweep completed", "remaining_limiters", len(rl.entries))
}

// Close stops the sweep goroutine. It is safe to call more than once.
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() { close(rl.done) })
}

// rateLimitMiddleware rejects requests over the per-key budget with 429 and a
// Retry-After header, and counts each rejection
func (s *Server) rateLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	if s.RateLimit == nil || !s.RateLimit.Enabled || s.RateLimiter == nil {
		return func(next http.HandlerFunc) http.HandlerFunc { return next }
	}

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key := getRateLimitKey(r, s.RateLimit.ByAPIKey, s.RateLimit.ByIP)
			if key == "" {
				next(w, r)
				return
			}

			allowed, wait := s.RateLimiter.Reserve(key)
			if !allowed {
				s.Logger.Info("Rate limit exceeded",
					"key_kind", keyKind(key),
					"endpoint", r.Pattern,
					"client_ip", getClientIP(r))
				s.Metrics.RecordRateLimitHit(r.Context(),
					attribute.String("endpoint", r.Pattern),
					attribute.String("method", r.Method))
				if wait > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				}
				writeErrorResponse(w, "Rate limit exceeded", "Too many requests", http.StatusTooManyRequests)
				return
			}

			next(w, r)
		}
	}
}

// getRateLimitKey picks the bucket a request is charged to. API keys are
// hashed so raw credentials never sit in the limiter map.
func getRateLimitKey(r *http.Request, byAPIKey, byIP bool) string {
	if byAPIKey {
		if apiKey := requestAPIKey(r); apiKey != "" {
			sum := sha256.Sum256([]byte(apiKey))
			return "api:" + hex.EncodeToString(sum[:8])
		}
	}

	if byIP {
		return "ip:" + getClientIP(r)
	}

	return ""
}

// keyKind reports which bucket family a key belongs to without logging the key
func keyKind(key string) string {
	kind, _, _ := strings.Cut(key, ":")
	return kind
}

// getClientIP prefers the first valid X-Forwarded-For hop, then X-Real-IP,
// then the connection's remote address
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := parseFirstIP(xff); ip != "" {
			return ip
		}
	}

	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.String()
	}

	if addrPort, err := netip.ParseAddrPort(r.RemoteAddr); err == nil {
		return addrPort.Addr().String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// parseFirstIP returns the first valid address of a comma-separated list
func parseFirstIP(ips string) string {
	for ip := range strings.SplitSeq(ips, ",") {
		if addr, err := netip.ParseAddr(strings.TrimSpace(ip)); err == nil {
			return addr.String()
		}
	}
	return ""
}
