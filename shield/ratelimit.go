// CLAUDE:SUMMARY Per-IP fixed-window rate limiter with rules loaded from the rate_limits table; 429 JSON with Retry-After.
package shield

import (
	"context"
	"database/sql"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig defines the rate limit for a single endpoint.
type RateLimitConfig struct {
	MaxRequests   int
	WindowSeconds int
	Enabled       bool
}

type bucket struct {
	count   int
	resetAt time.Time
}

// RateLimiter provides per-IP, per-endpoint fixed-window rate limiting
// backed by the rate_limits table. Rules are reloaded periodically and
// expired buckets are garbage collected.
type RateLimiter struct {
	db      *sql.DB
	logger  *slog.Logger
	exclude []string
	now     func() time.Time

	mu      sync.Mutex
	rules   map[string]RateLimitConfig
	buckets map[string]*bucket
}

// RateLimitOption configures a RateLimiter.
type RateLimitOption func(*RateLimiter)

// WithRateLimitLogger sets the limiter logger.
func WithRateLimitLogger(l *slog.Logger) RateLimitOption {
	return func(rl *RateLimiter) {
		if l != nil {
			rl.logger = l
		}
	}
}

// WithExclude skips rate limiting for paths with one of the prefixes.
func WithExclude(prefixes ...string) RateLimitOption {
	return func(rl *RateLimiter) { rl.exclude = append(rl.exclude, prefixes...) }
}

// WithRateLimitClock replaces time.Now.
func WithRateLimitClock(now func() time.Time) RateLimitOption {
	return func(rl *RateLimiter) { rl.now = now }
}

// NewRateLimiter creates a rate limiter that reads rules from the
// rate_limits table in db. Call Run to refresh rules and collect buckets.
func NewRateLimiter(db *sql.DB, opts ...RateLimitOption) *RateLimiter {
	rl := &RateLimiter{
		db:      db,
		logger:  slog.Default(),
		now:     time.Now,
		rules:   make(map[string]RateLimitConfig),
		buckets: make(map[string]*bucket),
	}
	for _, o := range opts {
		o(rl)
	}
	rl.Reload(context.Background())
	return rl
}

// Run reloads rules every minute and drops expired buckets every five,
// until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	reloadTick := time.NewTicker(time.Minute)
	gcTick := time.NewTicker(5 * time.Minute)
	defer reloadTick.Stop()
	defer gcTick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-reloadTick.C:
			rl.Reload(ctx)
		case <-gcTick.C:
			rl.gc()
		}
	}
}

// Reload reads the rules table. On error the previous rules stay.
func (rl *RateLimiter) Reload(ctx context.Context) {
	rows, err := rl.db.QueryContext(ctx, `SELECT endpoint, max_requests, window_seconds, enabled FROM rate_limits`)
	if err != nil {
		rl.logger.Warn("shield: reload rate limits", "error", err)
		return
	}
	defer rows.Close()

	rules := make(map[string]RateLimitConfig)
	for rows.Next() {
		var endpoint string
		var cfg RateLimitConfig
		var enabled int
		if err := rows.Scan(&endpoint, &cfg.MaxRequests, &cfg.WindowSeconds, &enabled); err != nil {
			continue
		}
		cfg.Enabled = enabled == 1
		rules[endpoint] = cfg
	}
	if err := rows.Err(); err != nil {
		rl.logger.Warn("shield: reload rate limits", "error", err)
		return
	}

	rl.mu.Lock()
	rl.rules = rules
	rl.mu.Unlock()
	rl.logger.Debug("shield: rate limits reloaded", "count", len(rules))
}

func (rl *RateLimiter) gc() {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.buckets {
		if now.After(b.resetAt) {
			delete(rl.buckets, key)
		}
	}
}

// allow counts one request and reports whether it fits the window. When
// it does not, retry is the time left before the window resets.
func (rl *RateLimiter) allow(ip, endpoint string) (ok bool, retry time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cfg, found := rl.rules[endpoint]
	if !found || !cfg.Enabled {
		return true, 0
	}
	now := rl.now()
	key := ip + " " + endpoint
	b, found := rl.buckets[key]
	if !found || now.After(b.resetAt) {
		rl.buckets[key] = &bucket{count: 1, resetAt: now.Add(time.Duration(cfg.WindowSeconds) * time.Second)}
		return true, 0
	}
	b.count++
	if b.count <= cfg.MaxRequests {
		return true, 0
	}
	return false, b.resetAt.Sub(now)
}

// Middleware enforces the rate limits with a JSON 429 response.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, prefix := range rl.exclude {
			if strings.HasPrefix(r.URL.Path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}

		endpoint := r.Method + " " + r.URL.Path
		ip := ExtractIP(r)
		ok, retry := rl.allow(ip, endpoint)
		if ok {
			next.ServeHTTP(w, r)
			return
		}

		rl.logger.Warn("shield: request rate limited", "ip", ip, "endpoint", endpoint)
		secs := int((retry + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.Itoa(max(secs, 1)))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limit exceeded"}` + "\n"))
	})
}

// ExtractIP returns the client IP from X-Forwarded-For or RemoteAddr.
func ExtractIP(r *http.Request) string {
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
