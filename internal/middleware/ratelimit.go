// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/carterperez-dev/templates/notes-api/internal/core"
)

const (
	globalKeyPrefix = "ratelimit:ip:"
	authKeyPrefix   = "ratelimit:auth:"
)

type RateLimitConfig struct {
	Limit      redis_rate.Limit
	KeyFunc    func(*http.Request) string
	FailOpen   bool
	BypassFunc func(*http.Request) bool
	Logger     *slog.Logger
}

type RateLimiter struct {
	limiter  *redis_rate.Limiter
	fallback *localLimiter
	config   RateLimitConfig
}

// NewRateLimiter counts in redis and falls back to an in-process token
// bucket when redis errors. A nil client limits in-process only.
func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	rl := &RateLimiter{
		fallback: newLocalLimiter(),
		config:   cfg,
	}
	if rdb != nil {
		rl.limiter = redis_rate.NewLimiter(rdb)
	}

	return rl
}

// NewAuthRateLimiter is the stricter limiter for the credential endpoints,
// counted per client IP and endpoint.
func NewAuthRateLimiter(rdb *redis.Client, limit redis_rate.Limit) *RateLimiter {
	return NewRateLimiter(rdb, RateLimitConfig{
		Limit:   limit,
		KeyFunc: KeyByIPAndEndpoint,
	})
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.config.BypassFunc != nil && rl.config.BypassFunc(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := rl.config.KeyFunc(r)
		res, err := rl.allow(r.Context(), key)
		if err != nil {
			if rl.config.FailOpen {
				rl.config.Logger.Warn("rate limiter error, failing open",
					"error", err,
					"key", key,
				)
				next.ServeHTTP(w, r)
				return
			}
			core.JSONError(w, core.NewAppError(
				err,
				"rate limiter unavailable",
				http.StatusServiceUnavailable,
				"SERVICE_UNAVAILABLE",
			))
			return
		}

		setRateLimitHeaders(w, res, rl.config.Limit)

		if res.Allowed == 0 {
			writeRateLimitExceeded(w, res)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) allow(
	ctx context.Context,
	key string,
) (*redis_rate.Result, error) {
	if rl.limiter == nil {
		return rl.fallback.allow(key, rl.config.Limit)
	}

	res, err := rl.limiter.Allow(ctx, key, rl.config.Limit)
	if err != nil {
		rl.config.Logger.Debug("redis rate limit unavailable, using local bucket",
			"error", err,
		)
		return rl.fallback.allow(key, rl.config.Limit)
	}
	return res, nil
}

func KeyByIP(r *http.Request) string {
	return globalKeyPrefix + ClientIP(r)
}

func KeyByIPAndEndpoint(r *http.Request) string {
	return fmt.Sprintf(
		"%s%s:endpoint:%s",
		authKeyPrefix,
		ClientIP(r),
		normalizeEndpoint(r.URL.Path),
	)
}

// ClientIP prefers the proxy-appended X-Forwarded-For entry, then
// X-Real-IP, then the connection address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[len(ips)-1])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return ip
}

// normalizeEndpoint folds note ids so /notes/{id} shares one bucket.
func normalizeEndpoint(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, part := range parts {
		if len(part) == 36 && uuid.Validate(part) == nil {
			parts[i] = "{id}"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func setRateLimitHeaders(
	w http.ResponseWriter,
	res *redis_rate.Result,
	limit redis_rate.Limit,
) {
	h := w.Header()

	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(
		time.Now().Add(res.ResetAfter).Unix(), 10))
	h.Set("RateLimit-Policy", fmt.Sprintf(
		"%d;w=%d", limit.Rate, int(limit.Period.Seconds())))
}

func writeRateLimitExceeded(w http.ResponseWriter, res *redis_rate.Result) {
	retryAfter := max(int(res.RetryAfter.Seconds()), 1)

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

	core.JSON(w, http.StatusTooManyRequests, core.ErrorResponse{
		Success: false,
		Error: core.ErrorBody{
			Code: "RATE_LIMITED",
			Message: fmt.Sprintf(
				"Rate limit exceeded. Retry after %d seconds.",
				retryAfter,
			),
		},
	})
}

const localEntryTTL = 10 * time.Minute

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// localLimiter holds one token bucket per key. Idle buckets are swept
// on access instead of by a background goroutine.
type localLimiter struct {
	mu        sync.Mutex
	entries   map[string]*localEntry
	lastSweep time.Time
	now       func() time.Time
}

func newLocalLimiter() *localLimiter {
	return &localLimiter{
		entries:   make(map[string]*localEntry),
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (l *localLimiter) allow(
	key string,
	limit redis_rate.Limit,
) (*redis_rate.Result, error) {
	if limit.Rate <= 0 || limit.Period <= 0 {
		return nil, fmt.Errorf(
			"invalid rate limit: rate=%d period=%s", limit.Rate, limit.Period)
	}
	interval := limit.Period / time.Duration(limit.Rate)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > localEntryTTL {
		for k, e := range l.entries {
			if now.Sub(e.lastSeen) > localEntryTTL {
				delete(l.entries, k)
			}
		}
		l.lastSweep = now
	}

	entry, ok := l.entries[key]
	if !ok {
		entry = &localEntry{
			limiter: rate.NewLimiter(rate.Every(interval), limit.Burst),
		}
		l.entries[key] = entry
	}
	entry.lastSeen = now

	res := &redis_rate.Result{
		Limit:      limit,
		RetryAfter: -1,
		ResetAfter: interval,
	}
	if entry.limiter.AllowN(now, 1) {
		res.Allowed = 1
	} else {
		res.RetryAfter = interval
	}
	res.Remaining = max(int(entry.limiter.TokensAt(now)), 0)

	return res, nil
}

// Limit allows rate requests per window with the given burst.
func Limit(rate, burst int, window time.Duration) redis_rate.Limit {
	if window <= 0 {
		window = time.Minute
	}
	return redis_rate.Limit{
		Rate:   rate,
		Burst:  burst,
		Period: window,
	}
}
