package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/AnshRaj112/quill-backend/pkg/clientip"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	// RateLimitWindow is 120 seconds
	RateLimitWindow = 120 * time.Second
	// RateLimitMaxRequests is the number of API requests one IP may make per window
	RateLimitMaxRequests = 300
	// RateLimitKeyPrefix is the Redis key prefix for rate limiting
	RateLimitKeyPrefix = "ratelimit:"
	// BlockedIPKeyPrefix is the Redis key prefix for blocked IPs
	BlockedIPKeyPrefix = "blocked_ip:"
	// BlockedIPDuration is how long an IP stays blocked
	BlockedIPDuration = 15 * time.Minute
)

// RateLimiter is a Redis fixed-window counter per IP that blocks an IP for a while once it
// exceeds the window. Shared across instances.
type RateLimiter struct {
	rdb         *redis.Client
	window      time.Duration
	maxRequests int
	log         logrus.FieldLogger
}

func NewRateLimiter(rdb *redis.Client, log logrus.FieldLogger) *RateLimiter {
	return &RateLimiter{rdb: rdb, window: RateLimitWindow, maxRequests: RateLimitMaxRequests, log: log}
}

// Middleware counts the request and rejects it once the IP is over the limit.
// Redis failures let the request through.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ip := clientip.RealClientIP(r)

		blocked, err := l.IsIPBlocked(ctx, ip)
		if err == nil && blocked {
			writeError(w, http.StatusTooManyRequests, "Your IP has been temporarily blocked due to excessive requests. Please try again later.", "")
			return
		}

		key := RateLimitKeyPrefix + ip
		n, err := l.rdb.Incr(ctx, key).Result()
		if err != nil {
			l.log.WithError(err).Debug("rate limit counter unavailable")
			next.ServeHTTP(w, r)
			return
		}
		if n == 1 {
			// first request opens the window
			l.rdb.Expire(ctx, key, l.window)
		}
		count := int(n)

		if count > l.maxRequests {
			if err := l.rdb.Set(ctx, BlockedIPKeyPrefix+ip, "1", BlockedIPDuration).Err(); err == nil {
				l.log.WithField("ip", ip).Warn("ip blocked after exceeding rate limit")
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(BlockedIPDuration.Seconds())))
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Your IP has been temporarily blocked. Please try again later.", "")
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.maxRequests))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(l.maxRequests-count))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(l.window).Unix(), 10))
		next.ServeHTTP(w, r)
	})
}

// UnblockIP removes an IP from the blocked list
func (l *RateLimiter) UnblockIP(ctx context.Context, ip string) error {
	return l.rdb.Del(ctx, BlockedIPKeyPrefix+ip).Err()
}

// IsIPBlocked checks if an IP is currently blocked
func (l *RateLimiter) IsIPBlocked(ctx context.Context, ip string) (bool, error) {
	n, err := l.rdb.Exists(ctx, BlockedIPKeyPrefix+ip).Result()
	return n > 0, err
}
