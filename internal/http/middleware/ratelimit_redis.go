package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"finance_tracker/internal/logger"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

// NewRedisClient connects to Redis. It returns nil when addr is empty or the
// server does not answer a ping, and callers then limit in process.
func NewRedisClient(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, rate limiting in process", "addr", addr, "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// RateLimiter implements fixed-window limits with Redis INCR/EXPIRE.
// Without a client it falls back to an in-process window; on Redis errors
// it fails open.
type RateLimiter struct {
	client *redis.Client
	local  *localWindow
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client, local: newLocalWindow()}
}

// PerIP limits requests per client address.
// key format: rl:<window_seconds>:<ip>
func (l *RateLimiter) PerIP(maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "rl:" + strconv.FormatInt(int64(window.Seconds()), 10) + ":" + c.ClientIP()
		l.apply(c, key, c.FullPath(), maxRequests, window, "rate limit exceeded")
	}
}

// PerUser limits requests per authenticated user under a named bucket.
// Identity middleware must run first.
// key format: rl:<bucket>:<user_id>:<window_seconds>
func (l *RateLimiter) PerUser(bucket string, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := IdentityFrom(c)
		if id == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		key := "rl:" + bucket + ":" + id.UserID + ":" + strconv.FormatInt(int64(window.Seconds()), 10)

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		l.apply(c, key, bucket+":"+c.FullPath(), maxRequests, window, bucket+" rate limit exceeded")
	}
}

func (l *RateLimiter) apply(c *gin.Context, key, endpoint string, maxRequests int, window time.Duration, msg string) {
	count, ok := l.count(c.Request.Context(), key, window)
	if !ok {
		c.Header("X-RateLimit-Error", "redis-error")
		c.Next()
		return
	}

	if count > int64(maxRequests) {
		RLBlocked.WithLabelValues(endpoint).Inc()
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":       msg,
			"retry_after": int(window.Seconds()),
		})
		return
	}

	RLRequests.WithLabelValues(endpoint).Inc()
	c.Next()
}

// count returns the hits in the current window; ok is false on a Redis error.
func (l *RateLimiter) count(ctx context.Context, key string, window time.Duration) (int64, bool) {
	if l.client == nil {
		return int64(l.local.hit(key, window)), true
	}

	val, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		logger.WithContext(ctx).Warn("rate limiter redis error, allowing request", "error", err)
		return 0, false
	}
	if val == 1 {
		l.client.Expire(ctx, key, window)
	}
	return val, true
}
