package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/yigit/libris/internal/app/models/dto"
	"github.com/yigit/libris/internal/metrics"
)

// Limiter decides whether the client identified by key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// TokenBucket is an in-memory per-key limiter refilled at perMinute tokens a minute
type TokenBucket struct {
	capacity float64
	perSec   float64
	now      func() time.Time
	// idle is the full-refill time; a bucket untouched that long is full and can be dropped
	idle time.Duration

	mu        sync.Mutex
	state     map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewTokenBucket creates a limiter holding at most burst tokens per key
func NewTokenBucket(perMinute, burst int) *TokenBucket {
	if burst <= 0 {
		burst = perMinute
	}
	perSec := float64(perMinute) / 60
	idle := time.Hour
	if perSec > 0 {
		idle = time.Duration(float64(burst) / perSec * float64(time.Second))
	}
	return &TokenBucket{
		capacity: float64(burst),
		perSec:   perSec,
		now:      time.Now,
		idle:     idle,
		state:    make(map[string]*bucket),
	}
}

// sweep drops buckets idle for at least the full-refill time
func (l *TokenBucket) sweep(now time.Time) {
	for key, b := range l.state {
		if now.Sub(b.last) >= l.idle {
			delete(l.state, key)
		}
	}
	l.lastSweep = now
}

// Allow takes one token for key if one is available
func (l *TokenBucket) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}

	b, ok := l.state[key]
	if !ok {
		l.state[key] = &bucket{tokens: l.capacity - 1, last: now}
		return true, nil
	}

	b.tokens += now.Sub(b.last).Seconds() * l.perSec
	if b.tokens > l.capacity {
		b.tokens = l.capacity
	}
	b.last = now

	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// RedisWindow counts requests per key in fixed one-minute windows shared by every replica
type RedisWindow struct {
	client *redis.Client
	limit  int64
	prefix string
	now    func() time.Time
}

// NewRedisWindow creates a limiter allowing perMinute requests per key and window
func NewRedisWindow(client *redis.Client, perMinute int) *RedisWindow {
	return &RedisWindow{
		client: client,
		limit:  int64(perMinute),
		prefix: "libris:ratelimit:",
		now:    time.Now,
	}
}

// Allow increments the key's counter for the current window
func (l *RedisWindow) Allow(ctx context.Context, key string) (bool, error) {
	window := l.now().Unix() / 60
	redisKey := l.prefix + key + ":" + strconv.FormatInt(window, 10)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.Expire(ctx, redisKey, 2*time.Minute)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate limit counter: %w", err)
	}
	return incr.Val() <= l.limit, nil
}

// RateLimit rejects clients over their limit with 429.
// Limiter failures let the request through so a redis outage does not take the API down.
func RateLimit(limiter Limiter, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if key == "" {
			key = "unknown"
		}

		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			log.Warn().Err(err).Str("client", key).Msg("Rate limiter unavailable, allowing request")
			c.Next()
			return
		}
		if !allowed {
			metrics.RateLimited.Inc()
			c.Header("Retry-After", "60")
			detail := dto.NewErrorDetail(dto.ErrorCodeRateLimited, "Too many requests").
				WithSeverity(dto.ErrorSeverityWarning)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponse(detail))
			return
		}
		c.Next()
	}
}
