package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// RateLimiter - фиксированное окно в Redis: INCR ключа текущего окна и EXPIRE
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{client: client, limit: limit, window: window, prefix: "ratelimit", now: time.Now}
}

// Allow считает запрос и говорит, укладывается ли он в лимит
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	bucket := l.now().UnixNano() / int64(l.window)
	redisKey := l.prefix + ":" + key + ":" + strconv.FormatInt(bucket, 10)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, redisKey)
		p.Expire(ctx, redisKey, l.window)
		return nil
	})
	if err != nil {
		return true, l.limit, eris.Wrap(err, "rate limit pipeline")
	}

	count := int(incr.Val())
	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= l.limit, remaining, nil
}

// Middleware ограничивает по участнику, а без авторизации - по IP.
// При недоступном Redis запрос пропускается.
func (l *RateLimiter) Middleware(log *slog.Logger) gin.HandlerFunc {
	if l == nil || l.client == nil || l.limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		key := c.ClientIP()
		if id, ok := ParticipantID(c); ok {
			key = id
		}

		allowed, remaining, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			log.Warn("rate limiter недоступен", "error", err)
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(l.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "слишком много запросов", "code": "rate_limited"})
			return
		}
		c.Next()
	}
}
