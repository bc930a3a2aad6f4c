package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/recipecast/api/internal/apperr"
)

const defaultRedisKey = "ratelimit:llm"

// RedisWindow shares one fixed window across processes using INCR and EXPIRE.
type RedisWindow struct {
	redis  *redis.Client
	key    string
	limit  int
	window time.Duration
	log    *logrus.Entry
}

// NewRedisWindow creates a Redis-backed window under the default key.
func NewRedisWindow(redisClient *redis.Client, limit int, window time.Duration, log *logrus.Entry) *RedisWindow {
	if limit <= 0 {
		limit = 20
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisWindow{
		redis:  redisClient,
		key:    defaultRedisKey,
		limit:  limit,
		window: window,
		log:    log,
	}
}

// Acquire increments the shared counter and rejects once it passes the limit.
// A Redis outage lets the call through.
func (w *RedisWindow) Acquire(ctx context.Context) error {
	count, err := w.redis.Incr(ctx, w.key).Result()
	if err != nil {
		w.log.WithError(err).Warn("rate limit counter unavailable, allowing call")
		return nil
	}

	// First hit opens the window
	if count == 1 {
		if err := w.redis.Expire(ctx, w.key, w.window).Err(); err != nil {
			w.log.WithError(err).Warn("failed to set rate limit window expiry")
		}
	}

	if count > int64(w.limit) {
		ttl, err := w.redis.TTL(ctx, w.key).Result()
		if err != nil {
			w.log.WithError(err).Warn("failed to read rate limit window expiry")
		} else if ttl < 0 {
			// A key left without expiry would block forever
			if err := w.redis.Expire(ctx, w.key, w.window).Err(); err != nil {
				w.log.WithError(err).WithField("key", w.key).Error("failed to restore rate limit window expiry")
			} else {
				w.log.WithField("key", w.key).Warn("restored missing rate limit window expiry")
			}
		}
		return apperr.ErrRateLimitExceeded
	}

	return nil
}
