package api

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// rateLimiter is a fixed-window counter in Redis, shared across
// instances behind the same prefix.
type rateLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func newRateLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

func (r *rateLimiter) byClientIP() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := fmt.Sprintf("%s:%s", r.prefix, c.IP())
		ctx := context.Background()
		count, err := r.client.Incr(ctx, key).Result()
		if err != nil {
			// fail open: a limiter outage must not take auth down
			return c.Next()
		}
		if count == 1 {
			r.client.Expire(ctx, key, r.window)
		}
		if count > int64(r.limit) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded"})
		}
		return c.Next()
	}
}
