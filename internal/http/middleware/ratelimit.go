package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig config for the Redis-based inbound limiter.
type RateLimitConfig struct {
	Redis     *redis.Client
	MaxPerMin int           // messages per sender phone per window
	KeyPrefix string        // e.g. "rl:phone:"
	Window    time.Duration // usually 1m
}

// RateLimitByPhone applies a fixed-window limit keyed on the webhook form's
// From field. A flooding sender gets silently throttled; legitimate SMS
// traffic never comes close to the limit.
func RateLimitByPhone(cfg RateLimitConfig) echo.MiddlewareFunc {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rl:phone:"
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			phone := strings.TrimSpace(c.FormValue("From"))
			if phone == "" || cfg.MaxPerMin <= 0 || cfg.Redis == nil {
				// nothing to key on or no limit configured (dev): allow
				return next(c)
			}

			now := time.Now()
			window := now.Unix() / int64(cfg.Window/time.Second)
			key := cfg.KeyPrefix + phone + ":" + strconv.FormatInt(window, 10)

			pipe := cfg.Redis.Pipeline()
			cnt := pipe.Incr(c.Request().Context(), key)
			pipe.Expire(c.Request().Context(), key, cfg.Window*2)
			if _, err := pipe.Exec(c.Request().Context()); err != nil {
				return next(c)
			}

			if cnt.Val() > int64(cfg.MaxPerMin) {
				return c.String(http.StatusTooManyRequests, "rate limited")
			}
			return next(c)
		}
	}
}
