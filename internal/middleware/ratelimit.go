package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy decides what happens to a request when redis cannot be reached.
type FailPolicy int

const (
	FailOpen FailPolicy = iota
	FailClosed
)

// Limit is a fixed-window quota for one named action.
type Limit struct {
	Name   string
	Max    int
	Window time.Duration
	Policy FailPolicy
}

// Verdict is the outcome of counting one request against a Limit.
type Verdict struct {
	Allowed   bool
	Remaining int
	RetryIn   time.Duration
}

var errNoStore = errors.New("rate limit store unavailable")

// throttlingDisabled keeps local and load-test environments unthrottled.
func throttlingDisabled() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development", "stress":
		return true
	}
	return false
}

func rateLimitKey(name, subject string) string {
	return "rl:" + name + ":" + subject
}

// Take counts one hit for subject under l.
func Take(ctx context.Context, rdb *redis.Client, l Limit, subject string) (Verdict, error) {
	if throttlingDisabled() {
		return Verdict{Allowed: true, Remaining: l.Max}, nil
	}
	if rdb == nil {
		return Verdict{}, errNoStore
	}

	key := rateLimitKey(l.Name, subject)
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	if _, err := rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		ttl = p.TTL(ctx, key)
		return nil
	}); err != nil {
		return Verdict{}, err
	}

	hits := incr.Val()
	retry := ttl.Val()
	// A fresh key, or one that lost its expiry, starts a new window.
	if hits == 1 || retry < 0 {
		if err := rdb.Expire(ctx, key, l.Window).Err(); err != nil {
			return Verdict{}, err
		}
		retry = l.Window
	}

	remaining := l.Max - int(hits)
	if remaining < 0 {
		remaining = 0
	}
	return Verdict{Allowed: hits <= int64(l.Max), Remaining: remaining, RetryIn: retry}, nil
}

// rateSubject keys authenticated callers by user and everyone else by IP.
func rateSubject(c *fiber.Ctx) string {
	if uid := c.Locals("userID"); uid != nil {
		return fmt.Sprintf("user:%v", uid)
	}
	return "ip:" + c.IP()
}

// RateLimit enforces l on every request passing through the handler.
func RateLimit(rdb *redis.Client, l Limit) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		name := l.Name
		if name == "" {
			name = c.Path()
		}

		v, err := Take(ctx, rdb, Limit{Name: name, Max: l.Max, Window: l.Window}, rateSubject(c))
		if err != nil {
			if l.Policy == FailOpen {
				return c.Next()
			}
			Logger.WarnContext(ctx, "rate limit store unavailable, failing closed",
				slog.String("limit", name), slog.String("error", err.Error()))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "rate limit unavailable"})
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(l.Max))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(v.Remaining))
		if !v.Allowed {
			RateLimited.WithLabelValues(name).Inc()
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(v.RetryIn.Round(time.Second).Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded"})
		}
		return c.Next()
	}
}
