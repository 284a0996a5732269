// Package cache holds the shared redis client and the cache-aside helpers
// used by repositories for user, article and question reads.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zanhu/internal/middleware"

	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// errorCounter feeds middleware.RedisErrors. A redis.Nil reply is a miss.
type errorCounter struct{}

func countFailure(command string, err error) {
	if err != nil && !errors.Is(err, redis.Nil) {
		middleware.RedisErrors.WithLabelValues(command).Inc()
	}
}

func (errorCounter) DialHook(next redis.DialHook) redis.DialHook { return next }

func (errorCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		countFailure(cmd.Name(), err)
		return err
	}
}

func (errorCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		countFailure("pipeline", err)
		return err
	}
}

// Options accepts either a redis:// URL or a bare host:port.
func Options(addr string) (*redis.Options, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("empty redis address")
	}

	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 3 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 2 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 2 * time.Second
	}
	return opts, nil
}

// Connect dials redis, installs the error counter and pings once.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	opts, err := Options(addr)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opts)
	c.AddHook(errorCounter{})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return c, nil
}

// InitRedis connects the package client. Failures leave the client nil: the
// API keeps serving from postgres and realtime delivery is disabled.
func InitRedis(addr string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Connect(ctx, addr)
	if err != nil {
		middleware.Logger.Warn("redis unavailable, continuing without cache or realtime",
			slog.String("error", err.Error()))
		client = nil
		return
	}
	client = c
	middleware.Logger.Info("redis connected", slog.String("addr", c.Options().Addr))
}

// GetClient returns the package client. It is nil when redis is unavailable.
func GetClient() *redis.Client {
	return client
}

// SetClient replaces the package client, e.g. with one pointed at miniredis.
func SetClient(c *redis.Client) {
	if c != nil {
		c.AddHook(errorCounter{})
	}
	client = c
}
