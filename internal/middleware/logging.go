package middleware

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"zanhu/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// Logger is the process-wide structured logger. Records logged with a
// request context carry request_id, user_id and trace_id.
var Logger *slog.Logger

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	UserIDKey    contextKey = "user_id"
	TraceIDKey   contextKey = "trace_id"
)

// WithUserID stamps the authenticated user on ctx for later log records.
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

type ctxHandler struct {
	slog.Handler
}

func (h *ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, key := range []contextKey{RequestIDKey, UserIDKey, TraceIDKey} {
		switch v := ctx.Value(key).(type) {
		case string:
			if v != "" {
				r.AddAttrs(slog.String(string(key), v))
			}
		case uint:
			r.AddAttrs(slog.Uint64(string(key), uint64(v)))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ctxHandler{h.Handler.WithAttrs(attrs)}
}

func (h *ctxHandler) WithGroup(name string) slog.Handler {
	return &ctxHandler{h.Handler.WithGroup(name)}
}

func init() {
	Logger = NewLogger(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
	observability.SetLogger(Logger)
}

// NewLogger builds the context-aware logger: JSON in production, text elsewhere.
func NewLogger(env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	switch strings.ToLower(env) {
	case "production", "prod", "staging":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(&ctxHandler{handler})
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	switch s := strings.ToLower(strings.TrimSpace(level)); s {
	case "warning":
		return slog.LevelWarn
	case "":
		return slog.LevelInfo
	default:
		if err := l.UnmarshalText([]byte(s)); err != nil {
			return slog.LevelInfo
		}
		return l
	}
}

// ContextMiddleware copies the request id from fiber locals into the user
// context. Auth adds the user id itself once the token is verified.
func ContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			c.SetUserContext(context.WithValue(c.UserContext(), RequestIDKey, rid))
		}
		return c.Next()
	}
}

// StructuredLogger writes one record per request. 5xx and handler errors log
// at error, 4xx at warn, health checks and scrapes at debug.
func StructuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" && r.Path != "/" {
			route = r.Path
		}

		attrs := []any{
			slog.Int("status", status),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("route", route),
			slog.String("ip", c.IP()),
			slog.Duration("latency", time.Since(start)),
			slog.Int("bytes", len(c.Response().Body())),
			slog.String("user_agent", c.Get(fiber.HeaderUserAgent)),
		}

		ctx := c.UserContext()
		switch {
		case err != nil:
			Logger.ErrorContext(ctx, "request failed", append(attrs, slog.String("error", err.Error()))...)
		case status >= fiber.StatusInternalServerError:
			Logger.ErrorContext(ctx, "request failed", attrs...)
		case isHealthPath(c.Path()):
			Logger.DebugContext(ctx, "request", attrs...)
		case status >= fiber.StatusBadRequest:
			Logger.WarnContext(ctx, "request rejected", attrs...)
		default:
			Logger.InfoContext(ctx, "request", attrs...)
		}
		return err
	}
}

func isHealthPath(path string) bool {
	return strings.HasPrefix(path, "/health") || path == "/metrics"
}
