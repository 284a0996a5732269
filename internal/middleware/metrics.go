package middleware

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts failed redis commands by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zanhu_redis_errors_total",
		Help: "Total number of Redis command errors",
	}, []string{"command"})

	// ActiveWebSockets is the number of open notification sockets.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "zanhu_active_websockets",
		Help: "Number of active WebSocket connections",
	})

	// RateLimited counts requests rejected by RateLimit, by resource.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zanhu_rate_limited_total",
		Help: "Total number of requests rejected by the rate limiter",
	}, []string{"resource"})
)

// InitMetrics builds the HTTP metrics collector for serviceName.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	return fiberprometheus.New(serviceName)
}

// MetricsMiddleware records request counts and latencies on prom.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	return prom.Middleware
}
