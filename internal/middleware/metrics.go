package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts failed Redis commands by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warbler_redis_errors_total",
		Help: "Total number of Redis command errors by command",
	}, []string{"command"})

	// AuthEvents counts signup, login and logout outcomes.
	AuthEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warbler_auth_events_total",
		Help: "Authentication events by kind and outcome",
	}, []string{"event", "outcome"})

	// SocialActions counts message, follow and like mutations.
	SocialActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warbler_social_actions_total",
		Help: "Message, follow and like mutations by action",
	}, []string{"action"})

	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// InitMetrics returns the process-wide HTTP metrics collector. The collector
// registers with the default Prometheus registry, so it is built once.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.New(serviceName)
	})
	return prom
}

// MetricsMiddleware records request counts and latencies.
func MetricsMiddleware(p *fiberprometheus.FiberPrometheus) fiber.Handler {
	return p.Middleware
}

// RecordAuth increments the auth event counter.
func RecordAuth(event, outcome string) {
	AuthEvents.WithLabelValues(event, outcome).Inc()
}

// RecordAction increments the social action counter.
func RecordAction(action string) {
	SocialActions.WithLabelValues(action).Inc()
}
