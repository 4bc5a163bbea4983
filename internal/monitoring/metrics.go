package monitoring

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sudo-init-do/quickquid/internal/apperr"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Marketplace metrics
	Transitions    *prometheus.CounterVec
	CatalogQueries *prometheus.CounterVec
	Notifications  *prometheus.CounterVec
	ExpiredSwept   prometheus.Counter

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

var (
	metrics *Metrics
	once    sync.Once
)

// Init initializes all Prometheus metrics
func Init() *Metrics {
	once.Do(func() {
		metrics = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request duration in seconds",
					Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
				},
				[]string{"method", "path"},
			),
			HTTPRequestsInFlight: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "http_requests_in_flight",
					Help: "Number of HTTP requests currently being processed",
				},
			),

			Transitions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "marketplace_transitions_total",
					Help: "Committed lifecycle transitions by entity and resulting status",
				},
				[]string{"entity", "status"},
			),
			CatalogQueries: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "catalog_queries_total",
					Help: "Catalog queries by sort key and cache outcome",
				},
				[]string{"sort", "cache"},
			),
			Notifications: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "notifications_total",
					Help: "Published marketplace events by type and result",
				},
				[]string{"type", "result"},
			),
			ExpiredSwept: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "hire_requests_expired_total",
					Help: "Pending hire requests moved to expired by the sweeper",
				},
			),

			DBConnectionsActive: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "db_connections_active",
					Help: "Number of active database connections",
				},
			),
			DBConnectionsIdle: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "db_connections_idle",
					Help: "Number of idle database connections",
				},
			),
		}
	})
	return metrics
}

// Get returns the global metrics instance
func Get() *Metrics {
	return Init()
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// EchoHandler returns an echo-compatible handler for Prometheus metrics
func EchoHandler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

// MetricsMiddleware is an echo middleware for collecting HTTP metrics
func MetricsMiddleware() echo.MiddlewareFunc {
	m := Get()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			path := c.Path()
			if path == "" {
				path = c.Request().URL.Path
			}
			method := c.Request().Method

			m.HTTPRequestsInFlight.Inc()
			defer m.HTTPRequestsInFlight.Dec()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status, _ = apperr.Classify(err)
				}
			}

			m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// RecordTransition records a committed state change
func RecordTransition(entity, status string) {
	Get().Transitions.WithLabelValues(entity, status).Inc()
}

// RecordCatalogQuery records a catalog query; cache is "hit", "miss" or "off"
func RecordCatalogQuery(sort, cache string) {
	Get().CatalogQueries.WithLabelValues(sort, cache).Inc()
}

// RecordNotification records the outcome of publishing an event
func RecordNotification(eventType, result string) {
	Get().Notifications.WithLabelValues(eventType, result).Inc()
}

// RecordExpired records requests expired by a sweep
func RecordExpired(n int) {
	Get().ExpiredSwept.Add(float64(n))
}

// SetDBConnections sets database connection metrics
func SetDBConnections(active, idle int) {
	Get().DBConnectionsActive.Set(float64(active))
	Get().DBConnectionsIdle.Set(float64(idle))
}
