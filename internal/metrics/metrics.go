package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	BookingOutcomes *prometheus.CounterVec
	LockWait        *prometheus.HistogramVec
	RateLimited     prometheus.Counter
	BreakerState    *prometheus.GaugeVec
	NoShowsSwept    prometheus.Counter
}

// NewCollector registers every metric on reg. Tests pass a fresh
// prometheus.NewRegistry() so collectors never clash.
func NewCollector(reg prometheus.Registerer, namespace string) *Collector {
	f := promauto.With(reg)
	return &Collector{
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),

		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "route"}),

		InFlightGauge: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		BookingOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "booking_outcomes_total",
			Help:      "Booking engine results by operation and outcome.",
		}, []string{"operation", "outcome"}),

		LockWait: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting for slot locks before the guarded section ran.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"operation"}),

		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),

		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "circuit_breaker_open",
			Help:      "1 while the named store circuit breaker is open or half-open.",
		}, []string{"name"}),

		NoShowsSwept: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "no_shows_swept_total",
			Help:      "Appointments moved to no-show by the worker.",
		}),
	}
}

func (c *Collector) ObserveBooking(operation, outcome string) {
	if c == nil {
		return
	}
	c.BookingOutcomes.WithLabelValues(operation, outcome).Inc()
}

func (c *Collector) ObserveLockWait(operation string, waited time.Duration) {
	if c == nil {
		return
	}
	c.LockWait.WithLabelValues(operation).Observe(waited.Seconds())
}

func (c *Collector) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveRateLimited() {
	if c == nil {
		return
	}
	c.RateLimited.Inc()
}

func (c *Collector) ObserveNoShows(n int) {
	if c == nil {
		return
	}
	c.NoShowsSwept.Add(float64(n))
}

func (c *Collector) SetBreakerState(name, state string) {
	if c == nil {
		return
	}
	v := 1.0
	if state == "closed" {
		v = 0
	}
	c.BreakerState.WithLabelValues(name).Set(v)
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
