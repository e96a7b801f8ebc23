package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scout"

// Metrics owns a private registry so multiple apps (tests) never collide.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	reportsCreated  prometheus.Counter
	verifications   prometheus.Counter
	reportsPurged   prometheus.Counter
	loginsThrottled prometheus.Counter
}

// New registers the HTTP and domain collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		reportsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_created_total",
			Help:      "Inspector reports submitted.",
		}),
		verifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_verifications_total",
			Help:      "Report verifications recorded.",
		}),
		reportsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_purged_total",
			Help:      "Expired reports removed by the sweeper.",
		}),
		loginsThrottled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_throttled_total",
			Help:      "Login attempts rejected by the rate limiter.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.reportsCreated,
		m.verifications,
		m.reportsPurged,
		m.loginsThrottled,
	)
	return m
}

// ObserveRequest records one completed HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) ReportCreated() {
	if m != nil {
		m.reportsCreated.Inc()
	}
}

func (m *Metrics) ReportVerified() {
	if m != nil {
		m.verifications.Inc()
	}
}

func (m *Metrics) ReportsPurged(n int64) {
	if m != nil {
		m.reportsPurged.Add(float64(n))
	}
}

func (m *Metrics) LoginThrottled() {
	if m != nil {
		m.loginsThrottled.Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
