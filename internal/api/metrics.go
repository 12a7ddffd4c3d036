package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics is the server's own Prometheus registry. It observes every
// dispatched request.
type metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(version string) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rpihome_requests_total",
			Help: "Number of dispatched requests by method, verb and status",
		}, []string{"method", "verb", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rpihome_request_duration_seconds",
			Help:    "Time spent handling dispatched requests",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"method", "verb"}),
	}

	build := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "rpihome_build_info",
		Help:        "Build information",
		ConstLabels: prometheus.Labels{"version": version},
	})
	build.Set(1)

	m.registry.MustRegister(
		m.requests,
		m.duration,
		build,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest implements dispatch.Observer.
func (m *metrics) ObserveRequest(method, verb string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, verb, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, verb).Observe(d.Seconds())
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
