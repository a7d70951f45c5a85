package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kdp_exporter"

// Metrics records exporter self-observations. It satisfies kdp.Observer and
// collector.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	rpcCalls       *prometheus.CounterVec
	rpcDuration    *prometheus.HistogramVec
	scrapes        prometheus.Counter
	scrapeDuration prometheus.Histogram
	failedSteps    prometheus.Gauge
	availability   *Window
}

// New builds the metrics and registers them with a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		rpcCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rpc_calls_total",
				Help:      "KDP API calls by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		rpcDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rpc_duration_seconds",
				Help:      "KDP API call latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		scrapes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrapes_total",
			Help:      "Scrapes run against the KDP API.",
		}),
		scrapeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scrape_duration_seconds",
			Help:      "Duration of a full scrape sequence.",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		failedSteps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_scrape_failed_steps",
			Help:      "Steps of the last scrape that produced no data.",
		}),
		availability: NewWindow(availabilityWindow),
	}

	availability := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "api_availability_ratio",
		Help:      "Share of successful pings over the last 20 scrapes.",
	}, m.availability.Ratio)

	m.registry.MustRegister(
		m.rpcCalls,
		m.rpcDuration,
		m.scrapes,
		m.scrapeDuration,
		m.failedSteps,
		availability,
	)
	return m
}

// ObserveRPC counts one gateway call.
func (m *Metrics) ObserveRPC(op, outcome string, elapsed time.Duration) {
	m.rpcCalls.WithLabelValues(op, outcome).Inc()
	m.rpcDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObservePing records one availability check.
func (m *Metrics) ObservePing(ok bool) { m.availability.Record(ok) }

// ObserveScrape records one finished scrape.
func (m *Metrics) ObserveScrape(elapsed time.Duration, failedSteps int) {
	m.scrapes.Inc()
	m.scrapeDuration.Observe(elapsed.Seconds())
	m.failedSteps.Set(float64(failedSteps))
}

// Availability returns the current ping success ratio.
func (m *Metrics) Availability() float64 { return m.availability.Ratio() }

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
