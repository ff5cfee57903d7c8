// Package observability exposes the daemon's Prometheus metrics and the
// optional debug HTTP server (/healthz, /metrics, /broadcasts, pprof).
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultAccepted = "accepted"
	ResultRejected = "rejected"
	ResultFiltered = "filtered"
)

// Metrics holds the daemon's collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	broadcasts      *prometheus.CounterVec
	publishDuration prometheus.Histogram
	requests        *prometheus.CounterVec
	queueDepth      prometheus.Gauge
	peers           prometheus.Gauge
	state           prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,

		// broadcasts tracks publish attempts by trigger and result
		broadcasts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dailystoic_broadcasts_total",
				Help: "Broadcast publish attempts by trigger (schedule/request/startup) and result (ok/error)",
			},
			[]string{"trigger", "result"},
		),
		publishDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dailystoic_publish_duration_seconds",
				Help:    "Duration of a single broadcast publish call",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
			},
		),
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dailystoic_requests_total",
				Help: "Inbound messages by result (accepted/rejected/filtered)",
			},
			[]string{"result"},
		),
		queueDepth: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "dailystoic_request_queue_depth",
				Help: "Requests waiting for the drain loop",
			},
		),
		peers: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "dailystoic_peers",
				Help: "Peer count observed by the last readiness check",
			},
		),
		state: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "dailystoic_state",
				Help: "Lifecycle state (0=initializing, 1=connecting, 2=ready, 3=running, 4=shutting_down, 5=failed)",
			},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) ObserveBroadcast(trigger string, err error, took time.Duration) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.broadcasts.WithLabelValues(trigger, result).Inc()
	m.publishDuration.Observe(took.Seconds())
}

func (m *Metrics) ObserveRequest(result string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(result).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) SetPeers(n int) {
	if m == nil {
		return
	}
	m.peers.Set(float64(n))
}

func (m *Metrics) SetState(state int) {
	if m == nil {
		return
	}
	m.state.Set(float64(state))
}
