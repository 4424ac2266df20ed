package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the bridge collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	GateWait        prometheus.Histogram
	TerminalCalls   *prometheus.CounterVec
	PollCycles      prometheus.Counter
	TicksBroadcast  *prometheus.CounterVec
	DeliveryErrors  prometheus.Counter
	Sessions        prometheus.Gauge
	Resolutions     *prometheus.CounterVec
	RelayPublishErr prometheus.Counter
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		gatherer: reg,
		GateWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "terminal_gate_wait_seconds",
			Help:    "Time spent waiting for exclusive terminal access",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		TerminalCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "terminal_calls_total", Help: "Terminal calls by operation and outcome"},
			[]string{"op", "outcome"},
		),
		PollCycles: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "poll_cycles_total", Help: "Completed poll cycles"},
		),
		TicksBroadcast: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "ticks_broadcast_total", Help: "Fresh ticks handed to the bus"},
			[]string{"symbol"},
		),
		DeliveryErrors: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "delivery_errors_total", Help: "Frames that could not be delivered to a session"},
		),
		Sessions: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "stream_sessions", Help: "Connected streaming sessions"},
		),
		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "symbol_resolutions_total", Help: "Symbol resolutions by outcome"},
			[]string{"outcome"},
		),
		RelayPublishErr: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "relay_publish_errors_total", Help: "Failed relay publishes"},
		),
	}
	reg.MustRegister(
		m.GateWait, m.TerminalCalls, m.PollCycles, m.TicksBroadcast,
		m.DeliveryErrors, m.Sessions, m.Resolutions, m.RelayPublishErr,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.gatherer
}

func (m *Metrics) ObserveGateWait(d time.Duration) {
	if m == nil {
		return
	}
	m.GateWait.Observe(d.Seconds())
}

func (m *Metrics) TerminalCall(op, outcome string) {
	if m == nil {
		return
	}
	m.TerminalCalls.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) PollCycle() {
	if m == nil {
		return
	}
	m.PollCycles.Inc()
}

func (m *Metrics) TickBroadcast(symbol string) {
	if m == nil {
		return
	}
	m.TicksBroadcast.WithLabelValues(symbol).Inc()
}

func (m *Metrics) DeliveryError() {
	if m == nil {
		return
	}
	m.DeliveryErrors.Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.Sessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.Sessions.Dec()
}

func (m *Metrics) Resolution(outcome string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RelayError() {
	if m == nil {
		return
	}
	m.RelayPublishErr.Inc()
}
