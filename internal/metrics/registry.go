// Package metrics exposes the engine's Prometheus instrumentation:
// tick-to-decision latency, arbitrage opportunities emitted, risk
// rejections, and stream reconnects.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry holds every metric the engine publishes.
type Registry struct {
	TickLatency *prometheus.HistogramVec

	OpportunitiesEmitted *prometheus.CounterVec
	OpportunitiesTraded  *prometheus.CounterVec

	RiskRejections *prometheus.CounterVec
	RiskHalts      prometheus.Counter

	StreamReconnects *prometheus.CounterVec
	StreamState      prometheus.Gauge
	PacketsDropped   prometheus.Counter

	handler http.Handler
}

// New builds and registers every engine metric against its own
// registry, so tests can construct one without colliding with the
// global prometheus.DefaultRegisterer.
func New() *Registry {
	reg := &Registry{
		TickLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "triarb_tick_latency_seconds",
				Help:    "Time from quote receipt to strategy dispatch completion",
				Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
			},
			[]string{"symbol"},
		),

		OpportunitiesEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triarb_opportunities_emitted_total",
				Help: "Total triangular arbitrage opportunities emitted by direction",
			},
			[]string{"direction"},
		),

		OpportunitiesTraded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triarb_opportunities_traded_total",
				Help: "Total triangular arbitrage opportunities handed to the arb sink",
			},
			[]string{"direction"},
		),

		RiskRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triarb_risk_rejections_total",
				Help: "Total orders rejected at the pre-trade risk gate by reason",
			},
			[]string{"reason"},
		),

		RiskHalts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "triarb_risk_halts_total",
				Help: "Total times the risk manager transitioned into a halted state",
			},
		),

		StreamReconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "triarb_stream_reconnects_total",
				Help: "Total stream reconnect attempts by outcome",
			},
			[]string{"outcome"},
		),

		StreamState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "triarb_stream_state",
				Help: "Current stream state (0=disconnected,1=connecting,2=connected,3=receiving,4=stale)",
			},
		),

		PacketsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "triarb_telemetry_packets_dropped_total",
				Help: "Total telemetry packets inferred dropped from sequence gaps",
			},
		),
	}

	registerer := prometheus.NewRegistry()
	registerer.MustRegister(
		reg.TickLatency,
		reg.OpportunitiesEmitted,
		reg.OpportunitiesTraded,
		reg.RiskRejections,
		reg.RiskHalts,
		reg.StreamReconnects,
		reg.StreamState,
		reg.PacketsDropped,
	)
	reg.handler = promhttp.HandlerFor(registerer, promhttp.HandlerOpts{})

	return reg
}

// Handler returns the HTTP handler serving this registry's metrics.
func (r *Registry) Handler() http.Handler {
	return r.handler
}

// TickTimer measures one tick's processing latency.
type TickTimer struct {
	reg    *Registry
	symbol string
	start  time.Time
}

// StartTick begins timing a symbol's tick-processing path.
func (r *Registry) StartTick(symbol string) *TickTimer {
	return &TickTimer{reg: r, symbol: symbol, start: time.Now()}
}

// Stop records the elapsed time since StartTick.
func (t *TickTimer) Stop() {
	t.reg.TickLatency.WithLabelValues(t.symbol).Observe(time.Since(t.start).Seconds())
}

// RecordOpportunity records an emitted arbitrage opportunity.
func (r *Registry) RecordOpportunity(direction string) {
	r.OpportunitiesEmitted.WithLabelValues(direction).Inc()
}

// RecordTrade records an opportunity forwarded to the arb sink.
func (r *Registry) RecordTrade(direction string) {
	r.OpportunitiesTraded.WithLabelValues(direction).Inc()
}

// RecordRejection records a pre-trade risk rejection.
func (r *Registry) RecordRejection(reason string) {
	r.RiskRejections.WithLabelValues(reason).Inc()
	log.Debug().Str("reason", reason).Msg("risk rejection recorded")
}

// RecordHalt records a halt transition.
func (r *Registry) RecordHalt() {
	r.RiskHalts.Inc()
}

// RecordReconnect records a stream reconnect attempt outcome.
func (r *Registry) RecordReconnect(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	r.StreamReconnects.WithLabelValues(outcome).Inc()
}

// SetStreamState publishes the stream's current state as a gauge value.
func (r *Registry) SetStreamState(v float64) {
	r.StreamState.Set(v)
}

// AddPacketsDropped increments the dropped-telemetry counter by n.
func (r *Registry) AddPacketsDropped(n float64) {
	r.PacketsDropped.Add(n)
}
