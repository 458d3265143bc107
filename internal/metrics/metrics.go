// Package metrics exposes Prometheus instrumentation for the tally server.
//
// All recording methods are safe to call on a nil *Metrics, which lets
// components run uninstrumented in tests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "votecast"

// Vote results.
const (
	ResultAccepted  = "accepted"
	ResultDenied    = "denied"
	ResultNotFound  = "not_found"
	ResultMalformed = "malformed"
)

// Admin request results.
const (
	AdminGranted = "granted"
	AdminDenied  = "denied"
)

type Metrics struct {
	Votes             *prometheus.CounterVec
	VotesByOption     *prometheus.CounterVec
	AdminRequests     *prometheus.CounterVec
	ActiveConnections prometheus.Gauge
	AuthorizedConns   prometheus.Gauge
	Broadcasts        prometheus.Counter
	MessagesSent      prometheus.Counter
	SlowClientDrops   prometheus.Counter
}

// NewRegistry creates a registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler serves the metrics gathered by reg.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// New creates the tally metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_submitted_total",
			Help:      "Vote submissions, by result.",
		}, []string{"result"}),
		VotesByOption: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_applied_total",
			Help:      "Accepted votes, by unit and option.",
		}, []string{"unit", "option"}),
		AdminRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admin_requests_total",
			Help:      "Admin authorization attempts, by result.",
		}, []string{"result"}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of live WebSocket connections.",
		}),
		AuthorizedConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "authorized_connections",
			Help:      "Number of live connections holding admin rights.",
		}),
		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Snapshots fanned out to all connections.",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "messages_queued_total",
			Help:      "Messages queued to individual connections.",
		}),
		SlowClientDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "slow_client_drops_total",
			Help:      "Connections dropped because their send queue was full.",
		}),
	}

	reg.MustRegister(
		m.Votes, m.VotesByOption, m.AdminRequests,
		m.ActiveConnections, m.AuthorizedConns,
		m.Broadcasts, m.MessagesSent, m.SlowClientDrops,
	)
	return m
}

func (m *Metrics) VoteResult(result string) {
	if m == nil {
		return
	}
	m.Votes.WithLabelValues(result).Inc()
}

func (m *Metrics) VoteApplied(unit, option string) {
	if m == nil {
		return
	}
	m.Votes.WithLabelValues(ResultAccepted).Inc()
	m.VotesByOption.WithLabelValues(unit, option).Inc()
}

func (m *Metrics) AdminRequest(result string) {
	if m == nil {
		return
	}
	m.AdminRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) SetConnections(active, authorized int) {
	if m == nil {
		return
	}
	m.ActiveConnections.Set(float64(active))
	m.AuthorizedConns.Set(float64(authorized))
}

func (m *Metrics) Broadcast(recipients int) {
	if m == nil {
		return
	}
	m.Broadcasts.Inc()
	m.MessagesSent.Add(float64(recipients))
}

func (m *Metrics) Unicast() {
	if m == nil {
		return
	}
	m.MessagesSent.Inc()
}

func (m *Metrics) SlowClientDropped() {
	if m == nil {
		return
	}
	m.SlowClientDrops.Inc()
}
