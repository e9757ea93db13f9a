// Package metrics exposes Prometheus collectors for the chat connection.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	connectionState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chatstream",
			Subsystem: "connection",
			Name:      "state",
			Help:      "Current connection state (0=idle, 1=connecting, 2=open, 3=closed).",
		},
	)
	connectAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chatstream",
			Subsystem: "connection",
			Name:      "connect_attempts_total",
			Help:      "Transport handles created, initial and retried.",
		},
	)
	reconnectLoops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chatstream",
			Subsystem: "reconnect",
			Name:      "loops_started_total",
			Help:      "Reconnect loops started.",
		},
	)
	heartbeatFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chatstream",
			Subsystem: "heartbeat",
			Name:      "failures_total",
			Help:      "Heartbeat samples that found the transport not open.",
		},
	)
	framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatstream",
			Subsystem: "frames",
			Name:      "received_total",
			Help:      "Inbound frames by parsed kind.",
		},
		[]string{"kind"},
	)
	framesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chatstream",
			Subsystem: "frames",
			Name:      "sent_total",
			Help:      "Outbound frames written to the transport.",
		},
	)
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatstream",
			Name:      "errors_total",
			Help:      "Errors by kind (transport, parse, send).",
		},
		[]string{"kind"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			connectionState,
			connectAttempts,
			reconnectLoops,
			heartbeatFailures,
			framesReceived,
			framesSent,
			errorsTotal,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

func SetConnectionState(state int) {
	RegisterMetrics()
	connectionState.Set(float64(state))
}

func RecordConnectAttempt() {
	RegisterMetrics()
	connectAttempts.Inc()
}

func RecordReconnectLoop() {
	RegisterMetrics()
	reconnectLoops.Inc()
}

func RecordHeartbeatFailure() {
	RegisterMetrics()
	heartbeatFailures.Inc()
}

func RecordFrameReceived(kind string) {
	RegisterMetrics()
	framesReceived.WithLabelValues(kind).Inc()
}

func RecordFrameSent() {
	RegisterMetrics()
	framesSent.Inc()
}

func RecordError(kind string) {
	RegisterMetrics()
	errorsTotal.WithLabelValues(kind).Inc()
}
