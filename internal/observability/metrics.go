package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	messagesPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulsewire",
			Subsystem: "transport",
			Name:      "published_total",
			Help:      "Messages published to the broker.",
		},
		[]string{"node", "queue"},
	)
	messagesConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulsewire",
			Subsystem: "transport",
			Name:      "consumed_total",
			Help:      "Messages consumed and acknowledged.",
		},
		[]string{"node", "queue"},
	)
	transportErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulsewire",
			Subsystem: "transport",
			Name:      "errors_total",
			Help:      "Publish and consume failures.",
		},
		[]string{"node", "direction"},
	)
	reconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulsewire",
			Subsystem: "transport",
			Name:      "reconnects_total",
			Help:      "Broker reconnection attempts that completed.",
		},
		[]string{"node"},
	)
	signalsDecoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pulsewire",
			Subsystem: "decode",
			Name:      "signals_total",
			Help:      "Signals handled by the decode node.",
		},
		[]string{"node", "outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			messagesPublished,
			messagesConsumed,
			transportErrors,
			reconnects,
			signalsDecoded,
		)
	})
}

func RecordPublish(node, queue string) {
	RegisterMetrics()
	messagesPublished.WithLabelValues(node, queue).Inc()
}

func RecordConsume(node, queue string) {
	RegisterMetrics()
	messagesConsumed.WithLabelValues(node, queue).Inc()
}

func RecordTransportError(node, direction string) {
	RegisterMetrics()
	transportErrors.WithLabelValues(node, direction).Inc()
}

func RecordReconnect(node string) {
	RegisterMetrics()
	reconnects.WithLabelValues(node).Inc()
}

// RecordSignalOutcome counts decode-node dispositions: "decoded",
// "unknown", or "dropped".
func RecordSignalOutcome(node, outcome string) {
	RegisterMetrics()
	signalsDecoded.WithLabelValues(node, outcome).Inc()
}
