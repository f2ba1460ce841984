package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgebus",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests on the metrics listener.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "edgebus",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	busDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgebus",
			Subsystem: "bus",
			Name:      "dispatch_total",
			Help:      "Bus publish attempts by publisher slot and outcome.",
		},
		[]string{"node", "slot", "success"},
	)
	busRetryDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "edgebus",
			Subsystem: "bus",
			Name:      "retry_queue_depth",
			Help:      "Payloads waiting for a resend after a failed publish.",
		},
		[]string{"node"},
	)
	busIngressDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgebus",
			Subsystem: "bus",
			Name:      "ingress_dropped_total",
			Help:      "Inbound messages dropped on a frame receive failure.",
		},
		[]string{"node", "frame"},
	)
	requesterMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgebus",
			Subsystem: "requester",
			Name:      "messages_total",
			Help:      "Requester traffic by event (sent, resent, received, mismatch, unknown, malformed).",
		},
		[]string{"node", "event"},
	)
	requesterPending = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "edgebus",
			Subsystem: "requester",
			Name:      "pending_requests",
			Help:      "Requests awaiting a response.",
		},
		[]string{"node"},
	)
	requesterCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgebus",
			Subsystem: "requester",
			Name:      "cycles_total",
			Help:      "Dispatch cycles by how the wait ended (drained, deadline).",
		},
		[]string{"node", "outcome"},
	)
	responderHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "edgebus",
			Subsystem: "responder",
			Name:      "handled_total",
			Help:      "Responder requests by outcome.",
		},
		[]string{"node", "outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			busDispatched,
			busRetryDepth,
			busIngressDropped,
			requesterMessages,
			requesterPending,
			requesterCycles,
			responderHandled,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordBusDispatch(node string, slot int, success bool) {
	RegisterMetrics()
	busDispatched.WithLabelValues(node, strconv.Itoa(slot), strconv.FormatBool(success)).Inc()
}

func SetBusRetryDepth(node string, depth int) {
	RegisterMetrics()
	busRetryDepth.WithLabelValues(node).Set(float64(depth))
}

func RecordBusIngressDrop(node, frame string) {
	RegisterMetrics()
	busIngressDropped.WithLabelValues(node, frame).Inc()
}

func RecordRequester(node, event string) {
	RegisterMetrics()
	requesterMessages.WithLabelValues(node, event).Inc()
}

func SetRequesterPending(node string, n int) {
	RegisterMetrics()
	requesterPending.WithLabelValues(node).Set(float64(n))
}

func RecordRequesterCycle(node, outcome string) {
	RegisterMetrics()
	requesterCycles.WithLabelValues(node, outcome).Inc()
}

func RecordResponder(node, outcome string) {
	RegisterMetrics()
	responderHandled.WithLabelValues(node, outcome).Inc()
}
