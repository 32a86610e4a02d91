package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsTotal counts routed events by tag.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "canvas_events_total",
		Help: "Inbound events processed, by event type.",
	}, []string{"type"})

	// EventsRejected counts malformed frames and rejected mutations.
	EventsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canvas_events_rejected_total",
		Help: "Inbound events dropped or rejected.",
	})

	// PersistFailures is the health hook for fire-and-forget writes:
	// persistence errors never reach clients, they surface here.
	PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canvas_persist_failures_total",
		Help: "Background item-collection writes that failed.",
	})

	// Broadcasts counts fanout operations (one per payload, not per
	// receiving connection).
	Broadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canvas_broadcasts_total",
		Help: "Payloads fanned out to room members.",
	})

	// FramesDropped counts best-effort sends that were skipped because
	// a connection or bus buffer was full.
	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "canvas_frames_dropped_total",
		Help: "Outbound frames dropped on full buffers.",
	})

	OpenConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "canvas_open_connections",
		Help: "Currently registered websocket connections.",
	})

	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "canvas_active_rooms",
		Help: "Rooms currently resident in memory.",
	})
)

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
