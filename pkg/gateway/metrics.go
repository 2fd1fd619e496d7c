package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	clientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "m5chat_clients_connected",
		Help: "Currently connected websocket clients.",
	})
	eventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "m5chat_events_dispatched_total",
		Help: "Inbound client events by tag.",
	}, []string{"event"})
	broadcastFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "m5chat_broadcast_frames_total",
		Help: "Outbound frames enqueued by fan-out.",
	})
)
