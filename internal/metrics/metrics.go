package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mizcall_active_websocket_connections",
		Help: "Number of active signaling WebSocket connections",
	})

	ConnectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mizcall_websocket_connections_total",
		Help: "Total number of signaling WebSocket connections",
	})

	ActivePeers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mizcall_active_peers",
		Help: "Number of registered peers",
	}, []string{"role"}) // "host" | "user"

	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mizcall_active_rooms",
		Help: "Number of rooms held in the registry",
	})

	ProducersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mizcall_producers_created_total",
		Help: "Total number of producers created on the SFU",
	})

	ConsumersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mizcall_consumers_created_total",
		Help: "Total number of consumers created on the SFU",
	})

	RPCInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mizcall_rpc_in_flight",
		Help: "Number of RPC calls awaiting a correlated response",
	}, []string{"channel"}) // "sfu" | "recorder"

	RPCFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mizcall_rpc_failures_total",
		Help: "Total number of failed RPC calls",
	}, []string{"channel", "reason"}) // reason: "timeout" | "closed" | "remote"

	RPCDroppedResponsesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mizcall_rpc_dropped_responses_total",
		Help: "Total number of responses with no pending correlation id",
	}, []string{"channel"})

	RecordingSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mizcall_recording_sessions",
		Help: "Number of recording sessions by state",
	}, []string{"state"}) // "starting" | "active"

	RecordingStartRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mizcall_recording_start_retries_total",
		Help: "Total number of retried capture start attempts",
	})

	RecordingAbandonedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mizcall_recording_abandoned_total",
		Help: "Total number of capture sessions abandoned after all start attempts failed",
	})

	SessionsRevokedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mizcall_sessions_revoked_total",
		Help: "Total number of forcibly revoked sessions",
	})
)
