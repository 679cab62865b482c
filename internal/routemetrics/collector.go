// Package routemetrics exposes the routing core's Prometheus metrics.
package routemetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "routecore"
	subsystem = "route"
)

// Label names for routing-core metrics.
const (
	labelPeer   = "peer"
	labelPolicy = "policy"
)

// -------------------------------------------------------------------------
// Collector — Prometheus Routing Metrics
// -------------------------------------------------------------------------

// Collector holds all routing-core Prometheus metrics.
//
//   - Sessions tracks running outbound sync loops, one per neighbor.
//   - DBPeers/DBAdjacencies track SyncedRouteInfo size, a proxy for gossip
//     state growth across the mesh.
//   - SyncTx/SyncRx count sync_route_info RPCs per neighbor, in each
//     direction.
//   - RebuildLatency times PeerRouteService.UpdateRouteTable, per policy.
//   - InitiatorElections counts RouteSessionManager electOnce outcomes.
type Collector struct {
	// Sessions tracks the number of running outbound sync loops.
	// Incremented when RouteSessionManager starts a session's outbound loop,
	// decremented when it stops that loop. Sessions created only by inbound
	// RPCs are not counted.
	Sessions *prometheus.GaugeVec

	// DBPeers is the number of RoutePeerInfo records held in the local
	// SyncedRouteInfo snapshot.
	DBPeers prometheus.Gauge

	// DBAdjacencies is the number of adjacency-claim records held in the
	// local SyncedRouteInfo snapshot.
	DBAdjacencies prometheus.Gauge

	// SyncTx counts outbound sync_route_info RPCs per neighbor.
	SyncTx *prometheus.CounterVec

	// SyncRx counts inbound sync_route_info RPCs per neighbor.
	SyncRx *prometheus.CounterVec

	// SyncErrors counts failed sync_route_info RPCs per neighbor, excluding
	// FatalError (those terminate the process rather than retry).
	SyncErrors *prometheus.CounterVec

	// RebuildLatency times UpdateRouteTable's whole two-policy rebuild; the
	// same duration is observed once under each policy label.
	RebuildLatency *prometheus.HistogramVec

	// InitiatorElections counts initiator-election outcomes by role label.
	// RouteSessionManager's electOnce records "initiator" each time it picks
	// a new initiator target.
	InitiatorElections *prometheus.CounterVec
}

// NewCollector creates a Collector with all routing-core metrics registered
// against reg. If reg is nil, prometheus.DefaultRegisterer is used.
//
// All metrics are created with the "routecore_route_" prefix (namespace_
// subsystem) to avoid collisions with other exporters.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.Sessions,
		c.DBPeers,
		c.DBAdjacencies,
		c.SyncTx,
		c.SyncRx,
		c.SyncErrors,
		c.RebuildLatency,
		c.InitiatorElections,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	peerLabels := []string{labelPeer}

	return &Collector{
		Sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions",
			Help:      "Number of currently active route sync sessions.",
		}, peerLabels),

		DBPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "db_peers",
			Help:      "Number of peer descriptors held in the local route DB.",
		}),

		DBAdjacencies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "db_adjacencies",
			Help:      "Number of adjacency claims held in the local route DB.",
		}),

		SyncTx: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sync_tx_total",
			Help:      "Total sync_route_info RPCs sent, per neighbor.",
		}, peerLabels),

		SyncRx: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sync_rx_total",
			Help:      "Total sync_route_info RPCs received, per neighbor.",
		}, peerLabels),

		SyncErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sync_errors_total",
			Help:      "Total non-fatal sync_route_info RPC failures, per neighbor.",
		}, peerLabels),

		RebuildLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rebuild_latency_seconds",
			Help:      "Route table rebuild latency, per policy.",
			Buckets:   prometheus.DefBuckets,
		}, []string{labelPolicy}),

		InitiatorElections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "initiator_elections_total",
			Help:      "Total initiator-election outcomes, labeled initiator or responder.",
		}, []string{"role"}),
	}
}

// -------------------------------------------------------------------------
// Session Lifecycle
// -------------------------------------------------------------------------

// RegisterSession increments the active-sessions gauge for peer. Called
// when RouteSessionManager starts a session's outbound loop.
func (c *Collector) RegisterSession(peer string) {
	c.Sessions.WithLabelValues(peer).Inc()
}

// UnregisterSession decrements the active-sessions gauge for peer. Called
// when RouteSessionManager stops a session whose outbound loop was running.
func (c *Collector) UnregisterSession(peer string) {
	c.Sessions.WithLabelValues(peer).Dec()
}

// -------------------------------------------------------------------------
// DB Size
// -------------------------------------------------------------------------

// SetDBSize records the current SyncedRouteInfo size. Called after every
// route-table rebuild (PeerRouteService.UpdateRouteTable).
func (c *Collector) SetDBSize(peers, adjacencies int) {
	c.DBPeers.Set(float64(peers))
	c.DBAdjacencies.Set(float64(adjacencies))
}

// -------------------------------------------------------------------------
// RPC Counters
// -------------------------------------------------------------------------

// IncSyncTx increments the outbound sync_route_info counter for peer.
func (c *Collector) IncSyncTx(peer string) {
	c.SyncTx.WithLabelValues(peer).Inc()
}

// IncSyncRx increments the inbound sync_route_info counter for peer.
func (c *Collector) IncSyncRx(peer string) {
	c.SyncRx.WithLabelValues(peer).Inc()
}

// IncSyncErrors increments the sync_route_info failure counter for peer.
func (c *Collector) IncSyncErrors(peer string) {
	c.SyncErrors.WithLabelValues(peer).Inc()
}

// -------------------------------------------------------------------------
// Rebuild Latency
// -------------------------------------------------------------------------

// ObserveRebuildLatency records how long a table rebuild took for policy
// ("least_hop" or "least_cost").
func (c *Collector) ObserveRebuildLatency(policy string, seconds float64) {
	c.RebuildLatency.WithLabelValues(policy).Observe(seconds)
}

// -------------------------------------------------------------------------
// Initiator Election
// -------------------------------------------------------------------------

// RecordInitiatorElection increments the election-outcome counter. role is
// "initiator" or "responder".
func (c *Collector) RecordInitiatorElection(role string) {
	c.InitiatorElections.WithLabelValues(role).Inc()
}
