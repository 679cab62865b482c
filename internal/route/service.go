package route

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
)

// RouteEntry is one diagnostic row returned by ListRoutes (§6 "list_routes").
type RouteEntry struct {
	PeerID       PeerId
	IPv4Addr     netip.Addr
	NextHopPeer  PeerId
	Cost         int64
	ProxyCIDRs   []netip.Prefix
	Hostname     string
	NatInfo      NatType
	InstID       string
	BuildVersion string
}

// PeerRouteService owns the synced database, both policy route tables, the
// per-neighbor session map, the cost calculator, and the cached local
// bitmap, and orchestrates rebuilds between them (§4.4). Struct shape is
// grounded on internal/bfd/manager.go's Manager: a sharded-map owner with
// one configurable collaborator (there, the packet sender; here, the cost
// calculator) and a pooled concurrent operation (there, per-session packet
// flushes; here, the two-policy rebuild).
type PeerRouteService struct {
	localPeer    PeerId
	buildVersion string
	tunables     Tunables

	db *SyncedRouteInfo

	tableMu   sync.RWMutex
	leastHop  *RouteTable
	leastCost *RouteTable

	calcMu sync.Mutex
	calc   CostCalculator

	sessMu   sync.RWMutex
	sessions map[PeerId]*SyncRouteSession

	bitmapMu sync.RWMutex
	bitmap   RouteConnBitmap

	rebuildPool pond.ResultPool[*RouteTable]

	rebuilds atomic.Uint64

	metrics MetricsReporter
}

// ServiceOption configures optional PeerRouteService parameters.
type ServiceOption func(*PeerRouteService)

// WithServiceMetrics sets the MetricsReporter for the service. If mr is
// nil, the no-op reporter is kept.
func WithServiceMetrics(mr MetricsReporter) ServiceOption {
	return func(s *PeerRouteService) {
		if mr != nil {
			s.metrics = mr
		}
	}
}

// NewPeerRouteService constructs a service for localPeer. buildVersion is
// the process build version reported in ListRoutes (§6), not a DB version.
func NewPeerRouteService(localPeer PeerId, buildVersion string, tunables Tunables, opts ...ServiceOption) *PeerRouteService {
	s := &PeerRouteService{
		localPeer:    localPeer,
		buildVersion: buildVersion,
		tunables:     tunables,
		db:           NewSyncedRouteInfo(),
		leastHop:     &RouteTable{policy: LeastHop},
		leastCost:    &RouteTable{policy: LeastCost},
		calc:         defaultCostCalculator{},
		sessions:     make(map[PeerId]*SyncRouteSession),
		rebuildPool:  pond.NewResultPool[*RouteTable](2),
		metrics:      noopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB exposes the synced database to the manager (get-or-create sessions and
// apply inbound deltas need direct access).
func (s *PeerRouteService) DB() *SyncedRouteInfo { return s.db }

// SetRouteCostFn replaces the cost calculator and rebuilds immediately
// (§6 "set_route_cost_fn").
func (s *PeerRouteService) SetRouteCostFn(calc CostCalculator) {
	s.calcMu.Lock()
	s.calc = calc
	s.calcMu.Unlock()
	s.UpdateRouteTable(context.Background())
}

// NeedCostUpdate reports whether the current calculator requests a rebuild
// even without a DB change (§4.2, §4.4, used by the self-refresh loop).
func (s *PeerRouteService) NeedCostUpdate() bool {
	s.calcMu.Lock()
	defer s.calcMu.Unlock()
	return s.calc.NeedUpdate()
}

// UpdateRouteTable rebuilds both policy tables and the cached local bitmap
// from the current DB snapshot (§4.4). The two policy builds run
// concurrently on rebuildPool, bracketed by the cost calculator's
// begin/end-update markers so it may cache derived data across both.
func (s *PeerRouteService) UpdateRouteTable(ctx context.Context) {
	start := time.Now()

	s.calcMu.Lock()
	calc := s.calc
	calc.BeginUpdate()
	s.calcMu.Unlock()

	peers, adj := s.db.snapshot()
	cost := calc.CalculateCost

	group := s.rebuildPool.NewGroupContext(ctx)
	group.SubmitErr(func() (*RouteTable, error) {
		return buildRouteTable(s.localPeer, LeastHop, peers, adj, cost), nil
	})
	group.SubmitErr(func() (*RouteTable, error) {
		return buildRouteTable(s.localPeer, LeastCost, peers, adj, cost), nil
	})
	results, err := group.Wait()

	s.calcMu.Lock()
	calc.EndUpdate()
	s.calcMu.Unlock()

	if err != nil {
		// Rebuild is pure local computation; SubmitErr never returns an
		// error above, so this can only mean the pool itself was stopped.
		return
	}

	s.tableMu.Lock()
	for _, t := range results {
		switch t.policy {
		case LeastHop:
			s.leastHop = t
		case LeastCost:
			s.leastCost = t
		}
	}
	s.tableMu.Unlock()

	s.rebuildLocalBitmap(peers, adj)
	s.rebuilds.Add(1)

	s.metrics.SetDBSize(len(peers), len(adj))
	elapsed := time.Since(start).Seconds()
	s.metrics.ObserveRebuildLatency("least_hop", elapsed)
	s.metrics.ObserveRebuildLatency("least_cost", elapsed)
}

// rebuildLocalBitmap recomputes the cached adjacency bitmap (§4.4 "Cached
// local bitmap assembly"): labels are the union of every adjacency set plus
// every peer reachable in the LeastCost table (policy choice is arbitrary;
// reachability is policy-independent in practice since both tables share
// the same underlying graph connectivity).
func (s *PeerRouteService) rebuildLocalBitmap(peers map[PeerId]RoutePeerInfo, adj map[PeerId]map[PeerId]struct{}) {
	labelSet := make(map[PeerId]struct{})
	for _, set := range adj {
		for p := range set {
			labelSet[p] = struct{}{}
		}
	}
	s.tableMu.RLock()
	for _, id := range s.leastCost.reachablePeers() {
		labelSet[id] = struct{}{}
	}
	s.tableMu.RUnlock()

	ids := sortedPeerIDs(labelSet)
	labels := make([]BitmapLabel, 0, len(ids))
	for _, id := range ids {
		v, _ := s.db.adjacencyVersion(id)
		labels = append(labels, BitmapLabel{PeerID: id, Version: v})
	}

	bm := encodeBitmap(labels, func(a, b PeerId) bool {
		_, ok := adj[a][b]
		return ok
	})

	s.bitmapMu.Lock()
	s.bitmap = bm
	s.bitmapMu.Unlock()
}

// localBitmap returns the currently cached bitmap.
func (s *PeerRouteService) localBitmap() RouteConnBitmap {
	s.bitmapMu.RLock()
	defer s.bitmapMu.RUnlock()
	return s.bitmap
}

// NextHop implements §6 "get_next_hop_with_policy".
func (s *PeerRouteService) NextHop(dst PeerId, policy Policy) (NextHopEntry, bool) {
	if dst == s.localPeer {
		return NextHopEntry{NextHop: s.localPeer, Cost: 0}, true
	}
	s.tableMu.RLock()
	defer s.tableMu.RUnlock()
	if policy == LeastHop {
		return s.leastHop.nextHop(dst)
	}
	return s.leastCost.nextHop(dst)
}

// LookupIPv4 implements §6 "get_peer_id_by_ipv4" step one.
func (s *PeerRouteService) LookupIPv4(addr netip.Addr) (PeerId, bool) {
	s.tableMu.RLock()
	defer s.tableMu.RUnlock()
	return s.leastCost.lookupIPv4(addr)
}

// LookupProxyCIDR implements §6 "get_peer_id_by_ipv4" step two (CIDR scan).
func (s *PeerRouteService) LookupProxyCIDR(addr netip.Addr) (PeerId, bool) {
	s.tableMu.RLock()
	defer s.tableMu.RUnlock()
	return s.leastCost.lookupProxyCIDR(addr)
}

// GetPeerIDByIPv4 resolves addr via the exact-match index first, then the
// CIDR index, matching §6's two-step lookup.
func (s *PeerRouteService) GetPeerIDByIPv4(addr netip.Addr) (PeerId, bool) {
	if id, ok := s.LookupIPv4(addr); ok {
		return id, true
	}
	return s.LookupProxyCIDR(addr)
}

// ListRoutes implements §6 "list_routes": every reachable peer's descriptor
// plus its LeastCost next-hop info. The local node itself is never listed
// (it has no next hop to report); see NextHop for querying it directly.
func (s *PeerRouteService) ListRoutes() []RouteEntry {
	s.tableMu.RLock()
	reachable := s.leastCost.reachablePeers()
	table := s.leastCost
	s.tableMu.RUnlock()

	peers, _ := s.db.snapshot()
	out := make([]RouteEntry, 0, len(reachable))
	for _, id := range reachable {
		if id == s.localPeer {
			continue
		}
		info, ok := peers[id]
		if !ok {
			continue
		}
		nh, _ := table.nextHop(id)
		out = append(out, RouteEntry{
			PeerID:       id,
			IPv4Addr:     info.IPv4Addr,
			NextHopPeer:  nh.NextHop,
			Cost:         nh.Cost,
			ProxyCIDRs:   info.ProxyCIDRs,
			Hostname:     info.Hostname,
			NatInfo:      info.NatInfo,
			InstID:       info.InstID.String(),
			BuildVersion: s.buildVersion,
		})
	}
	return out
}

// ListPeers returns every non-placeholder descriptor currently in the
// synced database, for diagnostic listing (§6, "peers list" in routectl).
func (s *PeerRouteService) ListPeers() []RoutePeerInfo {
	return s.db.listPeerInfo()
}

// BuildDelta implements §4.4 "build_delta": the descriptors and/or bitmap
// this session still needs to send, or nil for either when nothing is
// outstanding.
func (s *PeerRouteService) BuildDelta(sess *SyncRouteSession) ([]RoutePeerInfo, *RouteConnBitmap) {
	s.tableMu.RLock()
	reachable := make(map[PeerId]struct{}, len(s.leastCost.nextHops))
	for _, id := range s.leastCost.reachablePeers() {
		reachable[id] = struct{}{}
	}
	s.tableMu.RUnlock()

	var descriptors []RoutePeerInfo
	for _, info := range s.db.listPeerInfo() {
		if _, ok := reachable[info.PeerID]; !ok {
			continue
		}
		if sess.upToDate(info.PeerID, info.Version) {
			continue
		}
		descriptors = append(descriptors, info)
	}

	bm := s.localBitmap()
	var bitmap *RouteConnBitmap
	for _, label := range bm.PeerIDs {
		if !sess.bitmapUpToDate(label.Version) {
			bitmap = &bm
			break
		}
	}

	return descriptors, bitmap
}

// MarkDeltaSent advances a session's high-water marks after a successful
// outbound sync carrying descriptors/bitmap (§4.5 client-side step "raise
// the high-water maps").
func (s *PeerRouteService) MarkDeltaSent(sess *SyncRouteSession, descriptors []RoutePeerInfo, bitmap *RouteConnBitmap) {
	for _, d := range descriptors {
		sess.markSent(d.PeerID, d.Version)
	}
	if bitmap != nil {
		for _, label := range bitmap.PeerIDs {
			sess.markBitmapSent(label.Version)
		}
	}
}

// ApplyInbound applies an inbound descriptor batch and/or bitmap to the DB
// on behalf of RouteSessionManager's server side (§4.5 steps 3-4), then
// updates the session's high-water marks to reflect what the remote just
// told us it has (it must already have every version it sent).
func (s *PeerRouteService) ApplyInbound(sess *SyncRouteSession, descriptors []RoutePeerInfo, bitmap *RouteConnBitmap) error {
	if len(descriptors) > 0 {
		if err := s.db.applyDescriptors(s.localPeer, sess.DstPeerID, descriptors); err != nil {
			return err
		}
		for _, d := range descriptors {
			sess.markSent(d.PeerID, d.Version)
		}
	}
	if bitmap != nil {
		s.db.applyBitmap(*bitmap)
		for _, label := range bitmap.PeerIDs {
			sess.markBitmapSent(label.Version)
		}
	}
	return nil
}

// Session returns the session for peer, if one exists.
func (s *PeerRouteService) Session(peer PeerId) (*SyncRouteSession, bool) {
	s.sessMu.RLock()
	defer s.sessMu.RUnlock()
	sess, ok := s.sessions[peer]
	return sess, ok
}

// GetOrCreateSession returns the existing session for peer or creates one.
func (s *PeerRouteService) GetOrCreateSession(peer PeerId) *SyncRouteSession {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	if sess, ok := s.sessions[peer]; ok {
		return sess
	}
	sess := newSyncRouteSession(peer)
	s.sessions[peer] = sess
	return sess
}

// RemoveSession drops a session, e.g. because its peer left the
// directly-connected set or was garbage-collected (§4.5 step 5).
func (s *PeerRouteService) RemoveSession(peer PeerId) {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	delete(s.sessions, peer)
}

// Sessions returns a stable-ordered snapshot of every current session.
func (s *PeerRouteService) Sessions() []*SyncRouteSession {
	s.sessMu.RLock()
	defer s.sessMu.RUnlock()
	ids := make(map[PeerId]struct{}, len(s.sessions))
	for id := range s.sessions {
		ids[id] = struct{}{}
	}
	out := make([]*SyncRouteSession, 0, len(s.sessions))
	for _, id := range sortedPeerIDs(ids) {
		out = append(out, s.sessions[id])
	}
	return out
}

// LocalPeer returns the service's own peer id.
func (s *PeerRouteService) LocalPeer() PeerId { return s.localPeer }

// Dump implements §6 "dump": a pretty-printed snapshot of DB size, table
// sizes, and session counters, grounded on the teacher's diagnostic-string
// helpers in internal/server/server.go.
func (s *PeerRouteService) Dump() string {
	s.tableMu.RLock()
	hop, cost := len(s.leastHop.nextHops), len(s.leastCost.nextHops)
	s.tableMu.RUnlock()

	peers, adj := s.db.snapshot()
	sessions := s.Sessions()
	out := fmt.Sprintf("local_peer=%s rebuilds=%d db_peers=%d db_adjacencies=%d least_hop_routes=%d least_cost_routes=%d sessions=%d\n",
		peerIDString(s.localPeer), s.rebuilds.Load(), len(peers), len(adj), hop, cost, len(sessions))
	for _, sess := range sessions {
		tx, rx := sess.Counters()
		out += fmt.Sprintf("  peer=%s we_are_initiator=%t dst_is_initiator=%t tx=%d rx=%d\n",
			peerIDString(sess.DstPeerID), sess.isInitiator(), sess.dstInitiator(), tx, rx)
	}
	return out
}
