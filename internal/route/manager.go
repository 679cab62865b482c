package route

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// RouteSessionManager is the distributed protocol (§4.5): it serves inbound
// sync RPCs, drives one outbound task per session, elects the initiator per
// directly-connected link, and garbage-collects dead sessions. Background
// task ownership (one errgroup.Group owning every housekeeping task plus
// every dynamically-spawned per-session outbound loop, cancelled as a unit
// on shutdown) is grounded on cmd/gobfd/main.go's errgroup-supervised
// daemon lifecycle.
type RouteSessionManager struct {
	svc       *PeerRouteService
	peers     PeerLister
	localCtx  LocalContextProvider
	transport SyncTransport
	tunables  Tunables
	log       *slog.Logger

	wake *syncNowBroadcast

	mu                 sync.Mutex
	eg                 *errgroup.Group
	outboundCancel     map[PeerId]context.CancelFunc
	initiatorTarget    PeerId
	hasInitiatorTarget bool

	metrics MetricsReporter
}

// ManagerOption configures optional RouteSessionManager parameters.
type ManagerOption func(*RouteSessionManager)

// WithManagerMetrics sets the MetricsReporter for the manager and every
// session it creates. If mr is nil, the no-op reporter is kept.
func WithManagerMetrics(mr MetricsReporter) ManagerOption {
	return func(m *RouteSessionManager) {
		if mr != nil {
			m.metrics = mr
		}
	}
}

// NewRouteSessionManager constructs a manager for svc. transport is the
// out-of-scope RPC collaborator (§6) used for outbound calls; peers and
// localCtx are the peer-connectivity and global-configuration collaborators.
func NewRouteSessionManager(svc *PeerRouteService, peers PeerLister, localCtx LocalContextProvider, transport SyncTransport, tunables Tunables, log *slog.Logger, opts ...ManagerOption) *RouteSessionManager {
	if log == nil {
		log = slog.Default()
	}
	m := &RouteSessionManager{
		svc:            svc,
		peers:          peers,
		localCtx:       localCtx,
		transport:      transport,
		tunables:       tunables,
		log:            log,
		wake:           newSyncNowBroadcast(),
		outboundCancel: make(map[PeerId]context.CancelFunc),
		metrics:        noopMetrics{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run installs the background tasks (§4.5 "Background housekeeping tasks")
// and blocks until ctx is cancelled or a task returns a fatal error (§6
// "open" launches these tasks; there is no separate start/stop pair since
// teardown is by context cancellation, matching §6 "close() — no-op;
// teardown is by drop").
func (m *RouteSessionManager) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	m.mu.Lock()
	m.eg = eg
	m.mu.Unlock()

	eg.Go(func() error { return m.expirySweepLoop(ctx) })
	eg.Go(func() error { return m.selfRefreshLoop(ctx) })
	eg.Go(func() error { return m.electionLoop(ctx) })

	return eg.Wait()
}

// TriggerSyncNow wakes every idle outbound loop immediately (§4.5 server
// step 6, self-refresh loop).
func (m *RouteSessionManager) TriggerSyncNow() { m.wake.signal() }

// expirySweepLoop runs SyncedRouteInfo.expire every ExpirySweep (§4.5).
func (m *RouteSessionManager) expirySweepLoop(ctx context.Context) error {
	t := time.NewTicker(m.tunables.ExpirySweep)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			m.svc.DB().expire(m.svc.LocalPeer(), m.tunables.Expiry, time.Now())
		}
	}
}

// selfRefreshLoop refreshes the local descriptor and adjacency set every
// IdleWake, triggers sync-now on any change, and rebuilds the route tables
// if the cost calculator requests it (§4.5 "Self-refresh loop").
func (m *RouteSessionManager) selfRefreshLoop(ctx context.Context) error {
	t := time.NewTicker(m.tunables.IdleWake)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			m.refreshSelfOnce(ctx)
		}
	}
}

func (m *RouteSessionManager) refreshSelfOnce(ctx context.Context) {
	local := m.localCtx.LocalContext()
	db := m.svc.DB()

	before, _ := db.peerInfo(local.PeerID)
	db.refreshSelf(local, m.tunables.RefreshInterval, time.Now())
	after, _ := db.peerInfo(local.PeerID)

	neighbors, err := m.peers.ListPeers(ctx)
	if err != nil {
		m.log.Warn("list_peers failed", "error", err)
		return
	}
	set := make(map[PeerId]struct{}, len(neighbors))
	for _, p := range neighbors {
		set[p] = struct{}{}
		db.ensure(p)
	}
	beforeAdjV, _ := db.adjacencyVersion(local.PeerID)
	db.refreshSelfNeighbors(local.PeerID, set)
	afterAdjV, _ := db.adjacencyVersion(local.PeerID)

	changed := after.Version != before.Version || afterAdjV != beforeAdjV
	if changed || m.svc.NeedCostUpdate() {
		m.svc.UpdateRouteTable(ctx)
	}
	if changed {
		m.TriggerSyncNow()
	}
}

// electionLoop is the session supervisor (§4.5 "Initiator election").
func (m *RouteSessionManager) electionLoop(ctx context.Context) error {
	t := time.NewTicker(m.tunables.IdleWake)
	defer t.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		m.electOnce(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

func (m *RouteSessionManager) electOnce(ctx context.Context) {
	neighbors, err := m.peers.ListPeers(ctx)
	if err != nil {
		m.log.Warn("list_peers failed", "error", err)
		return
	}
	current := make(map[PeerId]struct{}, len(neighbors))
	for _, p := range neighbors {
		current[p] = struct{}{}
	}

	// Stop sessions for peers no longer directly connected (step 1).
	for _, sess := range m.svc.Sessions() {
		if _, ok := current[sess.DstPeerID]; !ok {
			m.stopSession(sess.DstPeerID)
		}
	}

	// Candidates: neighbors whose session does not already claim
	// dst_is_initiator (step 2).
	var candidates []PeerId
	for _, p := range sortedPeerIDs(current) {
		sess, ok := m.svc.Session(p)
		if !ok || !sess.dstInitiator() {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return
	}

	target := candidates[0]
	for _, p := range candidates {
		info, _ := m.svc.DB().peerInfo(p)
		if info.NatInfo.connectivityFriendly() {
			target = p
			break
		}
	}

	m.mu.Lock()
	changed := !m.hasInitiatorTarget || m.initiatorTarget != target
	prev := m.initiatorTarget
	hadPrev := m.hasInitiatorTarget
	if changed {
		m.initiatorTarget = target
		m.hasInitiatorTarget = true
	}
	m.mu.Unlock()

	if changed {
		if hadPrev {
			if sess, ok := m.svc.Session(prev); ok {
				sess.setInitiatorRoles(false, sess.dstInitiator())
				sess.mu.Lock()
				sess.needSyncInitiatorInfo = true
				sess.mu.Unlock()
			}
		}
		// A local role toggle must reach the neighbor even with no data delta.
		sess := m.svc.GetOrCreateSession(target)
		sess.setInitiatorRoles(true, sess.dstInitiator())
		sess.mu.Lock()
		sess.needSyncInitiatorInfo = true
		sess.mu.Unlock()
		m.ensureOutbound(ctx, target)
		m.TriggerSyncNow()
		m.metrics.RecordInitiatorElection("initiator")
	}

	// GC sessions that serve no purpose (step 5): never the chosen target.
	for _, sess := range m.svc.Sessions() {
		if sess.DstPeerID == target {
			continue
		}
		if !sess.isInitiator() && !sess.dstInitiator() && !sess.needsInitiatorSync() {
			m.stopSession(sess.DstPeerID)
		}
	}
}

// ensureOutbound starts the per-session outbound loop for peer if one is
// not already running (§4.5 "Client side").
func (m *RouteSessionManager) ensureOutbound(ctx context.Context, peer PeerId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.outboundCancel[peer]; ok {
		return
	}
	childCtx, cancel := context.WithCancel(ctx)
	m.outboundCancel[peer] = cancel
	m.metrics.RegisterSession(peerIDString(peer))
	eg := m.eg
	eg.Go(func() error {
		err := m.outboundLoop(childCtx, peer)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
}

// stopSession cancels peer's outbound loop (if any) and drops its session
// and map entry (§4.5 step 5, §8 S3 "A's session map for C is empty").
func (m *RouteSessionManager) stopSession(peer PeerId) {
	m.mu.Lock()
	cancel, ok := m.outboundCancel[peer]
	if ok {
		delete(m.outboundCancel, peer)
	}
	m.mu.Unlock()
	if ok {
		cancel()
		m.metrics.UnregisterSession(peerIDString(peer))
	}
	m.svc.RemoveSession(peer)
}

// outboundLoop is the one long-lived task per session (§4.5 "Client side").
func (m *RouteSessionManager) outboundLoop(ctx context.Context, peer PeerId) error {
	for {
		sess := m.svc.GetOrCreateSession(peer)

		descriptors, bitmap := m.svc.BuildDelta(sess)
		if len(descriptors) == 0 && bitmap == nil && !sess.needsInitiatorSync() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-m.wake.wait():
				continue
			case <-time.After(m.tunables.IdleWake):
				continue
			}
		}

		sess.setInitiatorRoles(sess.isInitiator(), sess.dstInitiator())

		rpcCtx, cancel := context.WithTimeout(ctx, m.tunables.RPCDeadline)
		req := SyncRequest{
			MyPeerID:    m.svc.LocalPeer(),
			MySessionID: sess.mySessionId(),
			IsInitiator: sess.isInitiator(),
			Descriptors: descriptors,
			Bitmap:      bitmap,
		}
		resp, err := m.transport.SyncRouteInfo(rpcCtx, peer, req)
		cancel()
		sess.recordTx()
		m.metrics.IncSyncTx(peerIDString(peer))

		if err != nil {
			var fatal *FatalError
			if errors.As(err, &fatal) {
				return fatal
			}
			m.metrics.IncSyncErrors(peerIDString(peer))
			m.log.Warn("sync_route_info failed", "peer", peerIDString(peer), "error", err)
			sess.mu.Lock()
			sess.needSyncInitiatorInfo = true
			sess.mu.Unlock()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.tunables.ClientBackoff):
			}
			continue
		}

		sess.observeDstSessionId(resp.SessionID)
		sess.setInitiatorRoles(sess.isInitiator(), resp.IsInitiator)
		m.svc.MarkDeltaSent(sess, descriptors, bitmap)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.tunables.ClientBackoff):
		}
		m.refreshSelfOnce(ctx)
	}
}

// HandleSyncRouteInfo is the server side of the wire RPC (§4.5 "Server
// side"). The internal/server connect handler decodes the wire message
// into a SyncRequest and calls this directly.
func (m *RouteSessionManager) HandleSyncRouteInfo(ctx context.Context, fromPeer PeerId, req SyncRequest) (SyncResponse, error) {
	sess := m.svc.GetOrCreateSession(fromPeer)
	sess.recordRx()
	m.metrics.IncSyncRx(peerIDString(fromPeer))
	sess.observeDstSessionId(req.MySessionID)

	if len(req.Descriptors) > 0 {
		if err := m.svc.DB().applyDescriptors(m.svc.LocalPeer(), fromPeer, req.Descriptors); err != nil {
			var fatal *FatalError
			if errors.As(err, &fatal) {
				return SyncResponse{}, fatal
			}
			return SyncResponse{}, err
		}
		for _, d := range req.Descriptors {
			sess.markSent(d.PeerID, d.Version)
		}
	}
	if req.Bitmap != nil {
		m.svc.DB().applyBitmap(*req.Bitmap)
		for _, label := range req.Bitmap.PeerIDs {
			sess.markBitmapSent(label.Version)
		}
	}

	m.svc.UpdateRouteTable(ctx)

	sess.setInitiatorRoles(sess.isInitiator(), req.IsInitiator)
	m.TriggerSyncNow()

	return SyncResponse{
		IsInitiator: sess.isInitiator(),
		SessionID:   sess.mySessionId(),
	}, nil
}
