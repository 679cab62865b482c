package route

import (
	"sync"
	"sync/atomic"
)

// SyncRouteSession is the per-neighbor gossip state (§4.3): the two session
// ids that detect a neighbor restart, the high-water marks that turn the
// full descriptor/bitmap set into an incremental delta, and the initiator
// bookkeeping the election in RouteSessionManager reads and writes.
//
// Struct shape (plain fields plus a small mutex around the maps, counters
// kept outside it as atomics) is grounded on internal/bfd/session.go's
// Session, which mixes atomic.Int64 liveness counters with a mutex-guarded
// negotiated-parameters block.
type SyncRouteSession struct {
	DstPeerID PeerId

	mu                      sync.Mutex
	mySessionID             SessionId
	dstSessionID            SessionId
	dstSavedPeerVersions    map[PeerId]Version
	dstSavedBitmapVersion   Version
	weAreInitiator          bool
	dstIsInitiator          bool
	needSyncInitiatorInfo   bool

	rpcTxCount atomic.Uint64
	rpcRxCount atomic.Uint64
}

// newSyncRouteSession creates a session for a newly discovered neighbor,
// allocating our half of the session-id pair immediately (§4.3).
func newSyncRouteSession(dst PeerId) *SyncRouteSession {
	return &SyncRouteSession{
		DstPeerID:             dst,
		mySessionID:           newSessionId(),
		dstSavedPeerVersions:  make(map[PeerId]Version),
		needSyncInitiatorInfo: true,
	}
}

// mySessionId returns this side's session id, generating one on first use.
func (s *SyncRouteSession) mySessionId() SessionId {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mySessionID == 0 {
		s.mySessionID = newSessionId()
	}
	return s.mySessionID
}

// observeDstSessionId records the neighbor's session id. If it changed from
// what we had on file, the neighbor restarted: every high-water mark is
// cleared so the next sync resends the full descriptor/bitmap set rather
// than a (now meaningless) delta (§4.3, §8 S4).
func (s *SyncRouteSession) observeDstSessionId(id SessionId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dstSessionID != 0 && s.dstSessionID != id {
		s.dstSavedPeerVersions = make(map[PeerId]Version)
		s.dstSavedBitmapVersion = 0
		s.needSyncInitiatorInfo = true
	}
	s.dstSessionID = id
}

// upToDate reports whether the neighbor has already acknowledged (directly
// or by us having sent) peerID at version or a newer one (§4.3 "up_to_date").
// Descriptors for the neighbor's own peer id are always considered
// up-to-date from our side: a peer never needs to be told about itself
// (§13(b): no further loop-avoidance beyond this single exclusion).
func (s *SyncRouteSession) upToDate(peerID PeerId, version Version) bool {
	if peerID == s.DstPeerID {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	saved, ok := s.dstSavedPeerVersions[peerID]
	return ok && saved >= version
}

// markSent records that peerID at version has now been sent to (or
// received from) the neighbor, advancing the high-water mark.
func (s *SyncRouteSession) markSent(peerID PeerId, version Version) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if saved, ok := s.dstSavedPeerVersions[peerID]; !ok || version > saved {
		s.dstSavedPeerVersions[peerID] = version
	}
}

// bitmapUpToDate / markBitmapSent mirror upToDate/markSent for the single
// global adjacency bitmap (§4.3).
func (s *SyncRouteSession) bitmapUpToDate(version Version) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dstSavedBitmapVersion >= version
}

func (s *SyncRouteSession) markBitmapSent(version Version) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if version > s.dstSavedBitmapVersion {
		s.dstSavedBitmapVersion = version
	}
}

// setInitiatorRoles records which side is the active initiator, clearing
// needSyncInitiatorInfo once the roles have actually been exchanged.
func (s *SyncRouteSession) setInitiatorRoles(weAre, dstIs bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weAreInitiator = weAre
	s.dstIsInitiator = dstIs
	s.needSyncInitiatorInfo = false
}

func (s *SyncRouteSession) isInitiator() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.weAreInitiator
}

func (s *SyncRouteSession) dstInitiator() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dstIsInitiator
}

func (s *SyncRouteSession) needsInitiatorSync() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.needSyncInitiatorInfo
}

func (s *SyncRouteSession) recordTx() { s.rpcTxCount.Add(1) }
func (s *SyncRouteSession) recordRx() { s.rpcRxCount.Add(1) }

// Counters returns the RPC tx/rx counts for metrics/diagnostics (§6).
func (s *SyncRouteSession) Counters() (tx, rx uint64) {
	return s.rpcTxCount.Load(), s.rpcRxCount.Load()
}

// SessionSnapshot is a structured, read-only view of a session's negotiated
// state: the same fields Dump() renders as text, exposed for callers (tests,
// future diagnostics) that want them without parsing a string.
type SessionSnapshot struct {
	DstPeerID      PeerId
	WeAreInitiator bool
	DstIsInitiator bool
	TxCount        uint64
	RxCount        uint64
}

// Snapshot returns the session's current negotiated state.
func (s *SyncRouteSession) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionSnapshot{
		DstPeerID:      s.DstPeerID,
		WeAreInitiator: s.weAreInitiator,
		DstIsInitiator: s.dstIsInitiator,
		TxCount:        s.rpcTxCount.Load(),
		RxCount:        s.rpcRxCount.Load(),
	}
}
