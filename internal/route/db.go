package route

import (
	"sync"
	"time"
)

// SyncedRouteInfo is the per-service database of everything learned about
// the overlay (§4.1): one RoutePeerInfo and one adjacency record per peer id
// ever referenced, plus the last bitmap a neighbor handed us. A single
// RWMutex guards all three maps, the same ownership style as the teacher's
// Manager keeps its session table under one lock (internal/bfd/manager.go).
type SyncedRouteInfo struct {
	mu sync.RWMutex

	peers       map[PeerId]RoutePeerInfo
	adjacencies map[PeerId]adjacency
	bitmap      RouteConnBitmap
}

// NewSyncedRouteInfo returns an empty database.
func NewSyncedRouteInfo() *SyncedRouteInfo {
	return &SyncedRouteInfo{
		peers:       make(map[PeerId]RoutePeerInfo),
		adjacencies: make(map[PeerId]adjacency),
	}
}

// ensure reserves an entry for peerID if none exists yet, inserting a
// version-0 placeholder (§3 invariant 1, §4.1 "ensure"). On return a record
// for peerID always exists.
func (db *SyncedRouteInfo) ensure(peerID PeerId) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.ensureLocked(peerID)
}

func (db *SyncedRouteInfo) ensureLocked(peerID PeerId) {
	if _, ok := db.peers[peerID]; !ok {
		db.peers[peerID] = RoutePeerInfo{PeerID: peerID}
	}
	if _, ok := db.adjacencies[peerID]; !ok {
		db.adjacencies[peerID] = newAdjacency()
	}
}

// applyDescriptors merges a batch of descriptors received from fromPeer
// (§4.1, §4.1 "check_duplicate_peer_id"). Before installing anything, the
// whole batch is checked for two distinct duplicate-id conditions:
//   - a descriptor claims PeerID == localPeer with a Version strictly newer
//     than our own: the remote is claiming our own identity, which is fatal
//     -- return a *FatalError wrapping ErrDuplicatePeerId.
//   - a descriptor claims PeerID == fromPeer (the session's own remote
//     identity) with a Version strictly older than what we already have on
//     file for fromPeer: fromPeer has restarted and re-announced itself
//     under an id someone else already holds a newer record for. This is
//     not fatal to us -- it is the sending session that is confused about
//     its own identity -- so it rejects only this batch with
//     ErrDuplicatePeerId, unwrapped.
//
// Otherwise a descriptor is installed only if its Version is strictly
// greater than the one already on file; older or equal versions are
// silently ignored (idempotent re-application, §8 S5).
func (db *SyncedRouteInfo) applyDescriptors(localPeer, fromPeer PeerId, descriptors []RoutePeerInfo) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, d := range descriptors {
		if d.IsPlaceholder() {
			continue
		}
		if d.PeerID == localPeer {
			if existing, ok := db.peers[localPeer]; ok && d.Version > existing.Version {
				return &FatalError{Peer: localPeer, Err: ErrDuplicatePeerId}
			}
			continue
		}
		if d.PeerID == fromPeer {
			if existing, ok := db.peers[fromPeer]; ok && d.Version < existing.Version {
				return ErrDuplicatePeerId
			}
		}
	}

	for _, d := range descriptors {
		if d.IsPlaceholder() || d.PeerID == localPeer {
			continue
		}
		db.ensureLocked(d.PeerID)
		existing := db.peers[d.PeerID]
		if d.Version > existing.Version {
			db.peers[d.PeerID] = d
		}
	}
	return nil
}

// applyBitmap installs a freshly received adjacency bitmap if it is newer
// than what we have for every row it carries, decoding it into the
// per-peer adjacency records the route-table builder reads (§4.1, §3).
// A row whose version does not advance the corresponding adjacency is
// skipped; this makes re-application of a stale bitmap a no-op (§8 S5).
func (db *SyncedRouteInfo) applyBitmap(bm RouteConnBitmap) {
	db.mu.Lock()
	defer db.mu.Unlock()

	n := len(bm.PeerIDs)
	for row, label := range bm.PeerIDs {
		existing, ok := db.adjacencies[label.PeerID]
		if ok && label.Version <= existing.version {
			continue
		}
		peers := make(map[PeerId]struct{}, n)
		for col, colLabel := range bm.PeerIDs {
			if col == row {
				continue
			}
			if bitSet(bm.Bitmap, n, row, col) {
				peers[colLabel.PeerID] = struct{}{}
			}
		}
		db.ensureLocked(label.PeerID)
		db.adjacencies[label.PeerID] = adjacency{peers: peers, version: label.Version}
	}

	if len(bm.PeerIDs) > 0 {
		db.bitmap = bm
	}
}

// bitSet reads bit (row*n+col) of a packed little-endian-within-byte N*N
// matrix (§3 RouteConnBitmap wire layout).
func bitSet(bits []byte, n, row, col int) bool {
	idx := row*n + col
	byteIdx, bitIdx := idx/8, idx%8
	if byteIdx >= len(bits) {
		return false
	}
	return bits[byteIdx]&(1<<uint(bitIdx)) != 0
}

// encodeBitmap packs the current adjacency set for the given ordered label
// list into a RouteConnBitmap (the inverse of applyBitmap's decode step),
// used by PeerRouteService when it assembles the bitmap it hands to peers.
func encodeBitmap(labels []BitmapLabel, adjacent func(row, col PeerId) bool) RouteConnBitmap {
	n := len(labels)
	bits := make([]byte, (n*n+7)/8)
	for row, r := range labels {
		for col, c := range labels {
			if row == col {
				continue
			}
			if adjacent(r.PeerID, c.PeerID) {
				idx := row*n + col
				bits[idx/8] |= 1 << uint(idx%8)
			}
		}
	}
	return RouteConnBitmap{PeerIDs: append([]BitmapLabel(nil), labels...), Bitmap: bits}
}

// refreshSelf rebuilds the local peer's own descriptor from the current
// LocalContext (§4.1 "refresh_self"): the version is bumped only if the
// content changed from what is on file, or the existing record is older
// than refreshInterval -- otherwise refreshSelf is a no-op, which is what
// keeps an idle, unchanged descriptor from ratcheting its version forever
// (§3, §8 S1).
func (db *SyncedRouteInfo) refreshSelf(ctx LocalContext, refreshInterval time.Duration, now time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.ensureLocked(ctx.PeerID)
	existing := db.peers[ctx.PeerID]

	next := RoutePeerInfo{
		PeerID:     ctx.PeerID,
		InstID:     ctx.InstID,
		Cost:       ctx.Cost,
		IPv4Addr:   ctx.IPv4Addr,
		ProxyCIDRs: ctx.ProxyCIDRs,
		Hostname:   ctx.Hostname,
		NatInfo:    ctx.NatInfo,
		LastUpdate: now,
		Version:    existing.Version,
	}

	contentChanged := existing.IsPlaceholder() || !existing.equalContent(next)
	stale := now.Sub(existing.LastUpdate) >= refreshInterval

	if contentChanged || stale {
		next.Version = existing.Version + 1
	} else {
		next.LastUpdate = existing.LastUpdate
	}
	db.peers[ctx.PeerID] = next
}

// refreshSelfNeighbors rewrites the local peer's adjacency record to
// exactly the given neighbor set (§4.1 "refresh_self_neighbors"), bumping
// its version only if the set actually changed (§3).
func (db *SyncedRouteInfo) refreshSelfNeighbors(localPeer PeerId, neighbors map[PeerId]struct{}) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.ensureLocked(localPeer)
	existing := db.adjacencies[localPeer]
	if existing.equalSet(neighbors) {
		return
	}
	next := newAdjacency()
	for p := range neighbors {
		next.peers[p] = struct{}{}
	}
	next.version = existing.version + 1
	db.adjacencies[localPeer] = next
}

// expire drops every peer (descriptor + adjacency) other than localPeer
// whose descriptor has not been refreshed within expiry (§4.1 "expire",
// §3). localPeer's own record is never expired.
func (db *SyncedRouteInfo) expire(localPeer PeerId, expiry time.Duration, now time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for id, info := range db.peers {
		if id == localPeer || info.IsPlaceholder() {
			continue
		}
		if now.Sub(info.LastUpdate) > expiry {
			delete(db.peers, id)
			delete(db.adjacencies, id)
		}
	}
}

// directlyConnected reports whether a and b are mutually recorded as
// neighbors in the adjacency table (§4.1 "directly_connected"). The spec
// treats the relation as symmetric by construction (§8 S2): both sides'
// refresh_self_neighbors calls populate their own row, so a real link
// shows up in both directions; this check requires both to agree.
func (db *SyncedRouteInfo) directlyConnected(a, b PeerId) bool {
	db.mu.RLock()
	defer db.mu.RUnlock()

	aAdj, aok := db.adjacencies[a]
	bAdj, bok := db.adjacencies[b]
	if !aok || !bok {
		return false
	}
	_, aHasB := aAdj.peers[b]
	_, bHasA := bAdj.peers[a]
	return aHasB && bHasA
}

// snapshot returns a point-in-time copy of every non-placeholder descriptor
// and its adjacency set, the input the route-table builder needs (§4.2).
func (db *SyncedRouteInfo) snapshot() (peers map[PeerId]RoutePeerInfo, adj map[PeerId]map[PeerId]struct{}) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	peers = make(map[PeerId]RoutePeerInfo, len(db.peers))
	for id, info := range db.peers {
		if info.IsPlaceholder() {
			continue
		}
		peers[id] = info
	}
	adj = make(map[PeerId]map[PeerId]struct{}, len(db.adjacencies))
	for id, a := range db.adjacencies {
		set := make(map[PeerId]struct{}, len(a.peers))
		for p := range a.peers {
			set[p] = struct{}{}
		}
		adj[id] = set
	}
	return peers, adj
}

// listPeerInfo returns every non-placeholder descriptor, used by
// PeerRouteService.ListRoutes and the delta builder.
func (db *SyncedRouteInfo) listPeerInfo() []RoutePeerInfo {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]RoutePeerInfo, 0, len(db.peers))
	for _, info := range db.peers {
		if !info.IsPlaceholder() {
			out = append(out, info)
		}
	}
	return out
}

// peerInfo returns the descriptor on file for id, if any (placeholders
// included; callers that care should check IsPlaceholder).
func (db *SyncedRouteInfo) peerInfo(id PeerId) (RoutePeerInfo, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	info, ok := db.peers[id]
	return info, ok
}

// peerVersion returns the descriptor version on file for id, and whether an
// entry exists at all (placeholder entries report version 0, matching
// up_to_date's treatment, §4.3).
func (db *SyncedRouteInfo) peerVersion(id PeerId) (Version, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	info, ok := db.peers[id]
	if !ok {
		return 0, false
	}
	return info.Version, true
}

// adjacencyVersion returns the adjacency version on file for id.
func (db *SyncedRouteInfo) adjacencyVersion(id PeerId) (Version, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	a, ok := db.adjacencies[id]
	if !ok {
		return 0, false
	}
	return a.version, true
}

// currentBitmap returns the last bitmap installed via applyBitmap.
func (db *SyncedRouteInfo) currentBitmap() RouteConnBitmap {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.bitmap
}
