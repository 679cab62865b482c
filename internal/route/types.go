package route

import (
	"net/netip"
	"time"

	"github.com/google/uuid"
)

// PeerId is an opaque, network-unique identifier for an overlay peer.
type PeerId uint32

// Version is a monotonic per-(peer, record-kind) counter. Version 0 on a
// RoutePeerInfo marks a placeholder record (§3): it exists only to reserve
// space for an id referenced before its real descriptor arrives.
type Version uint32

// SessionId is chosen once per process per neighbor when a SyncRouteSession
// is created (§4.3). It lets either side detect that its peer restarted.
type SessionId uint64

// Policy selects which shortest-path objective the route-table builder
// optimizes for (§4.2).
type Policy uint8

const (
	// LeastHop picks, among all minimum-hop-count paths, the one with the
	// lowest weighted cost.
	LeastHop Policy = iota + 1
	// LeastCost picks the minimum weighted-cost path regardless of hop count.
	LeastCost
)

// String implements fmt.Stringer.
func (p Policy) String() string {
	switch p {
	case LeastHop:
		return "LeastHop"
	case LeastCost:
		return "LeastCost"
	default:
		return "Unknown"
	}
}

// NatType is the encoded STUN/NAT classification of a peer, supplied by the
// (external) STUN probe collaborator. Ordering below is used only for
// deterministic tie-breaking in tests; the initiator election (§4.5) treats
// NoPat and OpenInternet as equally "connectivity-friendly".
type NatType uint8

const (
	NatUnknown NatType = iota
	NatOpenInternet
	NatNoPat
	NatFullCone
	NatRestricted
	NatPortRestricted
	NatSymmetric
	NatSymmetricUDPFirewall
)

// String implements fmt.Stringer.
func (n NatType) String() string {
	switch n {
	case NatOpenInternet:
		return "OpenInternet"
	case NatNoPat:
		return "NoPat"
	case NatFullCone:
		return "FullCone"
	case NatRestricted:
		return "Restricted"
	case NatPortRestricted:
		return "PortRestricted"
	case NatSymmetric:
		return "Symmetric"
	case NatSymmetricUDPFirewall:
		return "SymmetricUDPFirewall"
	default:
		return "Unknown"
	}
}

// connectivityFriendly reports whether the NAT type is preferred by the
// initiator election (§4.5 step 3): NoPat or OpenInternet.
func (n NatType) connectivityFriendly() bool {
	return n == NatNoPat || n == NatOpenInternet
}

// RoutePeerInfo is the descriptor a peer publishes about itself (§3).
//
// Version 0 means placeholder: created only to record that some other peer
// references PeerID, never disseminated, never installed into a route
// table.
type RoutePeerInfo struct {
	PeerID      PeerId
	InstID      uuid.UUID
	Cost        uint8
	IPv4Addr    netip.Addr // zero value means "not set"
	ProxyCIDRs  []netip.Prefix
	Hostname    string
	NatInfo     NatType
	LastUpdate  time.Time
	Version     Version
}

// IsPlaceholder reports whether this descriptor was never actually
// published by its peer (§3 invariant 1).
func (p RoutePeerInfo) IsPlaceholder() bool { return p.Version == 0 }

// equalContent reports whether two descriptors have identical content
// fields, ignoring LastUpdate and Version (used by the self-update rule,
// §3).
func (p RoutePeerInfo) equalContent(o RoutePeerInfo) bool {
	if p.PeerID != o.PeerID || p.InstID != o.InstID || p.Cost != o.Cost {
		return false
	}
	if p.IPv4Addr != o.IPv4Addr || p.Hostname != o.Hostname || p.NatInfo != o.NatInfo {
		return false
	}
	if len(p.ProxyCIDRs) != len(o.ProxyCIDRs) {
		return false
	}
	for i, c := range p.ProxyCIDRs {
		if o.ProxyCIDRs[i] != c {
			return false
		}
	}
	return true
}

// adjacency is the per-peer set of directly-connected peer ids, tagged with
// a monotonic version (§3 "Adjacency record").
type adjacency struct {
	peers   map[PeerId]struct{}
	version Version
}

func newAdjacency() adjacency {
	return adjacency{peers: make(map[PeerId]struct{})}
}

func (a adjacency) clone() adjacency {
	out := newAdjacency()
	for p := range a.peers {
		out.peers[p] = struct{}{}
	}
	out.version = a.version
	return out
}

func (a adjacency) equalSet(other map[PeerId]struct{}) bool {
	if len(a.peers) != len(other) {
		return false
	}
	for p := range a.peers {
		if _, ok := other[p]; !ok {
			return false
		}
	}
	return true
}

// NextHopEntry is the outcome of the route-table builder for one
// destination (§3): the neighbor to forward through and the path cost.
type NextHopEntry struct {
	NextHop PeerId
	Cost    int64
}

// RouteConnBitmap is the wire form of the global adjacency matrix (§3).
type RouteConnBitmap struct {
	// PeerIDs is the ordered list of row/column labels with the version the
	// sender last observed for each row.
	PeerIDs []BitmapLabel
	// Bitmap is the packed N*N bit matrix, little-endian within byte; bit
	// at linear index row*N+col is 1 iff PeerIDs[row] reports PeerIDs[col]
	// as a direct neighbor.
	Bitmap []byte
}

// BitmapLabel is one row/column label of a RouteConnBitmap.
type BitmapLabel struct {
	PeerID  PeerId
	Version Version
}
