package route

import (
	"context"
	"net/netip"

	"github.com/google/uuid"
)

// PeerLister surfaces the set of currently directly-connected neighbors
// (§6, "list_peers() -> list of PeerId"). Implemented by the external
// peer-connectivity layer; listing may itself suspend (it typically
// involves an async-mutex-guarded interface handle, §5), so it takes a
// context.
type PeerLister interface {
	ListPeers(ctx context.Context) ([]PeerId, error)
}

// LocalContext is the external global-configuration collaborator (§6):
// local identity, network reachability, and NAT classification, as
// currently observed. refreshSelf (§4.1) rebuilds the local RoutePeerInfo
// from exactly these fields.
type LocalContext struct {
	PeerID     PeerId
	InstID     uuid.UUID
	Cost       uint8
	IPv4Addr   netip.Addr
	ProxyCIDRs []netip.Prefix
	Hostname   string
	NatInfo    NatType
}

// LocalContextProvider supplies the current LocalContext. Implemented by
// the out-of-scope global configuration + STUN probe collaborators.
type LocalContextProvider interface {
	LocalContext() LocalContext
}

// CostCalculator computes the directed edge weight used by the route-table
// builder (§4.2, §9 "Dynamic dispatch for the cost calculator"). The
// default, used when no calculator is configured, returns 1 for every edge
// (turning LeastCost into a second hop-count policy).
type CostCalculator interface {
	// CalculateCost returns the weight of the edge a -> b.
	CalculateCost(a, b PeerId) int64
	// NeedUpdate reports whether the calculator has accumulated state that
	// requires a route-table rebuild even without a DB change (§4.2, §4.4).
	NeedUpdate() bool
	// BeginUpdate/EndUpdate bracket a rebuild of both policy tables so the
	// calculator may cache derived data across the two builds (§4.4).
	BeginUpdate()
	EndUpdate()
}

// defaultCostCalculator is the stateless calculator used when none is
// configured: every edge costs 1, matching the spec's default.
type defaultCostCalculator struct{}

func (defaultCostCalculator) CalculateCost(PeerId, PeerId) int64 { return 1 }
func (defaultCostCalculator) NeedUpdate() bool                   { return false }
func (defaultCostCalculator) BeginUpdate()                       {}
func (defaultCostCalculator) EndUpdate()                         {}

// SyncRequest is the transport-agnostic payload of the single wire RPC
// (§6, "sync_route_info"). The descriptor and bitmap fields are optional:
// a nil slice/pointer means "not supplied" exactly as the spec's Option<T>.
type SyncRequest struct {
	MyPeerID    PeerId
	MySessionID SessionId
	IsInitiator bool
	Descriptors []RoutePeerInfo
	Bitmap      *RouteConnBitmap
}

// SyncResponse is the transport-agnostic result of a successful sync call.
type SyncResponse struct {
	IsInitiator bool
	SessionID   SessionId
}

// SyncTransport is the RPC transport collaborator (§6, out of scope): it
// ships a SyncRequest to a neighbor and returns its SyncResponse. A
// *FatalError (ClientTransport wraps ErrDuplicatePeerId in one) ends the
// outbound loop and the manager; every other error, ErrStopped included, is
// treated as a transport failure/timeout and retried. The session is not
// torn down on ErrStopped.
type SyncTransport interface {
	SyncRouteInfo(ctx context.Context, peer PeerId, req SyncRequest) (SyncResponse, error)
}
