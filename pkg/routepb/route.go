// Package routepb holds the wire messages of the routing core's single RPC
// (spec §6, service id 7). These are hand-authored plain Go structs rather
// than protoc-generated proto.Message implementations: running protoc is
// outside this module's build, so the generated-stub *shape* (message
// structs with nil-safe Get* accessors, a matching *connect package) is
// reproduced by hand and carried over the wire with a JSON codec instead of
// the protobuf binary codec (see routeconnect.Codec). The well-known
// timestamp wrapper type is still genuinely used for wire fields that need
// it.
package routepb

import "google.golang.org/protobuf/types/known/timestamppb"

// RoutePeerInfo is the wire form of route.RoutePeerInfo.
type RoutePeerInfo struct {
	PeerId     uint32                 `json:"peer_id"`
	InstId     string                 `json:"inst_id"`
	Cost       uint32                 `json:"cost"`
	Ipv4Addr   string                 `json:"ipv4_addr,omitempty"`
	ProxyCidrs []string               `json:"proxy_cidrs,omitempty"`
	Hostname   string                 `json:"hostname,omitempty"`
	NatType    int32                  `json:"nat_type"`
	LastUpdate *timestamppb.Timestamp `json:"last_update,omitempty"`
	Version    uint32                 `json:"version"`
}

func (m *RoutePeerInfo) GetPeerId() uint32 {
	if m == nil {
		return 0
	}
	return m.PeerId
}

func (m *RoutePeerInfo) GetInstId() string {
	if m == nil {
		return ""
	}
	return m.InstId
}

func (m *RoutePeerInfo) GetCost() uint32 {
	if m == nil {
		return 0
	}
	return m.Cost
}

func (m *RoutePeerInfo) GetIpv4Addr() string {
	if m == nil {
		return ""
	}
	return m.Ipv4Addr
}

func (m *RoutePeerInfo) GetProxyCidrs() []string {
	if m == nil {
		return nil
	}
	return m.ProxyCidrs
}

func (m *RoutePeerInfo) GetHostname() string {
	if m == nil {
		return ""
	}
	return m.Hostname
}

func (m *RoutePeerInfo) GetNatType() int32 {
	if m == nil {
		return 0
	}
	return m.NatType
}

func (m *RoutePeerInfo) GetVersion() uint32 {
	if m == nil {
		return 0
	}
	return m.Version
}

// RouteConnBitmapLabel is one row/column label of a RouteConnBitmap.
type RouteConnBitmapLabel struct {
	PeerId  uint32 `json:"peer_id"`
	Version uint32 `json:"version"`
}

// RouteConnBitmap is the wire form of route.RouteConnBitmap.
type RouteConnBitmap struct {
	PeerIds []*RouteConnBitmapLabel `json:"peer_ids,omitempty"`
	Bitmap  []byte                  `json:"bitmap,omitempty"`
}

func (m *RouteConnBitmap) GetPeerIds() []*RouteConnBitmapLabel {
	if m == nil {
		return nil
	}
	return m.PeerIds
}

func (m *RouteConnBitmap) GetBitmap() []byte {
	if m == nil {
		return nil
	}
	return m.Bitmap
}

// SyncRouteInfoRequest is the wire request for the routing core's sole RPC
// (spec §6). PeerInfos and ConnBitmap are both optional.
type SyncRouteInfoRequest struct {
	MyPeerId    uint32           `json:"my_peer_id"`
	MySessionId uint64           `json:"my_session_id"`
	IsInitiator bool             `json:"is_initiator"`
	PeerInfos   []*RoutePeerInfo `json:"peer_infos,omitempty"`
	ConnBitmap  *RouteConnBitmap `json:"conn_bitmap,omitempty"`
}

func (m *SyncRouteInfoRequest) GetMyPeerId() uint32 {
	if m == nil {
		return 0
	}
	return m.MyPeerId
}

func (m *SyncRouteInfoRequest) GetMySessionId() uint64 {
	if m == nil {
		return 0
	}
	return m.MySessionId
}

func (m *SyncRouteInfoRequest) GetIsInitiator() bool {
	if m == nil {
		return false
	}
	return m.IsInitiator
}

func (m *SyncRouteInfoRequest) GetPeerInfos() []*RoutePeerInfo {
	if m == nil {
		return nil
	}
	return m.PeerInfos
}

func (m *SyncRouteInfoRequest) GetConnBitmap() *RouteConnBitmap {
	if m == nil {
		return nil
	}
	return m.ConnBitmap
}

// SyncRouteInfoResponse is the wire response. On failure the RPC instead
// returns a *connect.Error carrying DuplicatePeerId or Stopped (§7).
type SyncRouteInfoResponse struct {
	IsInitiator bool   `json:"is_initiator"`
	SessionId   uint64 `json:"session_id"`
}

func (m *SyncRouteInfoResponse) GetIsInitiator() bool {
	if m == nil {
		return false
	}
	return m.IsInitiator
}

func (m *SyncRouteInfoResponse) GetSessionId() uint64 {
	if m == nil {
		return 0
	}
	return m.SessionId
}
