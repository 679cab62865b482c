// Package route implements the peer-to-peer link-state routing core of a
// mesh overlay network.
//
// Every node gossips peer descriptors and adjacency bitmaps with its
// directly-connected neighbors (SyncedRouteInfo, §4.1) and independently
// computes next-hop decisions from the resulting picture via shortest-path
// search over two policies, LeastHop and LeastCost (the route-table
// builder, §4.2). A per-neighbor SyncRouteSession (§4.3) tracks which
// versions have been confirmed delivered; PeerRouteService (§4.4) owns the
// database, both route tables, and the session map; RouteSessionManager
// (§4.5) runs the distributed protocol: it serves inbound sync RPCs,
// drives one outbound sync loop per neighbor, elects exactly one
// initiator per link, and reaps dead sessions.
//
// The RPC transport, the peer-connectivity layer (which neighbors are
// currently directly connected), and packet forwarding are external
// collaborators not implemented by this package; see Collaborators.
package route
