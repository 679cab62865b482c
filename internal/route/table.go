package route

import "net/netip"

// maxEnumeratedPaths bounds the LeastHop phase-2 simple-path enumeration
// per destination so a dense mesh cannot make a rebuild run unbounded
// (§4.2 step 4, §9 "Size Budget" considerations carried into the Go
// rendition as an explicit cap rather than an unstated one).
const maxEnumeratedPaths = 4096

// RouteTable is the immutable result of one route-table build for one
// policy (§4.2): next-hop lookups plus the IPv4/proxy-CIDR indexes derived
// from the descriptors that were reachable at build time.
type RouteTable struct {
	policy Policy

	nextHops map[PeerId]NextHopEntry
	byIPv4   map[netip.Addr]PeerId
	cidrs    []cidrRoute
}

type cidrRoute struct {
	prefix netip.Prefix
	peer   PeerId
}

// buildRouteTable builds the route table for localPeer under policy from a
// DB snapshot (§4.2). An empty or single-node DB yields a table containing
// only the trivial self-entries and no edges -- never an error (§4.2 edge
// case, §8 S6).
func buildRouteTable(localPeer PeerId, policy Policy, peers map[PeerId]RoutePeerInfo, adj map[PeerId]map[PeerId]struct{}, cost func(a, b PeerId) int64) *RouteTable {
	g := buildGraph(peers, adj, cost)

	t := &RouteTable{
		policy:   policy,
		nextHops: make(map[PeerId]NextHopEntry),
		byIPv4:   make(map[netip.Addr]PeerId),
	}
	// The local node maps to itself with cost 0 (§4.2 "Output"), unconditionally:
	// this is what makes the local node's own descriptor count as reachable so
	// PeerRouteService.BuildDelta ships it to neighbors.
	t.nextHops[localPeer] = NextHopEntry{NextHop: localPeer, Cost: 0}

	if _, ok := g.nodes[localPeer]; ok {
		switch policy {
		case LeastHop:
			t.fillLeastHop(g, localPeer)
		default:
			t.fillLeastCost(g, localPeer)
		}
	}

	t.indexDescriptors(peers)
	return t
}

func (t *RouteTable) fillLeastCost(g *routeGraph, localPeer PeerId) {
	for id, r := range dijkstra(g, localPeer) {
		if id == localPeer || !r.reached {
			continue
		}
		t.nextHops[id] = NextHopEntry{NextHop: r.nextHop, Cost: r.dist}
	}
}

// fillLeastHop runs the spec's two-phase LeastHop algorithm (§4.2 step 4):
// phase 1 finds the minimum hop count to each destination by BFS, phase 2
// enumerates every simple path of exactly that length and keeps the
// cheapest. The recorded cost is the hop count, not the path's weighted cost.
func (t *RouteTable) fillLeastHop(g *routeGraph, localPeer PeerId) {
	hops := hopCounts(g, localPeer)
	for id, minHops := range hops {
		if id == localPeer || minHops == 0 {
			continue
		}
		path, ok := enumerateMinHopPaths(g, localPeer, id, minHops, maxEnumeratedPaths)
		if !ok {
			continue
		}
		t.nextHops[id] = NextHopEntry{NextHop: path.nextHop, Cost: int64(minHops)}
	}
}

// indexDescriptors populates the IPv4 and proxy-CIDR indexes from every
// reachable peer's descriptor (which, since nextHops always carries the
// local self-entry, includes the local node), so lookupIPv4/lookupProxyCIDR
// never need to re-walk the graph (§4.2, §4.4 "lookup_ipv4",
// "lookup_proxy_cidr").
func (t *RouteTable) indexDescriptors(peers map[PeerId]RoutePeerInfo) {
	for id := range t.nextHops {
		info, ok := peers[id]
		if !ok {
			continue
		}
		t.indexOne(id, info)
	}
}

func (t *RouteTable) indexOne(id PeerId, info RoutePeerInfo) {
	if info.IPv4Addr.IsValid() {
		t.byIPv4[info.IPv4Addr] = id
	}
	for _, c := range info.ProxyCIDRs {
		t.cidrs = append(t.cidrs, cidrRoute{prefix: c, peer: id})
	}
}

// nextHop returns the next hop toward dst, if reachable.
func (t *RouteTable) nextHop(dst PeerId) (NextHopEntry, bool) {
	e, ok := t.nextHops[dst]
	return e, ok
}

// lookupIPv4 finds the owning peer of an exact IPv4 overlay address.
func (t *RouteTable) lookupIPv4(addr netip.Addr) (PeerId, bool) {
	id, ok := t.byIPv4[addr]
	return id, ok
}

// lookupProxyCIDR finds the peer whose advertised proxy CIDR contains addr,
// preferring the longest (most specific) matching prefix (§4.2, §4.4).
func (t *RouteTable) lookupProxyCIDR(addr netip.Addr) (PeerId, bool) {
	best := -1
	var bestPeer PeerId
	for _, c := range t.cidrs {
		if !c.prefix.Contains(addr) {
			continue
		}
		if c.prefix.Bits() > best {
			best = c.prefix.Bits()
			bestPeer = c.peer
		}
	}
	if best < 0 {
		return 0, false
	}
	return bestPeer, true
}

// reachablePeers returns every destination this table has a route to,
// including the local node itself (which always maps to itself at cost 0).
func (t *RouteTable) reachablePeers() []PeerId {
	return sortedPeerIDs(t.nextHops)
}
