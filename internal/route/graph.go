package route

import (
	"container/heap"
)

// routeGraph is a value-type directed adjacency-list graph built fresh from
// a SyncedRouteInfo snapshot on every route-table rebuild (§4.2). There is
// no persistent pointer graph: each rebuild discards the previous one,
// which keeps the builder free of incremental-update bugs at the cost of a
// full rebuild every time -- the spec accepts this trade explicitly (§9,
// "Full rebuild vs incremental").
type routeGraph struct {
	nodes map[PeerId]struct{}
	// edges[a][b] is the directed cost a -> b, present only when a and b
	// are mutually adjacent (§3: adjacency is treated as undirected once
	// both sides agree, but the edge weight itself may be asymmetric via
	// the cost calculator).
	edges map[PeerId]map[PeerId]int64
}

// buildGraph constructs a routeGraph from a DB snapshot, keeping only edges
// between peers that are mutually adjacent (§4.1 directlyConnected, §4.2
// step "construct edges"). cost computes the directed weight of the edge;
// pass defaultCostCalculator{}.CalculateCost for the hop-count policy.
func buildGraph(peers map[PeerId]RoutePeerInfo, adj map[PeerId]map[PeerId]struct{}, cost func(a, b PeerId) int64) *routeGraph {
	g := &routeGraph{
		nodes: make(map[PeerId]struct{}, len(peers)),
		edges: make(map[PeerId]map[PeerId]int64, len(peers)),
	}
	for id := range peers {
		g.nodes[id] = struct{}{}
	}
	for a, neighbors := range adj {
		if _, ok := peers[a]; !ok {
			continue
		}
		for b := range neighbors {
			if _, ok := peers[b]; !ok {
				continue
			}
			bNeighbors, ok := adj[b]
			if !ok {
				continue
			}
			if _, mutual := bNeighbors[a]; !mutual {
				continue
			}
			if g.edges[a] == nil {
				g.edges[a] = make(map[PeerId]int64)
			}
			g.edges[a][b] = cost(a, b)
		}
	}
	return g
}

// neighborsOf returns the sorted out-neighbors of a, giving every caller
// that walks the graph the same deterministic order (§13(c)).
func (g *routeGraph) neighborsOf(a PeerId) []PeerId {
	return sortedPeerIDs(g.edges[a])
}

// dijkstraResult is one entry of a single-source shortest-path run.
type dijkstraResult struct {
	dist    int64
	hops    int
	nextHop PeerId // the neighbor of the source on the shortest path to this node
	reached bool
}

type heapItem struct {
	id   PeerId
	dist int64
}

type distHeap []heapItem

func (h distHeap) Len() int            { return len(h) }
func (h distHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h distHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *distHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *distHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// dijkstra runs single-source shortest path from src over g, using
// container/heap for the priority queue (the teacher has no graph code to
// ground this on; this is a direct textbook implementation per SPEC_FULL.md
// §12). next_hop for each reached node is the immediate neighbor of src on
// its shortest path, resolved by walking predecessors back to src.
func dijkstra(g *routeGraph, src PeerId) map[PeerId]dijkstraResult {
	result := make(map[PeerId]dijkstraResult, len(g.nodes))
	pred := make(map[PeerId]PeerId)

	result[src] = dijkstraResult{dist: 0, hops: 0, reached: true}

	h := &distHeap{{id: src, dist: 0}}
	visited := make(map[PeerId]bool)

	for h.Len() > 0 {
		cur := heap.Pop(h).(heapItem)
		if visited[cur.id] {
			continue
		}
		visited[cur.id] = true
		curResult := result[cur.id]

		for _, next := range g.neighborsOf(cur.id) {
			if visited[next] {
				continue
			}
			weight := g.edges[cur.id][next]
			nd := curResult.dist + weight
			nh := curResult.hops + 1
			existing, ok := result[next]
			if !ok || nd < existing.dist {
				pred[next] = cur.id
				result[next] = dijkstraResult{dist: nd, hops: nh, reached: true}
				heap.Push(h, heapItem{id: next, dist: nd})
			}
		}
	}

	for id, r := range result {
		if id == src {
			continue
		}
		hop := id
		for pred[hop] != src {
			hop = pred[hop]
		}
		r.nextHop = hop
		result[id] = r
	}
	return result
}

// hopCounts runs a breadth-first search from src, returning the minimum hop
// count to every reachable node (§4.2 step "LeastHop phase 1").
func hopCounts(g *routeGraph, src PeerId) map[PeerId]int {
	dist := map[PeerId]int{src: 0}
	queue := []PeerId{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.neighborsOf(cur) {
			if _, seen := dist[next]; seen {
				continue
			}
			dist[next] = dist[cur] + 1
			queue = append(queue, next)
		}
	}
	return dist
}

// simplePath is one fully-enumerated path from src to dst with its total
// cost, used by the LeastHop phase-2 path enumeration.
type simplePath struct {
	nextHop PeerId
	cost    int64
}

// enumerateMinHopPaths walks every simple path from src to dst whose length
// in hops equals minHops (as computed by hopCounts), bounded by maxPaths to
// keep the search from blowing up on a dense mesh (§4.2 step "LeastHop
// phase 2"), and returns the lowest-cost one. Ties are broken by the last
// one found under the deterministic sorted-neighbor DFS order (§13(c)).
func enumerateMinHopPaths(g *routeGraph, src, dst PeerId, minHops int, maxPaths int) (simplePath, bool) {
	var best simplePath
	found := false
	explored := 0
	visited := map[PeerId]bool{src: true}

	var dfs func(cur PeerId, depth int, cost int64, first PeerId)
	dfs = func(cur PeerId, depth int, cost int64, first PeerId) {
		if explored >= maxPaths {
			return
		}
		if cur == dst {
			if depth == minHops {
				explored++
				if !found || cost <= best.cost {
					best = simplePath{nextHop: first, cost: cost}
					found = true
				}
			}
			return
		}
		if depth >= minHops {
			return
		}
		for _, next := range g.neighborsOf(cur) {
			if visited[next] {
				continue
			}
			nextFirst := first
			if depth == 0 {
				nextFirst = next
			}
			visited[next] = true
			dfs(next, depth+1, cost+g.edges[cur][next], nextFirst)
			visited[next] = false
			if explored >= maxPaths {
				return
			}
		}
	}
	dfs(src, 0, 0, 0)
	return best, found
}
