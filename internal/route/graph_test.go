package route

import "testing"

func unitCost(PeerId, PeerId) int64 { return 1 }

func TestBuildGraphRequiresMutualAdjacency(t *testing.T) {
	peers := map[PeerId]RoutePeerInfo{1: {PeerID: 1}, 2: {PeerID: 2}, 3: {PeerID: 3}}
	adj := map[PeerId]map[PeerId]struct{}{
		1: {2: {}}, // 1 claims 2, but 2 does not claim 1 back
		2: {3: {}},
		3: {2: {}},
	}
	g := buildGraph(peers, adj, unitCost)

	if _, ok := g.edges[1]; ok {
		t.Error("a one-sided adjacency claim must not produce an edge")
	}
	if _, ok := g.edges[2][3]; !ok {
		t.Error("a mutual adjacency claim must produce an edge")
	}
}

func TestDijkstraShortestPath(t *testing.T) {
	// 1 -- 2 -- 3, plus a longer 1 -- 4 -- 3 path.
	peers := map[PeerId]RoutePeerInfo{1: {}, 2: {}, 3: {}, 4: {}}
	adj := map[PeerId]map[PeerId]struct{}{
		1: {2: {}, 4: {}},
		2: {1: {}, 3: {}},
		3: {2: {}, 4: {}},
		4: {1: {}, 3: {}},
	}
	cost := func(a, b PeerId) int64 {
		if (a == 1 && b == 4) || (a == 4 && b == 1) {
			return 10
		}
		return 1
	}
	g := buildGraph(peers, adj, cost)
	result := dijkstra(g, 1)

	r3 := result[3]
	if r3.dist != 2 || r3.nextHop != 2 {
		t.Errorf("dijkstra to 3 = %+v, want dist 2 via next_hop 2", r3)
	}
}

func TestHopCountsBFS(t *testing.T) {
	peers := map[PeerId]RoutePeerInfo{1: {}, 2: {}, 3: {}}
	adj := map[PeerId]map[PeerId]struct{}{
		1: {2: {}},
		2: {1: {}, 3: {}},
		3: {2: {}},
	}
	g := buildGraph(peers, adj, unitCost)
	hops := hopCounts(g, 1)

	if hops[3] != 2 {
		t.Errorf("hopCounts[3] = %d, want 2", hops[3])
	}
}

func TestEnumerateMinHopPathsPrefersCheaperTie(t *testing.T) {
	// Two 2-hop paths from 1 to 4: via 2 (cost 6) and via 3 (cost 2).
	peers := map[PeerId]RoutePeerInfo{1: {}, 2: {}, 3: {}, 4: {}}
	adj := map[PeerId]map[PeerId]struct{}{
		1: {2: {}, 3: {}},
		2: {1: {}, 4: {}},
		3: {1: {}, 4: {}},
		4: {2: {}, 3: {}},
	}
	cost := func(a, b PeerId) int64 {
		switch {
		case (a == 1 && b == 2) || (a == 2 && b == 4):
			return 3
		default:
			return 1
		}
	}
	g := buildGraph(peers, adj, cost)
	hops := hopCounts(g, 1)
	path, ok := enumerateMinHopPaths(g, 1, 4, hops[4], maxEnumeratedPaths)
	if !ok {
		t.Fatal("expected a min-hop path to be found")
	}
	if path.nextHop != 3 || path.cost != 2 {
		t.Errorf("enumerateMinHopPaths = %+v, want next_hop 3 cost 2", path)
	}
}
