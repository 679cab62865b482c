package route

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
)

// seedTriangle installs a 1-2-3 fully-connected triangle (all links cost 1
// via defaultCostCalculator) directly into svc's DB, bypassing the manager's
// neighbor-discovery path since these tests exercise the service in
// isolation.
func seedTriangle(t *testing.T, svc *PeerRouteService) {
	t.Helper()
	db := svc.DB()
	descriptors := []RoutePeerInfo{
		{PeerID: 1, Version: 1, Hostname: "one"},
		{PeerID: 2, Version: 1, Hostname: "two", IPv4Addr: netip.MustParseAddr("10.0.0.2")},
		{PeerID: 3, Version: 1, Hostname: "three"},
	}
	if err := db.applyDescriptors(99, 99, descriptors); err != nil {
		t.Fatalf("applyDescriptors: %v", err)
	}
	db.refreshSelfNeighbors(1, map[PeerId]struct{}{2: {}, 3: {}})
	db.refreshSelfNeighbors(2, map[PeerId]struct{}{1: {}, 3: {}})
	db.refreshSelfNeighbors(3, map[PeerId]struct{}{1: {}, 2: {}})
}

func TestUpdateRouteTableAndListRoutes(t *testing.T) {
	svc := NewPeerRouteService(1, "test-build", DefaultTunables())
	seedTriangle(t, svc)
	svc.UpdateRouteTable(context.Background())

	routes := svc.ListRoutes()
	if len(routes) != 2 {
		t.Fatalf("ListRoutes() returned %d entries, want 2", len(routes))
	}
	byID := make(map[PeerId]RouteEntry)
	for _, r := range routes {
		byID[r.PeerID] = r
	}
	r2, ok := byID[2]
	if !ok {
		t.Fatal("expected a route to peer 2")
	}
	if r2.NextHopPeer != 2 || r2.BuildVersion != "test-build" {
		t.Errorf("route to 2 = %+v, want direct hop and build version stamped", r2)
	}
}

func TestListRoutesStructuredContent(t *testing.T) {
	svc := NewPeerRouteService(1, "test-build", DefaultTunables())
	seedTriangle(t, svc)
	svc.UpdateRouteTable(context.Background())

	zeroInstID := (uuid.UUID{}).String()
	want := []RouteEntry{
		{PeerID: 2, IPv4Addr: netip.MustParseAddr("10.0.0.2"), NextHopPeer: 2, Cost: 1, Hostname: "two", InstID: zeroInstID, BuildVersion: "test-build"},
		{PeerID: 3, NextHopPeer: 3, Cost: 1, Hostname: "three", InstID: zeroInstID, BuildVersion: "test-build"},
	}
	got := svc.ListRoutes()
	opts := cmp.Options{cmpopts.EquateComparable(netip.Addr{}, netip.Prefix{})}
	if diff := cmp.Diff(want, got, opts); diff != "" {
		t.Errorf("ListRoutes() mismatch (-want +got):\n%s", diff)
	}
}

func TestNextHopSelfIsZeroCost(t *testing.T) {
	svc := NewPeerRouteService(1, "v", DefaultTunables())
	nh, ok := svc.NextHop(1, LeastHop)
	if !ok || nh.NextHop != 1 || nh.Cost != 0 {
		t.Errorf("NextHop(self) = %+v, %v, want {1 0} true", nh, ok)
	}
}

func TestListPeersExcludesPlaceholders(t *testing.T) {
	svc := NewPeerRouteService(1, "v", DefaultTunables())
	svc.DB().ensure(42) // placeholder only
	if err := svc.DB().applyDescriptors(1, 2, []RoutePeerInfo{{PeerID: 2, Version: 1}}); err != nil {
		t.Fatalf("applyDescriptors: %v", err)
	}
	peers := svc.ListPeers()
	if len(peers) != 1 || peers[0].PeerID != 2 {
		t.Errorf("ListPeers() = %+v, want only peer 2", peers)
	}
}

func TestLookupIPv4AndProxyCIDR(t *testing.T) {
	svc := NewPeerRouteService(1, "v", DefaultTunables())
	seedTriangle(t, svc)
	svc.UpdateRouteTable(context.Background())

	if id, ok := svc.LookupIPv4(netip.MustParseAddr("10.0.0.2")); !ok || id != 2 {
		t.Errorf("LookupIPv4 = %d, %v, want 2, true", id, ok)
	}
	if _, ok := svc.LookupIPv4(netip.MustParseAddr("192.0.2.1")); ok {
		t.Error("LookupIPv4 found an address that was never advertised")
	}
}

func TestBuildDeltaAndMarkDeltaSent(t *testing.T) {
	svc := NewPeerRouteService(1, "v", DefaultTunables())
	seedTriangle(t, svc)
	svc.UpdateRouteTable(context.Background())

	sess := svc.GetOrCreateSession(2)
	descriptors, _ := svc.BuildDelta(sess)
	if len(descriptors) == 0 {
		t.Fatal("expected a non-empty delta for a fresh session")
	}

	svc.MarkDeltaSent(sess, descriptors, nil)

	descriptors2, _ := svc.BuildDelta(sess)
	for _, d := range descriptors2 {
		if d.PeerID == 3 {
			t.Errorf("BuildDelta resent peer 3 after MarkDeltaSent acknowledged it")
		}
	}
}

func TestBuildDeltaOmitsUnreachablePeers(t *testing.T) {
	svc := NewPeerRouteService(1, "v", DefaultTunables())
	// peer 5 is known but not reachable from peer 1 (no adjacency at all).
	if err := svc.DB().applyDescriptors(1, 5, []RoutePeerInfo{{PeerID: 5, Version: 1}}); err != nil {
		t.Fatalf("applyDescriptors: %v", err)
	}
	svc.UpdateRouteTable(context.Background())

	sess := svc.GetOrCreateSession(9)
	descriptors, _ := svc.BuildDelta(sess)
	for _, d := range descriptors {
		if d.PeerID == 5 {
			t.Error("BuildDelta must not send an unreachable peer's descriptor")
		}
	}
}

func TestApplyInboundUpdatesDBAndHighWaterMarks(t *testing.T) {
	svc := NewPeerRouteService(1, "v", DefaultTunables())
	sess := svc.GetOrCreateSession(7)

	inbound := []RoutePeerInfo{{PeerID: 7, Version: 3, Hostname: "seven"}}
	if err := svc.ApplyInbound(sess, inbound, nil); err != nil {
		t.Fatalf("ApplyInbound: %v", err)
	}

	info, ok := svc.DB().peerInfo(7)
	if !ok || info.Version != 3 {
		t.Errorf("ApplyInbound did not install the descriptor, got %+v, %v", info, ok)
	}
	if !sess.upToDate(7, 3) {
		t.Error("ApplyInbound should advance the session high-water mark for what it just received")
	}
}

func TestApplyInboundRejectsSelfClaim(t *testing.T) {
	svc := NewPeerRouteService(1, "v", DefaultTunables())
	svc.DB().refreshSelf(LocalContext{PeerID: 1}, time.Hour, time.Now())
	sess := svc.GetOrCreateSession(2)

	inbound := []RoutePeerInfo{{PeerID: 1, Version: 9999}}
	err := svc.ApplyInbound(sess, inbound, nil)
	var fatal *FatalError
	if err == nil {
		t.Fatal("expected a fatal error when a neighbor claims our own peer id")
	}
	if !errors.As(err, &fatal) {
		t.Errorf("expected a *FatalError, got %v (%T)", err, err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	svc := NewPeerRouteService(1, "v", DefaultTunables())
	if _, ok := svc.Session(4); ok {
		t.Fatal("Session should report false before any session exists")
	}
	sess := svc.GetOrCreateSession(4)
	if again := svc.GetOrCreateSession(4); again != sess {
		t.Error("GetOrCreateSession should return the same session on repeated calls")
	}
	if len(svc.Sessions()) != 1 {
		t.Errorf("Sessions() = %d entries, want 1", len(svc.Sessions()))
	}
	svc.RemoveSession(4)
	if _, ok := svc.Session(4); ok {
		t.Error("RemoveSession did not remove the session")
	}
	if len(svc.Sessions()) != 0 {
		t.Errorf("Sessions() = %d entries after removal, want 0", len(svc.Sessions()))
	}
}

func TestDumpIncludesSessionSummary(t *testing.T) {
	svc := NewPeerRouteService(1, "v", DefaultTunables())
	svc.GetOrCreateSession(2)
	out := svc.Dump()
	if len(out) == 0 {
		t.Fatal("Dump() returned an empty string")
	}
}
