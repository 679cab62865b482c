package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/linkmesh/routecore/internal/route"
)

// NewDebugMux builds the plain HTTP/JSON introspection surface routectl
// talks to (§6 "list_routes", "get_next_hop", "dump"; peers list derived
// from the synced DB). There is no wire RPC for these read-only queries —
// SyncRouteInfo (§6, service id 7) is peer-to-peer only — so they are
// served as small JSON handlers on the same mux the metrics endpoint uses,
// the way cmd/gobfd's metrics server mounts promhttp alongside whatever
// else a deployment needs probed from the outside.
func NewDebugMux(svc *route.PeerRouteService) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/routes", handleRoutes(svc))
	mux.HandleFunc("/debug/peers", handlePeers(svc))
	mux.HandleFunc("/debug/next-hop", handleNextHop(svc))
	mux.HandleFunc("/debug/dump", handleDump(svc))
	return mux
}

type routeView struct {
	PeerID       uint32   `json:"peer_id"`
	IPv4Addr     string   `json:"ipv4_addr,omitempty"`
	NextHopPeer  uint32   `json:"next_hop_peer"`
	Cost         int64    `json:"cost"`
	ProxyCIDRs   []string `json:"proxy_cidrs,omitempty"`
	Hostname     string   `json:"hostname,omitempty"`
	NatInfo      string   `json:"nat_info"`
	InstID       string   `json:"inst_id,omitempty"`
	BuildVersion string   `json:"build_version,omitempty"`
}

func handleRoutes(svc *route.PeerRouteService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := svc.ListRoutes()
		views := make([]routeView, 0, len(entries))
		for _, e := range entries {
			v := routeView{
				PeerID:       uint32(e.PeerID),
				NextHopPeer:  uint32(e.NextHopPeer),
				Cost:         e.Cost,
				Hostname:     e.Hostname,
				NatInfo:      e.NatInfo.String(),
				InstID:       e.InstID,
				BuildVersion: e.BuildVersion,
			}
			if e.IPv4Addr.IsValid() {
				v.IPv4Addr = e.IPv4Addr.String()
			}
			for _, c := range e.ProxyCIDRs {
				v.ProxyCIDRs = append(v.ProxyCIDRs, c.String())
			}
			views = append(views, v)
		}
		writeJSON(w, views)
	}
}

type peerView struct {
	PeerID     uint32   `json:"peer_id"`
	InstID     string   `json:"inst_id,omitempty"`
	Cost       uint8    `json:"cost"`
	IPv4Addr   string   `json:"ipv4_addr,omitempty"`
	ProxyCIDRs []string `json:"proxy_cidrs,omitempty"`
	Hostname   string   `json:"hostname,omitempty"`
	NatInfo    string   `json:"nat_info"`
	Version    uint32   `json:"version"`
}

func handlePeers(svc *route.PeerRouteService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		peers := svc.ListPeers()
		views := make([]peerView, 0, len(peers))
		for _, p := range peers {
			v := peerView{
				PeerID:   uint32(p.PeerID),
				InstID:   p.InstID.String(),
				Cost:     p.Cost,
				Hostname: p.Hostname,
				NatInfo:  p.NatInfo.String(),
				Version:  uint32(p.Version),
			}
			if p.IPv4Addr.IsValid() {
				v.IPv4Addr = p.IPv4Addr.String()
			}
			for _, c := range p.ProxyCIDRs {
				v.ProxyCIDRs = append(v.ProxyCIDRs, c.String())
			}
			views = append(views, v)
		}
		writeJSON(w, views)
	}
}

func handleNextHop(svc *route.PeerRouteService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		dst, err := strconv.ParseUint(q.Get("peer_id"), 10, 32)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid peer_id: %v", err), http.StatusBadRequest)
			return
		}
		policy, err := parsePolicy(q.Get("policy"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		nh, ok := svc.NextHop(route.PeerId(dst), policy)
		if !ok {
			http.Error(w, "unreachable", http.StatusNotFound)
			return
		}
		writeJSON(w, struct {
			NextHopPeer uint32 `json:"next_hop_peer"`
			Cost        int64  `json:"cost"`
		}{uint32(nh.NextHop), nh.Cost})
	}
}

func handleDump(svc *route.PeerRouteService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, svc.Dump())
	}
}

func parsePolicy(s string) (route.Policy, error) {
	switch s {
	case "", "least-hop", "least_hop":
		return route.LeastHop, nil
	case "least-cost", "least_cost":
		return route.LeastCost, nil
	default:
		return 0, fmt.Errorf("unknown policy %q: expected least-hop or least-cost", s)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
