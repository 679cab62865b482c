// Package staticpeers adapts a declarative config.Peers list and the local
// config.IdentityConfig into the route package's out-of-scope collaborators
// (route.PeerLister, route.LocalContextProvider, server.PeerAddressResolver).
// It stands in for the dynamic peer-connectivity and global-configuration
// layers spec.md names but does not define, the way the teacher's
// configSessionToBFD/reconcileSessions convert declarative YAML sessions
// into bfd.SessionConfig at startup.
package staticpeers

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/linkmesh/routecore/internal/config"
	"github.com/linkmesh/routecore/internal/route"
)

// Directory resolves the static peer list and local identity declared in
// configuration. It is immutable after construction: reconfiguring peers
// requires a process restart, matching cmd/routed's treatment of every
// other config field at this stage.
type Directory struct {
	local   route.LocalContext
	peerIDs []route.PeerId
	baseURL map[route.PeerId]string
}

// New builds a Directory from the loaded configuration. instID is the
// process-lifetime instance id (§3 "inst_id (UUID)"), freshly generated by
// cmd/routed on each start.
func New(cfg *config.Config, instID uuid.UUID) (*Directory, error) {
	addr, err := cfg.Identity.PeerIDAddr()
	if err != nil {
		return nil, fmt.Errorf("identity ipv4_addr: %w", err)
	}
	prefixes, err := cfg.Identity.ProxyPrefixes()
	if err != nil {
		return nil, fmt.Errorf("identity proxy_cidrs: %w", err)
	}

	d := &Directory{
		local: route.LocalContext{
			PeerID:     route.PeerId(cfg.Identity.PeerID),
			InstID:     instID,
			Cost:       cfg.Identity.Cost,
			IPv4Addr:   addr,
			ProxyCIDRs: prefixes,
			Hostname:   cfg.Identity.Hostname,
			NatInfo:    parseNatType(cfg.Identity.NatType),
		},
		baseURL: make(map[route.PeerId]string, len(cfg.Peers)),
	}

	for _, p := range cfg.Peers {
		id := route.PeerId(p.PeerID)
		d.peerIDs = append(d.peerIDs, id)
		d.baseURL[id] = p.BaseURL
	}

	return d, nil
}

// ListPeers implements route.PeerLister.
func (d *Directory) ListPeers(_ context.Context) ([]route.PeerId, error) {
	out := make([]route.PeerId, len(d.peerIDs))
	copy(out, d.peerIDs)
	return out, nil
}

// LocalContext implements route.LocalContextProvider.
func (d *Directory) LocalContext() route.LocalContext {
	return d.local
}

// ResolveBaseURL implements server.PeerAddressResolver.
func (d *Directory) ResolveBaseURL(peer route.PeerId) (string, error) {
	url, ok := d.baseURL[peer]
	if !ok {
		return "", fmt.Errorf("peer %d: no base_url configured", peer)
	}
	return url, nil
}

var natTypeByName = map[string]route.NatType{
	"unknown":                route.NatUnknown,
	"open_internet":          route.NatOpenInternet,
	"no_pat":                 route.NatNoPat,
	"full_cone":              route.NatFullCone,
	"restricted":             route.NatRestricted,
	"port_restricted":        route.NatPortRestricted,
	"symmetric":              route.NatSymmetric,
	"symmetric_udp_firewall": route.NatSymmetricUDPFirewall,
}

func parseNatType(s string) route.NatType {
	if nt, ok := natTypeByName[s]; ok {
		return nt
	}
	return route.NatUnknown
}
