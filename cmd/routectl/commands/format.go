package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

// routeView mirrors internal/server's JSON route row.
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

// peerView mirrors internal/server's JSON peer row.
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

func formatRoutes(routes []routeView, format string) (string, error) {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(routes, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal routes to JSON: %w", err)
		}
		return string(data), nil
	case formatTable:
		return formatRoutesTable(routes), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatRoutesTable(routes []routeView) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PEER\tNEXT-HOP\tCOST\tIPV4\tHOSTNAME\tNAT\tVERSION")

	for _, r := range routes {
		fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%s\t%s\t%s\n",
			r.PeerID, r.NextHopPeer, r.Cost, valueOrNA(r.IPv4Addr), valueOrNA(r.Hostname),
			r.NatInfo, r.BuildVersion)
	}

	w.Flush()
	return buf.String()
}

func formatPeers(peers []peerView, format string) (string, error) {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(peers, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal peers to JSON: %w", err)
		}
		return string(data), nil
	case formatTable:
		return formatPeersTable(peers), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatPeersTable(peers []peerView) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PEER\tINST-ID\tCOST\tIPV4\tHOSTNAME\tNAT\tVERSION")

	for _, p := range peers {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\t%d\n",
			p.PeerID, p.InstID, p.Cost, valueOrNA(p.IPv4Addr), valueOrNA(p.Hostname),
			p.NatInfo, p.Version)
	}

	w.Flush()
	return buf.String()
}

func valueOrNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
