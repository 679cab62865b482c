// Package server implements the ConnectRPC server for the routing core.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/netip"
	"strconv"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/linkmesh/routecore/internal/route"
	"github.com/linkmesh/routecore/pkg/routepb"
	"github.com/linkmesh/routecore/pkg/routepb/routeconnect"
)

// ErrSessionManagerGone indicates the server's back-reference to the
// RouteSessionManager failed to resolve (§7 "Stopped").
var ErrSessionManagerGone = errors.New("route session manager is gone")

// RouteServer implements routeconnect.RouteServiceHandler, translating
// between the wire messages in pkg/routepb and the transport-agnostic
// types the route package works with. Struct shape (a thin adapter holding
// a single collaborator plus a logger) is grounded on the teacher's
// BFDServer in the same file.
type RouteServer struct {
	manager *route.RouteSessionManager
	logger  *slog.Logger
}

var _ routeconnect.RouteServiceHandler = (*RouteServer)(nil)

// New creates a new RouteServer and returns the HTTP handler and the path
// it must be mounted at.
func New(mgr *route.RouteSessionManager, logger *slog.Logger, opts ...connect.HandlerOption) (string, http.Handler) {
	srv := &RouteServer{
		manager: mgr,
		logger:  logger.With(slog.String("component", "server")),
	}
	return routeconnect.NewRouteServiceHandler(srv, opts...)
}

// SyncRouteInfo is the single wire RPC (§6, service id 7).
func (s *RouteServer) SyncRouteInfo(ctx context.Context, req *connect.Request[routepb.SyncRouteInfoRequest]) (*connect.Response[routepb.SyncRouteInfoResponse], error) {
	msg := req.Msg
	fromPeer := route.PeerId(msg.GetMyPeerId())

	domainReq := route.SyncRequest{
		MyPeerID:    fromPeer,
		MySessionID: route.SessionId(msg.GetMySessionId()),
		IsInitiator: msg.GetIsInitiator(),
		Descriptors: descriptorsFromWire(msg.GetPeerInfos()),
		Bitmap:      bitmapFromWire(msg.GetConnBitmap()),
	}

	if s.manager == nil {
		return nil, connect.NewError(connect.CodeUnavailable, ErrSessionManagerGone)
	}

	resp, err := s.manager.HandleSyncRouteInfo(ctx, fromPeer, domainReq)
	if err != nil {
		return nil, mapManagerError(err)
	}

	s.logger.DebugContext(ctx, "sync_route_info handled",
		slog.Uint64("from_peer", uint64(fromPeer)),
		slog.Int("descriptors", len(domainReq.Descriptors)),
		slog.Bool("bitmap", domainReq.Bitmap != nil),
	)

	return connect.NewResponse(&routepb.SyncRouteInfoResponse{
		IsInitiator: resp.IsInitiator,
		SessionId:   uint64(resp.SessionID),
	}), nil
}

// mapManagerError translates a route package error into a connect error
// carrying the taxonomy of §7.
func mapManagerError(err error) error {
	var fatal *route.FatalError
	switch {
	case errors.As(err, &fatal):
		return connect.NewError(connect.CodeInternal, err)
	case errors.Is(err, route.ErrDuplicatePeerId):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, route.ErrStopped):
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

func descriptorsFromWire(wire []*routepb.RoutePeerInfo) []route.RoutePeerInfo {
	if len(wire) == 0 {
		return nil
	}
	out := make([]route.RoutePeerInfo, 0, len(wire))
	for _, w := range wire {
		out = append(out, descriptorFromWire(w))
	}
	return out
}

func descriptorFromWire(w *routepb.RoutePeerInfo) route.RoutePeerInfo {
	info := route.RoutePeerInfo{
		PeerID:   route.PeerId(w.GetPeerId()),
		Cost:     uint8(w.GetCost()),
		Hostname: w.GetHostname(),
		NatInfo:  route.NatType(w.GetNatType()),
		Version:  route.Version(w.GetVersion()),
	}
	if instID, err := uuid.Parse(w.GetInstId()); err == nil {
		info.InstID = instID
	}
	if addr, err := netip.ParseAddr(w.GetIpv4Addr()); err == nil {
		info.IPv4Addr = addr
	}
	for _, c := range w.GetProxyCidrs() {
		if prefix, err := netip.ParsePrefix(c); err == nil {
			info.ProxyCIDRs = append(info.ProxyCIDRs, prefix)
		}
	}
	if w.LastUpdate != nil {
		info.LastUpdate = w.LastUpdate.AsTime()
	} else {
		info.LastUpdate = time.Now()
	}
	return info
}

func descriptorToWire(info route.RoutePeerInfo) *routepb.RoutePeerInfo {
	w := &routepb.RoutePeerInfo{
		PeerId:     uint32(info.PeerID),
		InstId:     info.InstID.String(),
		Cost:       uint32(info.Cost),
		Hostname:   info.Hostname,
		NatType:    int32(info.NatInfo),
		Version:    uint32(info.Version),
		LastUpdate: timestamppb.New(info.LastUpdate),
	}
	if info.IPv4Addr.IsValid() {
		w.Ipv4Addr = info.IPv4Addr.String()
	}
	for _, c := range info.ProxyCIDRs {
		w.ProxyCidrs = append(w.ProxyCidrs, c.String())
	}
	return w
}

func bitmapFromWire(w *routepb.RouteConnBitmap) *route.RouteConnBitmap {
	if w == nil {
		return nil
	}
	labels := make([]route.BitmapLabel, 0, len(w.GetPeerIds()))
	for _, l := range w.GetPeerIds() {
		labels = append(labels, route.BitmapLabel{PeerID: route.PeerId(l.PeerId), Version: route.Version(l.Version)})
	}
	return &route.RouteConnBitmap{PeerIDs: labels, Bitmap: append([]byte(nil), w.GetBitmap()...)}
}

func bitmapToWire(bm route.RouteConnBitmap) *routepb.RouteConnBitmap {
	labels := make([]*routepb.RouteConnBitmapLabel, 0, len(bm.PeerIDs))
	for _, l := range bm.PeerIDs {
		labels = append(labels, &routepb.RouteConnBitmapLabel{PeerId: uint32(l.PeerID), Version: uint32(l.Version)})
	}
	return &routepb.RouteConnBitmap{PeerIds: labels, Bitmap: bm.Bitmap}
}
