package server

import (
	"context"
	"errors"
	"fmt"
	"crypto/tls"
	"net"
	"net/http"
	"sync"

	"connectrpc.com/connect"
	"golang.org/x/net/http2"

	"github.com/linkmesh/routecore/internal/route"
	"github.com/linkmesh/routecore/pkg/routepb"
	"github.com/linkmesh/routecore/pkg/routepb/routeconnect"
)

// PeerAddressResolver maps a neighbor's PeerId to the base URL of its
// control-plane endpoint. It stands in for whatever the peer-connectivity
// layer (§1, out of scope) actually uses to address a neighbor (overlay
// IP, rendezvous lookup, ...); routecore only needs the resulting URL.
type PeerAddressResolver interface {
	ResolveBaseURL(peer route.PeerId) (string, error)
}

// ErrUnresolvedPeer is returned when a PeerAddressResolver has no address
// on file for a peer the session manager wants to dial.
var ErrUnresolvedPeer = errors.New("no known address for peer")

// ClientTransport implements route.SyncTransport over connect-rpc,
// memoizing one RouteServiceClient per neighbor base URL. It dials with
// h2c (cleartext HTTP/2), the client-side counterpart of the h2c.Handler
// cmd/routed wraps its mux in, the same pairing the teacher uses for
// gobfdctl talking to gobfd.
type ClientTransport struct {
	resolver PeerAddressResolver

	mu      sync.Mutex
	clients map[string]routeconnect.RouteServiceClient
}

// NewClientTransport constructs a ClientTransport dialing neighbors
// resolved through resolver.
func NewClientTransport(resolver PeerAddressResolver) *ClientTransport {
	return &ClientTransport{
		resolver: resolver,
		clients:  make(map[string]routeconnect.RouteServiceClient),
	}
}

func (t *ClientTransport) clientFor(baseURL string) routeconnect.RouteServiceClient {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.clients[baseURL]; ok {
		return c
	}
	c := routeconnect.NewRouteServiceClient(h2cClient(), baseURL)
	t.clients[baseURL] = c
	return c
}

// h2cClient returns an *http.Client that speaks cleartext HTTP/2 to an h2c
// server, bypassing the usual TLS-ALPN upgrade dance.
func h2cClient() *http.Client {
	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}

// SyncRouteInfo implements route.SyncTransport.
func (t *ClientTransport) SyncRouteInfo(ctx context.Context, peer route.PeerId, req route.SyncRequest) (route.SyncResponse, error) {
	baseURL, err := t.resolver.ResolveBaseURL(peer)
	if err != nil {
		return route.SyncResponse{}, fmt.Errorf("%w: %w", ErrUnresolvedPeer, err)
	}

	wireReq := &routepb.SyncRouteInfoRequest{
		MyPeerId:    uint32(req.MyPeerID),
		MySessionId: uint64(req.MySessionID),
		IsInitiator: req.IsInitiator,
	}
	for _, d := range req.Descriptors {
		wireReq.PeerInfos = append(wireReq.PeerInfos, descriptorToWire(d))
	}
	if req.Bitmap != nil {
		wireReq.ConnBitmap = bitmapToWire(*req.Bitmap)
	}

	resp, err := t.clientFor(baseURL).SyncRouteInfo(ctx, connect.NewRequest(wireReq))
	if err != nil {
		switch connect.CodeOf(err) {
		case connect.CodeAlreadyExists:
			return route.SyncResponse{}, &route.FatalError{Peer: peer, Err: route.ErrDuplicatePeerId}
		case connect.CodeUnavailable:
			return route.SyncResponse{}, route.ErrStopped
		default:
			return route.SyncResponse{}, err
		}
	}

	return route.SyncResponse{
		IsInitiator: resp.Msg.GetIsInitiator(),
		SessionID:   route.SessionId(resp.Msg.GetSessionId()),
	}, nil
}

var _ route.SyncTransport = (*ClientTransport)(nil)
