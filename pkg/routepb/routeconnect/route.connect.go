// Package routeconnect is a hand-authored substitute for what
// protoc-gen-connect-go would generate from a route.proto defining the
// wire RPC of spec §6 (service id 7): interface shape, procedure path
// constants, and NewXxxHandler/NewXxxClient constructors match the
// generated convention; only the codec differs (see codec.go).
package routeconnect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"

	"github.com/linkmesh/routecore/pkg/routepb"
)

// ServiceID is the fixed numeric RPC service id the spec assigns this
// protocol (§6).
const ServiceID = 7

const (
	// RouteServiceName is the fully-qualified service name used in the
	// procedure path, mirroring protoc-gen-connect-go's naming.
	RouteServiceName = "linkmesh.route.v1.RouteService"

	// RouteServiceSyncRouteInfoProcedure is the procedure path for the
	// routing core's sole RPC.
	RouteServiceSyncRouteInfoProcedure = "/" + RouteServiceName + "/SyncRouteInfo"
)

// RouteServiceClient is the client API for RouteService.
type RouteServiceClient interface {
	SyncRouteInfo(ctx context.Context, req *connect.Request[routepb.SyncRouteInfoRequest]) (*connect.Response[routepb.SyncRouteInfoResponse], error)
}

// RouteServiceHandler is the server API for RouteService.
type RouteServiceHandler interface {
	SyncRouteInfo(ctx context.Context, req *connect.Request[routepb.SyncRouteInfoRequest]) (*connect.Response[routepb.SyncRouteInfoResponse], error)
}

// NewRouteServiceClient constructs a client for RouteService. The JSON
// codec is always registered ahead of any caller-supplied options so a
// caller can still add interceptors/compression without losing it.
func NewRouteServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) RouteServiceClient {
	opts = append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
	return &routeServiceClient{
		syncRouteInfo: connect.NewClient[routepb.SyncRouteInfoRequest, routepb.SyncRouteInfoResponse](
			httpClient, baseURL+RouteServiceSyncRouteInfoProcedure, opts...,
		),
	}
}

type routeServiceClient struct {
	syncRouteInfo *connect.Client[routepb.SyncRouteInfoRequest, routepb.SyncRouteInfoResponse]
}

func (c *routeServiceClient) SyncRouteInfo(ctx context.Context, req *connect.Request[routepb.SyncRouteInfoRequest]) (*connect.Response[routepb.SyncRouteInfoResponse], error) {
	return c.syncRouteInfo.CallUnary(ctx, req)
}

// NewRouteServiceHandler constructs an HTTP handler for RouteService and
// returns it alongside the path it must be mounted at.
func NewRouteServiceHandler(svc RouteServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	mux := http.NewServeMux()
	mux.Handle(RouteServiceSyncRouteInfoProcedure, connect.NewUnaryHandler(
		RouteServiceSyncRouteInfoProcedure,
		svc.SyncRouteInfo,
		opts...,
	))
	return "/" + RouteServiceName + "/", mux
}
