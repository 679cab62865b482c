package server_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"

	"github.com/linkmesh/routecore/internal/route"
	"github.com/linkmesh/routecore/internal/server"
	"github.com/linkmesh/routecore/pkg/routepb"
	"github.com/linkmesh/routecore/pkg/routepb/routeconnect"
)

// panicHandler implements routeconnect.RouteServiceHandler and panics on
// every call, used to exercise RecoveryInterceptor.
type panicHandler struct{}

func (panicHandler) SyncRouteInfo(context.Context, *connect.Request[routepb.SyncRouteInfoRequest]) (*connect.Response[routepb.SyncRouteInfoResponse], error) {
	panic("intentional test panic")
}

// setupServerWithInterceptors wires a real RouteServer backed by a service
// for peer 1, behind the given handler options.
func setupServerWithInterceptors(t *testing.T, opts ...connect.HandlerOption) routeconnect.RouteServiceClient {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	svc := route.NewPeerRouteService(1, "test", route.DefaultTunables())
	mgr := route.NewRouteSessionManager(svc, fakePeerLister{}, fakeLocalContext{ctx: route.LocalContext{PeerID: 1}}, fakeTransport{}, route.DefaultTunables(), logger)

	path, handler := server.New(mgr, logger, opts...)
	mux := http.NewServeMux()
	mux.Handle(path, handler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return routeconnect.NewRouteServiceClient(srv.Client(), srv.URL)
}

// setupPanicServer wires the panicking handler directly, bypassing
// RouteServer entirely, to isolate RecoveryInterceptor's behavior.
func setupPanicServer(t *testing.T, opts ...connect.HandlerOption) routeconnect.RouteServiceClient {
	t.Helper()

	path, handler := routeconnect.NewRouteServiceHandler(panicHandler{}, opts...)
	mux := http.NewServeMux()
	mux.Handle(path, handler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return routeconnect.NewRouteServiceClient(srv.Client(), srv.URL)
}

func TestLoggingInterceptorSuccess(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.DiscardHandler)
	client := setupServerWithInterceptors(t, connect.WithInterceptors(server.LoggingInterceptor(logger)))

	_, err := client.SyncRouteInfo(context.Background(), connect.NewRequest(&routepb.SyncRouteInfoRequest{MyPeerId: 2}))
	if err != nil {
		t.Fatalf("SyncRouteInfo: %v", err)
	}
}

func TestLoggingInterceptorError(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.DiscardHandler)
	path, handler := server.New(nil, logger, connect.WithInterceptors(server.LoggingInterceptor(logger)))
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	client := routeconnect.NewRouteServiceClient(srv.Client(), srv.URL)

	_, err := client.SyncRouteInfo(context.Background(), connect.NewRequest(&routepb.SyncRouteInfoRequest{MyPeerId: 2}))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		t.Fatalf("expected connect.Error, got %T: %v", err, err)
	}
	if connectErr.Code() != connect.CodeUnavailable {
		t.Errorf("code = %s, want Unavailable", connectErr.Code())
	}
}

func TestRecoveryInterceptorNoPanic(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.DiscardHandler)
	client := setupServerWithInterceptors(t, connect.WithInterceptors(server.RecoveryInterceptor(logger)))

	_, err := client.SyncRouteInfo(context.Background(), connect.NewRequest(&routepb.SyncRouteInfoRequest{MyPeerId: 2}))
	if err != nil {
		t.Fatalf("SyncRouteInfo: %v", err)
	}
}

func TestRecoveryInterceptorPanic(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.DiscardHandler)
	client := setupPanicServer(t, connect.WithInterceptors(server.RecoveryInterceptor(logger)))

	_, err := client.SyncRouteInfo(context.Background(), connect.NewRequest(&routepb.SyncRouteInfoRequest{MyPeerId: 2}))
	if err == nil {
		t.Fatal("expected error after panic, got nil")
	}
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		t.Fatalf("expected connect.Error, got %T: %v", err, err)
	}
	if connectErr.Code() != connect.CodeInternal {
		t.Errorf("code = %s, want Internal", connectErr.Code())
	}
}

func TestBothInterceptors(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.DiscardHandler)
	client := setupServerWithInterceptors(t,
		connect.WithInterceptors(
			server.LoggingInterceptor(logger),
			server.RecoveryInterceptor(logger),
		),
	)

	_, err := client.SyncRouteInfo(context.Background(), connect.NewRequest(&routepb.SyncRouteInfoRequest{MyPeerId: 2}))
	if err != nil {
		t.Fatalf("SyncRouteInfo: %v", err)
	}
}
