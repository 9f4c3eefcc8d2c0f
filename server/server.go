// Package server exposes a factory over Connect RPC.
//
// Messages are google.protobuf.Struct values, so the services can be
// reached from any Connect, gRPC or plain HTTP/JSON client without
// generated stubs.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/scopeproxy/factory"
)

var log = commonlog.GetLogger("scopeproxy.server")

// ScopeServer serves ModelService and ProxyService on one mux.
type ScopeServer struct {
	factory *factory.Factory
	handles *HandleStore
	mux     *http.ServeMux

	stopSweeper func()
}

// ServerOption configures a ScopeServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	sweepInterval time.Duration
	handleTTL     time.Duration
}

// WithHandleTTL sets how long unused proxy handles are kept.
func WithHandleTTL(interval, ttl time.Duration) ServerOption {
	return func(c *serverConfig) {
		c.sweepInterval = interval
		c.handleTTL = ttl
	}
}

type unaryFunc func(context.Context, *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error)

// New creates a ScopeServer over f.
func New(f *factory.Factory, opts ...ServerOption) *ScopeServer {
	cfg := &serverConfig{
		sweepInterval: 5 * time.Minute,
		handleTTL:     30 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &ScopeServer{
		factory: f,
		handles: NewHandleStore(),
		mux:     http.NewServeMux(),
	}

	models := NewModelService(f)
	proxies := NewProxyService(f, s.handles)
	for procedure, fn := range map[string]unaryFunc{
		DescribeProcedure: models.Describe,
		GenerateProcedure: models.Generate,
		CreateProcedure:   proxies.Create,
		CallProcedure:     proxies.Call,
		GetProcedure:      proxies.Get,
		SetProcedure:      proxies.Set,
		SnapshotProcedure: proxies.Snapshot,
		RestoreProcedure:  proxies.Restore,
		ReleaseProcedure:  proxies.Release,
	} {
		s.mux.Handle(procedure, connect.NewUnaryHandler[structpb.Struct, structpb.Struct](procedure, fn))
	}

	s.stopSweeper = s.handles.StartSweeper(cfg.sweepInterval, cfg.handleTTL)
	return s
}

// Handler returns the HTTP handler serving every procedure.
func (s *ScopeServer) Handler() http.Handler { return s.mux }

// Handles returns the store of live proxies.
func (s *ScopeServer) Handles() *HandleStore { return s.handles }

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *ScopeServer) ListenAndServe(addr string) error {
	log.Noticef("listening on %s", addr)
	fmt.Printf("scopeproxy server listening on %s\n", addr)
	fmt.Printf("  Connect (HTTP/JSON): http://%s%s\n", addr, DescribeProcedure)
	return http.ListenAndServe(addr, s.mux)
}

// Stop shuts down the handle sweeper.
func (s *ScopeServer) Stop() {
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
}
