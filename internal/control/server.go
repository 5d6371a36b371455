// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PhotoStream Contributors

// Package control exposes a gRPC health endpoint for process management.
package control

import (
	"context"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server runs the gRPC health service. Orchestrators and the status
// subcommand probe it with the standard grpc_health_v1 protocol.
type Server struct {
	component  string
	logger     *slog.Logger
	health     *health.Server
	grpcServer *grpc.Server
	listener   net.Listener
	running    atomic.Bool
}

// NewServer creates a control server for the named component.
func NewServer(component string, logger *slog.Logger) (*Server, error) {
	if component == "" {
		return nil, oops.Code("CONTROL_NO_COMPONENT").Errorf("component name cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		component: component,
		logger:    logger,
		health:    health.NewServer(),
	}, nil
}

// Start begins serving on addr. It returns an error channel that
// receives any serve failure; the channel closes on graceful stop.
func (s *Server) Start(addr string) (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Errorf("control server already running")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("CONTROL_LISTEN_FAILED").With("addr", addr).Wrap(err)
	}
	s.listener = listener

	s.grpcServer = grpc.NewServer()
	healthpb.RegisterHealthServer(s.grpcServer, s.health)

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(s.component, healthpb.HealthCheckResponse_SERVING)

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := s.grpcServer.Serve(listener); serveErr != nil {
			s.logger.Error("control server error",
				slog.String("component", s.component),
				slog.Any("error", serveErr))
			errCh <- serveErr
		}
	}()

	s.logger.Info("control server started",
		slog.String("component", s.component),
		slog.String("addr", listener.Addr().String()))
	return errCh, nil
}

// Stop marks the service NOT_SERVING and shuts the server down. It
// falls back to a hard stop when ctx expires first.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.grpcServer.Stop()
		<-done
	}

	s.logger.Info("control server stopped", slog.String("component", s.component))
	return nil
}

// Addr returns the listen address, or empty when not running.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Check probes the health of the component served at addr.
func Check(ctx context.Context, addr, component string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN,
			oops.Code("CONTROL_DIAL_FAILED").With("addr", addr).Wrap(err)
	}
	defer func() { _ = conn.Close() }()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(checkCtx,
		&healthpb.HealthCheckRequest{Service: component})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN,
			oops.Code("CONTROL_CHECK_FAILED").With("addr", addr).Wrap(err)
	}
	return resp.GetStatus(), nil
}
