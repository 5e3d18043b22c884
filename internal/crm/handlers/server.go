// Package handlers provides the gRPC and HTTP servers of the CRM, bridging
// the transport layer and the business logic.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gartstein/staffing/internal/crm/auth"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server runs the CRM gRPC service and the REST routes side by side.
type Server struct {
	grpcServer   *grpc.Server
	health       *health.Server
	httpServer   *http.Server
	logger       *zap.Logger
	grpcEndpoint string
	httpEndpoint string
}

// NewServer constructs a Server with separate endpoints for gRPC and HTTP.
func NewServer(
	grpcPort int,
	httpPort int,
	logger *zap.Logger,
	grpcOpts ...grpc.ServerOption,
) *Server {
	return &Server{
		grpcServer:   grpc.NewServer(grpcOpts...),
		health:       health.NewServer(),
		httpServer:   &http.Server{ReadHeaderTimeout: 10 * time.Second},
		logger:       logger,
		grpcEndpoint: fmt.Sprintf(":%d", grpcPort),
		httpEndpoint: fmt.Sprintf(":%d", httpPort),
	}
}

// RegisterGRPCHandler registers the CRM service and its health status.
func (s *Server) RegisterGRPCHandler(h CRMServiceServer) {
	RegisterCRMServiceServer(s.grpcServer, h)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
}

// RegisterHTTPHandlers mounts the REST routes behind the auth middleware.
func (s *Server) RegisterHTTPHandlers(rest *RESTHandler, jwtSecret string) error {
	mux := runtime.NewServeMux()
	if err := rest.Register(mux); err != nil {
		return err
	}

	s.httpServer.Handler = auth.HTTPMiddleware(mux, jwtSecret)
	s.httpServer.Addr = s.httpEndpoint
	return nil
}

// Start binds both endpoints and serves until Stop is called. When one
// server fails the other is closed and the first error is returned.
func (s *Server) Start() error {
	grpcLis, err := net.Listen("tcp", s.grpcEndpoint)
	if err != nil {
		return fmt.Errorf("gRPC listen error: %w", err)
	}
	httpLis, err := net.Listen("tcp", s.httpEndpoint)
	if err != nil {
		grpcLis.Close()
		return fmt.Errorf("HTTP listen error: %w", err)
	}

	var g errgroup.Group
	g.Go(func() error {
		s.logger.Info("Serving gRPC", zap.Stringer("addr", grpcLis.Addr()))
		if err := s.grpcServer.Serve(grpcLis); err != nil {
			s.httpServer.Close()
			return fmt.Errorf("gRPC serve error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		s.logger.Info("Serving HTTP", zap.Stringer("addr", httpLis.Addr()))
		if err := s.httpServer.Serve(httpLis); !errors.Is(err, http.ErrServerClosed) {
			s.grpcServer.Stop()
			return fmt.Errorf("HTTP serve error: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// Stop marks the service NOT_SERVING and drains both servers.
func (s *Server) Stop() {
	s.logger.Info("Shutting down servers")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.grpcServer.GracefulStop()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	s.logger.Info("Servers stopped")
}
