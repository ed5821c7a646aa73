// Package adminrpc exposes the Framer process over gRPC health checking
// and reflection, registering grpc_health_v1 the way a gRPC service
// bootstraps alongside its application service. This package
// deliberately stops at health and reflection: a bespoke admin RPC
// service would need protoc-generated stubs this environment cannot
// produce, so library/session listing lives on the read-only
// internal/monitor websocket feed instead; neither surface offers forced
// disconnects.
package adminrpc

import (
	"net"

	"github.com/luxfi/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Server wraps a grpc.Server pre-registered with health checking and
// reflection, plus the ability to flip serving status as the Framer's
// leadership or readiness changes.
type Server struct {
	grpcServer  *grpc.Server
	healthState *health.Server
	logger      log.Logger
}

const serviceName = "fixgateway.Framer"

func New(logger log.Logger) *Server {
	grpcServer := grpc.NewServer()

	healthState := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthState)
	healthState.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	healthState.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	reflection.Register(grpcServer)

	return &Server{grpcServer: grpcServer, healthState: healthState, logger: logger}
}

// SetServing flips the overall and per-service health status.
// cmd/fixgateway calls it with true once the Framer has bound its
// listener and with false on shutdown; cluster leadership changes do not
// change it.
func (s *Server) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if !serving {
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	s.healthState.SetServingStatus("", status)
	s.healthState.SetServingStatus(serviceName, status)
}

// Serve blocks accepting gRPC connections on addr until the listener
// fails or the server is stopped.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.logger.Info("admin rpc listening", "addr", addr)
	return s.grpcServer.Serve(lis)
}

func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}
