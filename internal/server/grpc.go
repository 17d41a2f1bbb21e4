package server

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// GRPCServer exposes the gRPC surface: health checking for orchestration
// probes and reflection for grpcurl / grpcui. The query API itself is served
// as HTTP/JSON by HTTPServer.
type GRPCServer struct {
	grpcServer   *grpc.Server
	healthServer *health.Server
	addr         string
}

func NewGRPCServer(addr string) *GRPCServer {
	grpcServer := grpc.NewServer()

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	reflection.Register(grpcServer)

	return &GRPCServer{
		grpcServer:   grpcServer,
		healthServer: healthServer,
		addr:         addr,
	}
}

// SetServing flips the health status reported to orchestration probes.
func (s *GRPCServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.healthServer.SetServingStatus("", status)
}

// Start runs the gRPC server until ctx is cancelled (blocking).
func (s *GRPCServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("gRPC server shutting down")
		s.grpcServer.GracefulStop()
	}()

	log.Info().Str("addr", s.addr).Msg("gRPC server listening")
	return s.grpcServer.Serve(lis)
}
