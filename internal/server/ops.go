package server

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// OpsServer exposes the standard gRPC health service plus reflection, so
// orchestration probes and grpcurl can interrogate a running engine. The
// engine's data plane stays entirely on the event streams; this surface is
// operational only.
type OpsServer struct {
	grpcServer *grpc.Server
	health     *health.Server
	addr       string
	log        zerolog.Logger
}

func NewOpsServer(addr string, log zerolog.Logger) *OpsServer {
	grpcServer := grpc.NewServer()

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	reflection.Register(grpcServer)

	return &OpsServer{
		grpcServer: grpcServer,
		health:     healthServer,
		addr:       addr,
		log:        log,
	}
}

// SetReady flips the health service between SERVING and NOT_SERVING.
// Called once recovery completes, and again on shutdown.
func (s *OpsServer) SetReady(ready bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
}

// Run serves until ctx is cancelled, then stops gracefully.
func (s *OpsServer) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", s.addr, err)
	}

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("grpc ops server shutting down")
		s.grpcServer.GracefulStop()
	}()

	s.log.Info().Str("addr", s.addr).Msg("grpc ops server listening")
	return s.grpcServer.Serve(lis)
}
