package grpcserver

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/md-rashed-zaman/storefront/libs/grpcx"
	"github.com/md-rashed-zaman/storefront/libs/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported for the booking API.
const ServiceName = "storefront.booking.v1.Booking"

// Server exposes grpc.health.v1 for the booking service. Its status follows the same ready
// checks as /readyz, re-evaluated every interval.
type Server struct {
	srv      *grpc.Server
	health   *health.Server
	checks   []runtime.ReadyCheck
	interval time.Duration
	logger   *slog.Logger
}

func New(logger *slog.Logger, interval time.Duration, checks ...runtime.ReadyCheck) *Server {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	srv := grpc.NewServer(grpcx.ServerOptions(logger)...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &Server{srv: srv, health: hs, checks: checks, interval: interval, logger: logger}
}

// Start listens on addr and serves until ctx is done.
func (s *Server) Start(ctx context.Context, addr string) (net.Addr, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s.refresh(ctx)

	go func() {
		s.logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := s.srv.Serve(lis); err != nil {
			s.logger.Error("grpc server error", "err", err)
		}
	}()
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.health.Shutdown()
				s.srv.GracefulStop()
				s.logger.Info("grpc server stopped")
				return
			case <-ticker.C:
				s.refresh(ctx)
			}
		}
	}()
	return lis.Addr(), nil
}

func (s *Server) refresh(ctx context.Context) {
	failures, _ := runtime.RunChecks(ctx, s.checks)
	status := healthpb.HealthCheckResponse_SERVING
	if len(failures) > 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		s.logger.Warn("grpc health not serving", "failures", failures)
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
