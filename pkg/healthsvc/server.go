// Package healthsvc exposes the standard gRPC health-checking protocol
// (grpc_health_v1, precompiled inside google.golang.org/grpc itself — no
// local codegen) for container-orchestration liveness/readiness probes
// against cmd/orchestratord and cmd/sandboxworker.
package healthsvc

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Checker reports whether the owning process is currently healthy — for
// orchestratord, a database ping; for sandboxworker, "has not missed its
// own heartbeat deadline". A nil Checker always reports healthy.
type Checker func(ctx context.Context) error

// Server wraps the standard grpc health.Server, periodically re-evaluating
// a Checker and flipping the overall serving status.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	check      Checker
	service    string
}

// New builds a Server for service (the name probes ask about; "" is the
// convention for "the whole process"). check may be nil.
func New(service string, check Checker) *Server {
	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	return &Server{grpcServer: gs, health: hs, check: check, service: service}
}

// Serve listens on addr and blocks until ctx is canceled, at which point it
// gracefully stops the gRPC server.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	go s.watch(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.grpcServer.Serve(ln) }()

	select {
	case <-ctx.Done():
		s.grpcServer.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// watch re-evaluates the Checker every tick and updates the reported
// serving status, so a probe started before the first check still sees a
// definitive answer rather than hanging on NOT_SERVING forever.
func (s *Server) watch(ctx context.Context) {
	const interval = 10 * time.Second
	s.runCheck(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCheck(ctx)
		}
	}
}

func (s *Server) runCheck(ctx context.Context) {
	if s.check == nil {
		s.health.SetServingStatus(s.service, healthpb.HealthCheckResponse_SERVING)
		return
	}
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.check(checkCtx); err != nil {
		slog.Warn("health check failed", "service", s.service, "error", err)
		s.health.SetServingStatus(s.service, healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	s.health.SetServingStatus(s.service, healthpb.HealthCheckResponse_SERVING)
}
