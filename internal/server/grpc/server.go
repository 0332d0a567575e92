// Package grpc serves the standard gRPC health protocol for the account
// service. The serving status follows a periodic database probe.
package grpc

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophaccounts/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported for the account registry.
const ServiceName = "gophaccounts.Accounts"

const defaultProbeInterval = 10 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type GRPCServer struct {
	address       string
	health        *health.Server
	db            Pinger
	probeInterval time.Duration
	logger        logging.Logger
}

// NewGRPCServer builds a health server. A nil db means the registry has no
// external dependency and is always reported as serving.
func NewGRPCServer(address string, db Pinger, l logging.Logger) *GRPCServer {
	return &GRPCServer{
		address:       address,
		health:        health.NewServer(),
		db:            db,
		probeInterval: defaultProbeInterval,
		logger:        l.With("module", "grpc_server"),
	}
}

func (s *GRPCServer) setStatus(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// probe updates the serving status once.
func (s *GRPCServer) probe(ctx context.Context) {
	if s.db == nil {
		s.setStatus(healthpb.HealthCheckResponse_SERVING)
		return
	}

	pingCtx, cancel := context.WithTimeout(ctx, s.probeInterval)
	defer cancel()

	if err := s.db.PingContext(pingCtx); err != nil {
		s.logger.Warn(ctx, "database probe failed", "error", err)
		s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
}

func (s *GRPCServer) register() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.loggingInterceptor),
		grpc.ChainStreamInterceptor(s.streamLoggingInterceptor),
	)
	healthpb.RegisterHealthServer(srv, s.health)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := s.register()
	s.probe(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.probeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info(ctx, "Stopping gRPC server...")
				s.health.Shutdown()
				srv.GracefulStop()
				return
			case <-ticker.C:
				s.probe(ctx)
			}
		}
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	err = srv.Serve(listen)
	cancel()
	wg.Wait()

	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}
