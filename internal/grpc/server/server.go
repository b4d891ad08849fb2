package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	grpctls "github.com/EternisAI/silo-enroll/internal/grpc/tls"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// BackendService is the health service name that follows the backend session.
const BackendService = "bsidca"

const defaultPollInterval = 5 * time.Second

type Config struct {
	Port         int            `mapstructure:"port"`
	PollInterval time.Duration  `mapstructure:"poll_interval"`
	TLS          grpctls.Config `mapstructure:"tls"`
}

type HealthSource interface {
	Healthy() bool
}

type Server struct {
	grpcServer   *grpc.Server
	health       *health.Server
	source       HealthSource
	port         int
	pollInterval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewServer(cfg Config, source HealthSource) (*Server, error) {
	var opts []grpc.ServerOption
	if cfg.TLS.Enabled {
		creds, err := grpctls.LoadServerCredentials(cfg.TLS)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.Creds(creds))
	}

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	s := &Server{
		grpcServer:   grpc.NewServer(opts...),
		health:       health.NewServer(),
		source:       source,
		port:         cfg.Port,
		pollInterval: interval,
		stopCh:       make(chan struct{}),
	}
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	s.refresh()
	return s, nil
}

func (s *Server) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}
	return s.Serve(lis)
}

// Serve blocks serving on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.wg.Add(1)
	go s.watch()

	slog.Info("Starting gRPC health server", "addr", lis.Addr().String())

	if err := s.grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve gRPC: %w", err)
	}
	return nil
}

func (s *Server) watch() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.refresh()
		}
	}
}

func (s *Server) refresh() {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s.source != nil && s.source.Healthy() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(BackendService, status)
}

func (s *Server) Stop(ctx context.Context) error {
	slog.Info("Stopping gRPC server")

	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		slog.Info("gRPC server stopped gracefully")
	case <-ctx.Done():
		slog.Warn("gRPC server stop timeout, forcing shutdown")
		s.grpcServer.Stop()
	}

	return nil
}

func (s *Server) StopWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Stop(ctx)
}
