// Package grpcserver — служебный gRPC: health-check и reflection.
package grpcserver

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName — имя сервиса в health-check.
const ServiceName = "homefix.bookingcore.v1.BookingCore"

type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	ping     func(ctx context.Context) error
	interval time.Duration
	logger   *zap.Logger
}

// New собирает сервер. ping проверяет БД; по результату меняется статус health.
func New(ping func(ctx context.Context) error, interval time.Duration, logger *zap.Logger) *Server {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	return &Server{
		grpc:     gs,
		health:   hs,
		ping:     ping,
		interval: interval,
		logger:   logger,
	}
}

func (s *Server) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.logger.Info("gRPC health server listening", zap.String("addr", addr))
	return s.ServeListener(ctx, lis)
}

// ServeListener обслуживает lis до отмены ctx, затем мягко останавливается.
func (s *Server) ServeListener(ctx context.Context, lis net.Listener) error {
	s.Check(ctx)
	go s.watch(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(lis) }()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) watch(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Check(ctx)
		}
	}
}

// Check пингует БД и выставляет статус.
func (s *Server) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if s.ping != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := s.ping(pingCtx)
		cancel()
		if err != nil {
			s.logger.Warn("database ping failed", zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}
