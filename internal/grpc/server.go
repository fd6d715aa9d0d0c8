// Package grpc поднимает gRPC-сервер с протоколом grpc.health.v1,
// который сообщает о готовности постоянного хранилища.
package grpc

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName имя сервиса в протоколе здоровья.
const ServiceName = "linkshortener.Shortener"

// DefaultProbeInterval период проверки хранилища.
const DefaultProbeInterval = 5 * time.Second

// Pinger проверяет готовность зависимости.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server gRPC-сервер здоровья.
type Server struct {
	server   *grpc.Server
	health   *health.Server
	pinger   Pinger
	logger   *zap.Logger
	interval time.Duration
}

// NewServer создаёт сервер. Статус обновляется по результату pinger.Ping.
func NewServer(pinger Pinger, logger *zap.Logger, interval time.Duration) *Server {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	s := &Server{
		health:   health.NewServer(),
		pinger:   pinger,
		logger:   logger,
		interval: interval,
	}
	s.server = grpc.NewServer(grpc.UnaryInterceptor(s.logUnary))
	healthpb.RegisterHealthServer(s.server, s.health)
	return s
}

// Probe проверяет хранилище и выставляет статус.
func (s *Server) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := s.pinger.Ping(ctx); err != nil {
		s.logger.Warn("readiness probe failed", zap.Error(err))
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// Serve обслуживает lis до отмены ctx.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.Probe(ctx)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.health.Shutdown()
				s.server.GracefulStop()
				return
			case <-ticker.C:
				s.Probe(ctx)
			}
		}
	}()

	return s.server.Serve(lis)
}

func (s *Server) logUnary(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug("gRPC request",
		zap.String("method", info.FullMethod),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err),
	)
	return resp, err
}
