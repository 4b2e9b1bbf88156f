package server

import (
	"context"
	"errors"
	"net"
	"time"

	grpcx "github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/transport/grpc"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/transport/ratelimit"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/config"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const shutdownTimeout = 5 * time.Second

// StartGRPCServer поднимает gRPC-сервер health-проверок и блокируется до отмены ctx.
func StartGRPCServer(
	ctx context.Context,
	cfg *config.Config,
	reporter *grpcx.HealthReporter,
	visitors *ratelimit.Visitors,
	logger *zap.Logger,
) error {
	lis, err := net.Listen("tcp", cfg.GRPCAddress)
	if err != nil {
		return err
	}
	return ServeGRPC(ctx, lis, cfg, reporter, visitors, logger)
}

// ServeGRPC обслуживает уже открытый listener; вынесено для тестов.
func ServeGRPC(
	ctx context.Context,
	lis net.Listener,
	cfg *config.Config,
	reporter *grpcx.HealthReporter,
	visitors *ratelimit.Visitors,
	logger *zap.Logger,
) error {
	var creds credentials.TransportCredentials
	if cfg.TLSEnabled() {
		c, err := credentials.NewServerTLSFromFile(cfg.HTTPSCertFile, cfg.HTTPSKeyFile)
		if err != nil {
			_ = lis.Close()
			return err
		}
		creds = c
	}

	srv := grpcx.NewServer(logger, visitors, creds)
	healthpb.RegisterHealthServer(srv, reporter.Server())
	reflection.Register(srv)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
		if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	logger.Info("ctx cancelled, stopping gRPC server…")

	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()

	select {
	case <-time.After(shutdownTimeout):
		srv.Stop()
	case <-done:
	}
	logger.Info("gRPC server stopped")
	return nil
}
