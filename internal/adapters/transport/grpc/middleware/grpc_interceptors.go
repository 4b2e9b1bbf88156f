package middleware

import (
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/transport/ratelimit"
	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpc_zap "github.com/grpc-ecosystem/go-grpc-middleware/logging/zap"
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func RecoveryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return grpc_recovery.UnaryServerInterceptor(
		grpc_recovery.WithRecoveryHandler(func(p any) error {
			logger.Error("panic in gRPC handler", zap.Any("panic", p))
			return status.Error(codes.Internal, "internal error")
		}),
	)
}

func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return grpc_zap.UnaryServerInterceptor(logger)
}

func MetricsInterceptor() grpc.UnaryServerInterceptor {
	return grpc_prometheus.UnaryServerInterceptor
}

// ChainUnaryServer: recovery снаружи, чтобы паника в любом слое превращалась в codes.Internal.
func ChainUnaryServer(logger *zap.Logger, visitors *ratelimit.Visitors) grpc.UnaryServerInterceptor {
	return grpc_middleware.ChainUnaryServer(
		RecoveryInterceptor(logger),
		LoggingInterceptor(logger),
		MetricsInterceptor(),
		NewRateLimitPerIP(visitors),
	)
}
