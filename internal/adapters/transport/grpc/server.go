package grpc

import (
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/transport/grpc/middleware"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/transport/ratelimit"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// NewServer собирает gRPC-сервер с цепочкой interceptor-ов; creds == nil означает plaintext.
func NewServer(logger *zap.Logger, visitors *ratelimit.Visitors, creds credentials.TransportCredentials) *grpc.Server {
	opts := []grpc.ServerOption{
		grpc.UnaryInterceptor(middleware.ChainUnaryServer(logger, visitors)),
	}
	if creds != nil {
		opts = append(opts, grpc.Creds(creds))
	}

	srv := grpc.NewServer(opts...)
	grpc_prometheus.Register(srv)
	return srv
}
