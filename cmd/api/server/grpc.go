package server

import (
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	grpcadapter "authn-service/internal/adapter/grpc"
	"authn-service/internal/adapter/grpc/middleware"
	"authn-service/internal/adapter/ratelimit"
	"authn-service/pkg/logger"
)

// SetupGRPC creates and configures the gRPC server with the auth and
// health services registered.
func SetupGRPC(authServer *grpcadapter.AuthServer, limiter ratelimit.Limiter, l *zap.Logger) (*grpc.Server, *health.Server) {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logger.RequestIDInterceptor(),
			middleware.Recovery(l),
			middleware.AccessLog(l),
			middleware.NewRateLimiter(limiter, l).UnaryInterceptor(),
		),
		grpc.MaxRecvMsgSize(64<<10),
	)
	grpcadapter.RegisterAuthServiceServer(grpcServer, authServer)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(grpcadapter.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	return grpcServer, healthServer
}
