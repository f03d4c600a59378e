package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"authn-service/pkg/logger"
)

// AccessLog logs one line per call with its status code and latency.
func AccessLog(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("latency", time.Since(start)),
		}

		l := logger.WithContext(ctx, log)
		switch code {
		case codes.OK:
			l.Info("grpc request", fields...)
		case codes.Internal, codes.Unknown, codes.DataLoss:
			l.Error("grpc request", fields...)
		default:
			l.Warn("grpc request", fields...)
		}
		return resp, err
	}
}

// Recovery converts a handler panic into codes.Internal.
func Recovery(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.WithContext(ctx, log).Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("method", info.FullMethod),
					zap.Stack("stack"),
				)
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}
