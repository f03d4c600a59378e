package middleware

import (
	"context"
	"fmt"
	"math"
	"net"
	"strconv"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"

	"authn-service/internal/adapter/ratelimit"
	apperrors "authn-service/pkg/errors"
	"authn-service/pkg/logger"
)

// RetryAfterTrailer carries the number of seconds a rate-limited caller
// should wait.
const RetryAfterTrailer = "retry-after"

// RateLimiter admits gRPC calls against a shared Limiter.
type RateLimiter struct {
	limiter ratelimit.Limiter
	log     *zap.Logger
}

// NewRateLimiter creates a new rate limiter interceptor.
func NewRateLimiter(limiter ratelimit.Limiter, log *zap.Logger) *RateLimiter {
	return &RateLimiter{
		limiter: limiter,
		log:     log,
	}
}

// UnaryInterceptor returns a gRPC unary interceptor for rate limiting.
// Calls are keyed by full method and the peer's IP.
func (rl *RateLimiter) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if rl.limiter == nil {
			return handler(ctx, req)
		}

		clientIP := clientIP(ctx)
		key := fmt.Sprintf("%s:%s", info.FullMethod, clientIP)

		d := rl.limiter.Admit(ctx, key)
		if !d.Allowed {
			logger.WithContext(ctx, rl.log).Warn("rate limit exceeded",
				zap.String("client_ip", clientIP),
				zap.String("method", info.FullMethod),
				zap.Duration("retry_after", d.RetryAfter),
			)
			rateErr := apperrors.NewRateLimitedError(d.RetryAfter)
			SetRetryAfter(ctx, rateErr)
			return nil, rateErr.GRPCStatus().Err()
		}

		return handler(ctx, req)
	}
}

// clientIP extracts the caller's IP from the peer address, without the port.
func clientIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return "unknown"
	}

	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// SetRetryAfter attaches the retry-after trailer to the call.
func SetRetryAfter(ctx context.Context, err *apperrors.RateLimitedError) {
	seconds := int(math.Ceil(err.RetryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	_ = grpc.SetTrailer(ctx, metadata.Pairs(RetryAfterTrailer, strconv.Itoa(seconds)))
}
