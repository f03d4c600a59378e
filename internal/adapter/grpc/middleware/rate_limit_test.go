package middleware

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"authn-service/internal/adapter/ratelimit"
)

// setupTestRedis creates a miniredis instance for testing
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client, mr
}

// mockHandler is a simple handler that returns "success"
func mockHandler(ctx context.Context, req any) (any, error) {
	return "success", nil
}

func peerContext(t *testing.T, addr string) context.Context {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	require.NoError(t, err)
	return peer.NewContext(context.Background(), &peer.Peer{Addr: tcpAddr})
}

func newRedisInterceptor(t *testing.T, limit int) (grpc.UnaryServerInterceptor, *miniredis.Miniredis) {
	client, mr := setupTestRedis(t)
	log := zaptest.NewLogger(t)
	limiter := ratelimit.NewRedisLimiter(client, ratelimit.RedisConfig{Limit: limit, Window: time.Minute}, log)
	return NewRateLimiter(limiter, log).UnaryInterceptor(), mr
}

var loginInfo = &grpc.UnaryServerInfo{FullMethod: "/authn.v1.AuthService/Login"}

func TestRateLimiter_WithinLimit(t *testing.T) {
	interceptor, _ := newRedisInterceptor(t, 10)
	ctx := peerContext(t, "127.0.0.1:12345")

	for i := 0; i < 5; i++ {
		resp, err := interceptor(ctx, nil, loginInfo, mockHandler)
		require.NoError(t, err)
		assert.Equal(t, "success", resp)
	}
}

func TestRateLimiter_ExceedLimit(t *testing.T) {
	interceptor, _ := newRedisInterceptor(t, 3)
	ctx := peerContext(t, "127.0.0.1:12345")

	for i := 0; i < 3; i++ {
		_, err := interceptor(ctx, nil, loginInfo, mockHandler)
		require.NoError(t, err)
	}

	resp, err := interceptor(ctx, nil, loginInfo, mockHandler)
	assert.Nil(t, resp)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestRateLimiter_Disabled(t *testing.T) {
	interceptor := NewRateLimiter(nil, zaptest.NewLogger(t)).UnaryInterceptor()
	ctx := peerContext(t, "127.0.0.1:12345")

	for i := 0; i < 100; i++ {
		_, err := interceptor(ctx, nil, loginInfo, mockHandler)
		require.NoError(t, err)
	}
}

func TestRateLimiter_DifferentIPs(t *testing.T) {
	interceptor, _ := newRedisInterceptor(t, 1)

	_, err := interceptor(peerContext(t, "10.0.0.1:1000"), nil, loginInfo, mockHandler)
	require.NoError(t, err)
	_, err = interceptor(peerContext(t, "10.0.0.2:1000"), nil, loginInfo, mockHandler)
	require.NoError(t, err)

	_, err = interceptor(peerContext(t, "10.0.0.1:1000"), nil, loginInfo, mockHandler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestRateLimiter_PortIgnored(t *testing.T) {
	interceptor, _ := newRedisInterceptor(t, 1)

	_, err := interceptor(peerContext(t, "10.0.0.1:1000"), nil, loginInfo, mockHandler)
	require.NoError(t, err)

	// A new connection from the same host shares the budget.
	_, err = interceptor(peerContext(t, "10.0.0.1:2000"), nil, loginInfo, mockHandler)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestRateLimiter_DifferentMethods(t *testing.T) {
	interceptor, _ := newRedisInterceptor(t, 1)
	ctx := peerContext(t, "127.0.0.1:12345")

	_, err := interceptor(ctx, nil, loginInfo, mockHandler)
	require.NoError(t, err)

	registerInfo := &grpc.UnaryServerInfo{FullMethod: "/authn.v1.AuthService/Register"}
	_, err = interceptor(ctx, nil, registerInfo, mockHandler)
	require.NoError(t, err)
}

func TestRateLimiter_WindowExpiry(t *testing.T) {
	interceptor, mr := newRedisInterceptor(t, 1)
	ctx := peerContext(t, "127.0.0.1:12345")

	_, err := interceptor(ctx, nil, loginInfo, mockHandler)
	require.NoError(t, err)
	_, err = interceptor(ctx, nil, loginInfo, mockHandler)
	require.Error(t, err)

	mr.FastForward(time.Minute)

	_, err = interceptor(ctx, nil, loginInfo, mockHandler)
	require.NoError(t, err)
}

func TestRecoveryInterceptor(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	interceptor := Recovery(zap.New(core))

	_, err := interceptor(context.Background(), nil, loginInfo, func(context.Context, any) (any, error) {
		panic("boom")
	})

	assert.Equal(t, codes.Internal, status.Code(err))
	assert.NotContains(t, err.Error(), "boom")
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestAccessLog(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	interceptor := AccessLog(zap.New(core))

	_, _ = interceptor(context.Background(), nil, loginInfo, mockHandler)
	_, _ = interceptor(context.Background(), nil, loginInfo, func(context.Context, any) (any, error) {
		return nil, status.Error(codes.Unauthenticated, "invalid email or password")
	})
	_, _ = interceptor(context.Background(), nil, loginInfo, func(context.Context, any) (any, error) {
		return nil, status.Error(codes.Internal, "internal server error")
	})

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, zap.ErrorLevel, entries[2].Level)
}
