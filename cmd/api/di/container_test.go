package di

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"authn-service/internal/adapter/ratelimit"
	"authn-service/internal/config"
	"authn-service/internal/usecase/auth"
	"authn-service/pkg/idgen"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		DB: config.DatabaseConfig{
			Driver:       config.DriverSQLite,
			SQLitePath:   filepath.Join(t.TempDir(), "authn.db"),
			MaxIdleConns: 1,
			AutoMigrate:  true,
		},
		App: config.AppConfig{
			GRPCPort:               "0",
			HTTPPort:               "0",
			ShutdownTimeoutSeconds: 5,
			RequestTimeoutSeconds:  5,
		},
		Logger: config.LoggerConfig{Level: "warn", SlowQuerySeconds: 1},
		RateLimit: config.RateLimitConfig{
			Enabled:              true,
			Backend:              config.RateLimitBackendMemory,
			Requests:             60,
			WindowSeconds:        60,
			MaxClients:           100,
			SweepIntervalSeconds: 30,
			LoginAttemptsPerUser: 5,
		},
		Hash: config.HashConfig{MemoryKiB: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32},
		ID:   config.IDConfig{Format: idgen.FormatUUID},
	}
}

func TestNewContainer_MemoryBackend(t *testing.T) {
	c, err := NewContainer(context.Background(), testConfig(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.Nil(t, c.RedisClient)
	assert.IsType(t, &ratelimit.MemoryLimiter{}, c.RateLimiter)
	assert.Len(t, c.sweepers, 2)

	ctx := context.Background()
	resp, err := c.AuthUC.Register(ctx, auth.RegisterRequest{Name: "John Doe", Email: "john@example.com", Password: "securepassword123"})
	require.NoError(t, err)

	login, err := c.AuthUC.Login(ctx, auth.LoginRequest{Email: "john@example.com", Password: "securepassword123"})
	require.NoError(t, err)
	assert.Equal(t, resp.ID, login.ID)
}

func TestNewContainer_RedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, err := net.SplitHostPort(mr.Addr())
	require.NoError(t, err)

	cfg := testConfig(t)
	cfg.RateLimit.Backend = config.RateLimitBackendRedis
	cfg.Redis = config.RedisConfig{Host: host, Port: port, PoolSize: 2}

	c, err := NewContainer(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NotNil(t, c.RedisClient)
	assert.IsType(t, &ratelimit.RedisLimiter{}, c.RateLimiter)
	assert.Empty(t, c.sweepers)
}

func TestNewContainer_Disabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit.Enabled = false

	c, err := NewContainer(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.Equal(t, ratelimit.Noop{}, c.RateLimiter)
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.ID.Format = "snowflake"

	_, err := NewContainer(context.Background(), cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}
