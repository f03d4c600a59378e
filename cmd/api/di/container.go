package di

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"authn-service/cmd/api/infrastructure"
	"authn-service/internal/adapter/db/postgres"
	ginhandler "authn-service/internal/adapter/gin/handler"
	grpcadapter "authn-service/internal/adapter/grpc"
	"authn-service/internal/adapter/ratelimit"
	"authn-service/internal/adapter/repository/coalesced"
	"authn-service/internal/config"
	"authn-service/internal/usecase/auth"
	"authn-service/pkg/idgen"
	redisclient "authn-service/pkg/redis"
	"authn-service/pkg/security"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	DB          *gorm.DB
	RedisClient *redisclient.Client // nil unless the redis rate limit backend is used
	AuthUC      *auth.Usecase
	RateLimiter ratelimit.Limiter
	GinHandler  *ginhandler.AuthHandler
	GRPCServer  *grpcadapter.AuthServer

	sweepers []*ratelimit.MemoryLimiter
}

// NewContainer creates and initializes all application dependencies
func NewContainer(ctx context.Context, cfg *config.Config, l *zap.Logger) (*Container, error) {
	// Validate configuration before initializing any dependencies
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// Entropy and hashing problems are startup failures, not per-request ones.
	ids, err := idgen.New(cfg.ID.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize id generator: %w", err)
	}

	hasher, err := security.NewArgon2Hasher(cfg.Hash.Params(), l)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize password hasher: %w", err)
	}

	c := &Container{
		Config: cfg,
		Logger: l,
	}

	// Initialize database
	c.DB, err = infrastructure.NewDatabase(ctx, cfg, l)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize Redis client only for the shared rate limit store
	if cfg.RateLimit.Enabled && cfg.RateLimit.Backend == config.RateLimitBackendRedis {
		c.RedisClient, err = infrastructure.NewRedisClient(ctx, cfg, l)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("failed to initialize Redis: %w", err)
		}
	}

	// Initialize rate limiters
	var loginLimiter ratelimit.Limiter
	c.RateLimiter, loginLimiter = c.newLimiters()

	// Initialize repository
	dbRepo := postgres.NewUserRepoPG(c.DB, l)
	repo := coalesced.NewUserRepository(dbRepo, l)

	// Initialize use case
	c.AuthUC = auth.New(repo, hasher, ids, l, auth.WithLoginLimiter(loginLimiter))

	// Initialize transports
	c.GinHandler = ginhandler.NewAuthHandler(c.AuthUC, l)
	c.GRPCServer = grpcadapter.NewAuthServer(c.AuthUC, l)

	l.Info("container initialized",
		zap.String("id_format", ids.Format()),
		zap.Bool("rate_limit_enabled", cfg.RateLimit.Enabled),
		zap.String("rate_limit_backend", cfg.RateLimit.Backend),
	)

	return c, nil
}

// newLimiters builds the per-client request limiter and the per-account
// login limiter for the configured backend.
func (c *Container) newLimiters() (request, login ratelimit.Limiter) {
	rl := c.Config.RateLimit
	if !rl.Enabled {
		return ratelimit.Noop{}, ratelimit.Noop{}
	}

	switch rl.Backend {
	case config.RateLimitBackendRedis:
		request = ratelimit.NewRedisLimiter(c.RedisClient.Client, ratelimit.RedisConfig{
			Limit:  rl.Requests,
			Window: rl.Window(),
		}, c.Logger)
		login = ratelimit.Noop{}
		if rl.LoginAttemptsPerUser > 0 {
			login = ratelimit.NewRedisLimiter(c.RedisClient.Client, ratelimit.RedisConfig{
				Limit:  rl.LoginAttemptsPerUser,
				Window: rl.Window(),
			}, c.Logger)
		}
		return request, login

	default:
		requestMem := ratelimit.NewMemoryLimiter(ratelimit.MemoryConfig{
			Limit:   rl.Requests,
			Window:  rl.Window(),
			MaxKeys: rl.MaxClients,
		}, c.Logger)
		c.sweepers = append(c.sweepers, requestMem)

		login = ratelimit.Noop{}
		if rl.LoginAttemptsPerUser > 0 {
			loginMem := ratelimit.NewMemoryLimiter(ratelimit.MemoryConfig{
				Limit:   rl.LoginAttemptsPerUser,
				Window:  rl.Window(),
				MaxKeys: rl.MaxClients,
			}, c.Logger)
			c.sweepers = append(c.sweepers, loginMem)
			login = loginMem
		}
		return requestMem, login
	}
}

// RunBackground starts the in-memory limiter sweeps. They stop with ctx.
func (c *Container) RunBackground(ctx context.Context) {
	for _, s := range c.sweepers {
		go s.Run(ctx, c.Config.RateLimit.SweepInterval())
	}
}

// Close closes all resources held by the container
func (c *Container) Close() error {
	var errs []error

	// Close Redis connection
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	// Close database connection
	if c.DB != nil {
		if err := infrastructure.CloseDatabase(c.DB); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("container close errors: %v", errs)
	}

	return nil
}
