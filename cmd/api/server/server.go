package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"authn-service/cmd/api/di"
	ginrouter "authn-service/internal/adapter/gin/router"
	"authn-service/internal/config"
)

// Server struct holds all server dependencies
type Server struct {
	Config *config.Config
	Logger *zap.Logger
	GRPC   *grpc.Server
	Health *health.Server
	Gin    *http.Server
}

// New creates a new server instance
func New(cfg *config.Config, l *zap.Logger, c *di.Container) *Server {
	grpcServer, healthServer := SetupGRPC(c.GRPCServer, c.RateLimiter, l)

	return &Server{
		Config: cfg,
		Logger: l,
		GRPC:   grpcServer,
		Health: healthServer,
		Gin: SetupGinServer(
			c.GinHandler,
			c.RateLimiter,
			ginrouter.Config{
				RequestTimeout: time.Duration(cfg.App.RequestTimeoutSeconds) * time.Second,
				TrustedProxies: cfg.App.TrustedProxies,
				MaxBodyBytes:   cfg.App.MaxBodyBytes,
			},
			httpAddress(cfg),
			l,
		),
	}
}

// Start binds both listeners and serves until both servers are stopped by
// Shutdown. If either server fails, the other is stopped immediately and
// the failure is returned.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}

	grpcLis, err := lc.Listen(ctx, "tcp", grpcAddress(s.Config))
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC address: %w", err)
	}

	httpLis, err := lc.Listen(ctx, "tcp", httpAddress(s.Config))
	if err != nil {
		_ = grpcLis.Close()
		return fmt.Errorf("failed to listen on HTTP address: %w", err)
	}

	return s.serve(ctx, grpcLis, httpLis)
}

func (s *Server) serve(ctx context.Context, grpcLis, httpLis net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.Logger.Info("gRPC server running", zap.String("address", grpcLis.Addr().String()))
		if err := s.GRPC.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.Logger.Info("Gin server running", zap.String("address", httpLis.Addr().String()))
		if err := s.Gin.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("gin server: %w", err)
		}
		return nil
	})

	// gctx also ends when the caller cancels ctx or when Wait returns after a
	// clean Shutdown. Those are drained elsewhere, so only a server failure
	// stops the peer here.
	go func() {
		<-gctx.Done()
		cause := context.Cause(gctx)
		if ctx.Err() != nil || errors.Is(cause, context.Canceled) {
			return
		}
		s.Logger.Error("server failed, stopping remaining servers", zap.Error(cause))
		s.Health.Shutdown()
		_ = s.Gin.Close()
		s.GRPC.Stop()
	}()

	return g.Wait()
}

// Shutdown stops accepting work and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Health.Shutdown()

	var errs []error
	if err := s.Gin.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("gin shutdown: %w", err))
	}

	stopped := make(chan struct{})
	go func() {
		s.GRPC.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		s.GRPC.Stop()
		errs = append(errs, fmt.Errorf("gRPC graceful stop: %w", ctx.Err()))
	}

	return errors.Join(errs...)
}

// grpcAddress returns the gRPC server address
func grpcAddress(cfg *config.Config) string {
	return ":" + cfg.App.GRPCPort
}

// httpAddress returns the HTTP server address
func httpAddress(cfg *config.Config) string {
	return ":" + cfg.App.HTTPPort
}
