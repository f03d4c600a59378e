package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"authn-service/internal/adapter/gin/handler"
	"authn-service/internal/adapter/gin/middleware"
	"authn-service/internal/adapter/ratelimit"
)

// DefaultMaxBodyBytes bounds request bodies when Config.MaxBodyBytes is unset.
const DefaultMaxBodyBytes int64 = 64 << 10

// Config holds router options.
type Config struct {
	RequestTimeout time.Duration
	// TrustedProxies lists proxy IPs or CIDRs whose forwarding headers are
	// believed. Empty means the client IP is always the connection's peer.
	TrustedProxies []string
	MaxBodyBytes   int64
}

// SetupRouter configures and returns a Gin router with all routes and middleware
func SetupRouter(
	authHandler *handler.AuthHandler,
	limiter ratelimit.Limiter,
	cfg Config,
	log *zap.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Rate limit keys use ClientIP, so forwarding headers are only honoured
	// from configured proxies.
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Error("invalid trusted proxies, trusting none", zap.Strings("trusted_proxies", cfg.TrustedProxies), zap.Error(err))
		_ = router.SetTrustedProxies(nil)
	}

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	// Global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "authn-service",
		})
	})

	// Credential routes are rate limited before any decoding or hashing.
	authRoutes := router.Group("")
	authRoutes.Use(middleware.RateLimiter(limiter, log))
	authRoutes.Use(middleware.BodyLimit(maxBody))
	authRoutes.Use(middleware.Timeout(cfg.RequestTimeout))
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
	}

	return router
}
