package server

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	ginhandler "authn-service/internal/adapter/gin/handler"
	ginrouter "authn-service/internal/adapter/gin/router"
	"authn-service/internal/adapter/ratelimit"
)

// SetupGinServer creates and configures the Gin REST API server
func SetupGinServer(
	handler *ginhandler.AuthHandler,
	limiter ratelimit.Limiter,
	routerCfg ginrouter.Config,
	ginAddr string,
	l *zap.Logger,
) *http.Server {
	// Setup Gin router with all middleware and routes
	router := ginrouter.SetupRouter(handler, limiter, routerCfg, l)

	l.Info("Gin REST API configured",
		zap.String("address", ginAddr),
		zap.Strings("trusted_proxies", routerCfg.TrustedProxies),
	)

	return &http.Server{
		Addr:              ginAddr,
		Handler:           router,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      routerCfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
}
