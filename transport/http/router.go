package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lumenpay/lumenvault/ports"
	"github.com/lumenpay/lumenvault/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Options configures the router
type Options struct {
	// Network enables the wallet relay routes when set
	Network ports.Network

	// CleanupToken, when set, must be sent as X-Cleanup-Token to /auth/cleanup
	CleanupToken string

	// AuthRate and AuthBurst limit /auth requests per client IP. Zero disables limiting.
	AuthRate  rate.Limit
	AuthBurst int

	// TrustedProxies lists the proxy IPs or CIDRs whose X-Forwarded-For is
	// believed. Empty trusts none and keys clients by their socket address.
	TrustedProxies []string

	// Registry receives the server metrics and backs /metrics. Nil uses a fresh registry.
	Registry *prometheus.Registry
}

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, opts Options) (*gin.Engine, error) {
	registerValidators()

	registry := opts.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	metrics := NewMetrics(registry)

	router := gin.New()
	if err := router.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	router.Use(gin.Recovery(), RequestLogger(), metrics.Middleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Create handlers
	handlers := NewAuthHandlers(authService, metrics, opts.CleanupToken)

	// Auth routes
	auth := router.Group("/auth")
	if opts.AuthRate > 0 {
		auth.Use(RateLimitMiddleware(NewRateLimiter(opts.AuthRate, opts.AuthBurst)))
	}
	{
		auth.GET("/nonce", handlers.Nonce)
		auth.POST("/verify", handlers.Verify)
		auth.GET("/cleanup", handlers.Cleanup)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(authService))
	{
		api.GET("/session", handlers.Session)

		if opts.Network != nil {
			wallet := NewWalletHandlers(opts.Network, metrics)
			api.GET("/wallet/balance", wallet.Balance)
			api.POST("/wallet/tx/build", wallet.BuildTransaction)
			api.POST("/wallet/tx/submit", wallet.SubmitTransaction)
		}
	}

	return router, nil
}
