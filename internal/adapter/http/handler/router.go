package handler

import (
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc      ports.WalletService
	TokenSvc       ports.TokenService
	RateLimitStore middleware.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep: verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes, all JWT-authenticated
	v1 := r.Group("/api/v1", middleware.JWTAuth(deps.TokenSvc, deps.Logger))

	walletHandler := NewWalletHandler(deps.WalletSvc)
	wallets := v1.Group("/wallets")
	{
		wallets.POST("", rl("wallet_create"), walletHandler.Create)
		wallets.GET("", rl("wallet_reads"), walletHandler.List)
		wallets.GET("/:id", rl("wallet_reads"), walletHandler.Get)
		wallets.DELETE("/:id", rl("wallet_mutations"), walletHandler.Delete)
		wallets.POST("/:id/fund", rl("wallet_mutations"), walletHandler.Fund)
		wallets.POST("/:id/withdraw", rl("wallet_mutations"), walletHandler.Withdraw)
		wallets.GET("/:id/transactions", rl("wallet_reads"), walletHandler.ListTransactions)
		wallets.GET("/:id/summary", rl("wallet_reads"), walletHandler.Summary)
	}

	transferHandler := NewTransferHandler(deps.WalletSvc)
	v1.POST("/transfers", rl("transfers"), transferHandler.Create)

	return r
}
