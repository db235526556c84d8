// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/config"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/domain/cart"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/domain/diagnostics"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/interfaces/http/handlers"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/interfaces/http/middleware"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/pkg/auth"
	"github.com/varalakshmimaha/Mahafashion-sub000/internal/pkg/metrics"
)

// Dependencies carries what the API routes need
type Dependencies struct {
	Config      *config.Config
	Registry    *cart.Registry
	Diagnostics *diagnostics.Service
	Metrics     *metrics.Metrics
	RedisClient *redis.Client
	Logger      logrus.FieldLogger
}

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.RouterGroup, deps Dependencies) {
	jwtManager := auth.NewJWTManager(deps.Config)

	cartHandler := handlers.NewCartHandler(deps.Registry, deps.Metrics, deps.Logger)
	diagnosticsHandler := handlers.NewDiagnosticsHandler(deps.Diagnostics)

	// Cart routes, anonymous or authenticated
	cartGroup := router.Group("/cart")
	cartGroup.Use(middleware.Session(deps.Config))
	cartGroup.Use(middleware.OptionalAuthMiddleware(jwtManager))
	if deps.RedisClient != nil {
		cartGroup.Use(middleware.RateLimit(deps.Config.Security.RateLimitPerMinute, deps.RedisClient, deps.Logger))
	}
	{
		cartGroup.GET("", cartHandler.GetCart)
		cartGroup.GET("/count", cartHandler.GetCartCount)
		cartGroup.GET("/totals", cartHandler.GetCartTotals)
		cartGroup.POST("/reload", cartHandler.ReloadCart)
		cartGroup.POST("/items", cartHandler.AddToCart)
		cartGroup.PUT("/items/:id", cartHandler.UpdateCartItem)
		cartGroup.DELETE("/items/:id", cartHandler.RemoveFromCart)
		cartGroup.DELETE("", cartHandler.ClearCart)
		cartGroup.DELETE("/session", cartHandler.EndSession)
	}

	// Admin routes
	admin := router.Group("/admin")
	admin.Use(middleware.AuthMiddleware(jwtManager))
	admin.Use(middleware.AdminMiddleware())
	{
		admin.GET("/cart-divergence", diagnosticsHandler.ListDivergence)
		admin.GET("/cart-divergence/summary", diagnosticsHandler.DivergenceSummary)
	}
}
