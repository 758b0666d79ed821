package routes

import (
	"time"

	"stockwatch_backend/controllers"
	"stockwatch_backend/middleware"
	"stockwatch_backend/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, db *gorm.DB, jwtSecret string, hub *services.Hub, catalog *services.CatalogService, currency *services.CurrencyService) {
	loginLimiter := middleware.NewLoginRateLimiter(5, 15*time.Minute, 30*time.Minute)

	// Initialize controllers
	authController := controllers.NewAuthController(db, jwtSecret, loginLimiter)
	stockController := controllers.NewStockController(db, catalog)
	subscriptionController := controllers.NewSubscriptionController(db)
	statusController := controllers.NewStatusController(hub, currency)

	// API v1 group
	api := router.Group("/api/v1")
	{
		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/register", authController.Register)
			auth.POST("/login", middleware.LoginRateLimitMiddleware(loginLimiter), authController.Login)
		}

		// Authenticated routes
		authorized := api.Group("")
		authorized.Use(middleware.JWTAuthMiddleware(jwtSecret))
		{
			stocks := authorized.Group("/stocks")
			{
				stocks.GET("", stockController.GetStocks)
				stocks.GET("/search", stockController.SearchStocks)
				stocks.GET("/:symbol", stockController.GetStock)
			}

			subscriptions := authorized.Group("/subscriptions")
			{
				subscriptions.GET("", subscriptionController.GetSubscriptions)
				subscriptions.POST("", subscriptionController.Subscribe)
				subscriptions.DELETE("/:ticker", subscriptionController.Unsubscribe)
			}

			authorized.GET("/status", statusController.GetStatus)
		}
	}

	// WebSocket endpoint; token arrives as a query parameter
	router.GET("/ws", middleware.JWTAuthMiddleware(jwtSecret), func(c *gin.Context) {
		userID, ok := middleware.CurrentUserID(c)
		if !ok {
			return
		}
		hub.HandleWebSocket(c.Writer, c.Request, userID)
	})
}
