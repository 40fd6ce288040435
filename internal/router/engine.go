package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/topup-storefront/internal/storefront"
	"julianmorley.ca/con-plar/topup-storefront/pkg/global"
)

var (
	Router *gin.Engine

	shop   *storefront.App
	logger *zap.Logger
)

func InitEngine(cfg global.Config, log *zap.Logger) {
	switch cfg.Env {
	case "production":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}
	logger = log

	Router = gin.New()
	Router.Use(gin.Recovery(), RequestID(), RequestLogger(log))
	Router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}

func InitializeRoutes(app *storefront.App) {
	shop = app

	api := Router.Group("/api")
	{
		api.GET("/health", HealthCheck)
		api.GET("/state", GetState)
		api.PUT("/view", SetView)
		api.DELETE("/notice", DismissNotice)
		api.GET("/config", GetStoreConfig)
		api.PUT("/currency", SetCurrency)
		api.POST("/refresh", RefreshCatalog)
		api.GET("/events", StreamEvents)

		api.GET("/catalog", GetCatalog)

		products := api.Group("/products")
		{
			products.GET("/:id", GetProduct)
			products.POST("/:id/select", SelectPackage)
		}

		cart := api.Group("/cart")
		{
			cart.GET("", GetCart)
			cart.DELETE("", ClearCart)
			cart.POST("/lines", AddCartLine)
			cart.PATCH("/lines/:id", ChangeLineQuantity)
			cart.DELETE("/lines/:id", RemoveCartLine)
		}

		checkout := api.Group("/checkout")
		{
			checkout.GET("", GetCheckout)
			checkout.POST("/begin", BeginCheckout)
			checkout.POST("", SubmitCheckout)
		}

		api.GET("/session", GetSession)
		api.POST("/login", Login)
		api.POST("/register", Register)
		api.POST("/logout", Logout)
		api.GET("/account/history", GetAccount)

		admin := api.Group("/admin")
		{
			admin.GET("/attempts", GetAttemptSummary)
			admin.GET("/attempts/report", GetAttemptReport)
			admin.GET("/attempts/recent", GetRecentAttempts)
		}
	}
}
