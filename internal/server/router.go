package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/agrosentry/backend/internal/handlers"
	"github.com/agrosentry/backend/internal/middleware"
)

type RouterConfig struct {
	AuthHandler      *handlers.AuthHandler
	DetectionHandler *handlers.DetectionHandler
	AuthMiddleware   *middleware.AuthMiddleware
	UploadDir        string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.MaxMultipartMemory = 10 << 20

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:3000",
			"http://localhost:3001",
			"http://localhost:5173",
			"http://localhost:8080",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)
	router.Static("/uploads", cfg.UploadDir)

	api := router.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", cfg.AuthHandler.Register)
		auth.POST("/login", cfg.AuthHandler.Login)
	}

	authProtected := api.Group("/auth")
	authProtected.Use(cfg.AuthMiddleware.RequireAuth())
	{
		authProtected.POST("/refresh", cfg.AuthHandler.Refresh)
		authProtected.POST("/logout", cfg.AuthHandler.Logout)
		authProtected.GET("/profile", cfg.AuthHandler.Profile)
	}

	detection := api.Group("/detection")
	detection.Use(cfg.AuthMiddleware.RequireAuth())
	{
		detection.GET("/ml-health", cfg.DetectionHandler.MLHealth)
		detection.POST("/detect", cfg.DetectionHandler.Detect)
		detection.GET("/history", cfg.DetectionHandler.History)
		detection.GET("/stats", cfg.DetectionHandler.Stats)
		// Registered last so the fixed routes above win.
		detection.GET("/:id", cfg.DetectionHandler.GetByID)
	}

	return router
}
