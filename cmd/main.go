package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/agrosentry/backend/internal/db"
	"github.com/agrosentry/backend/internal/handlers"
	"github.com/agrosentry/backend/internal/knowledge"
	"github.com/agrosentry/backend/internal/logger"
	"github.com/agrosentry/backend/internal/middleware"
	"github.com/agrosentry/backend/internal/repos"
	"github.com/agrosentry/backend/internal/server"
	"github.com/agrosentry/backend/internal/services"
	"github.com/agrosentry/backend/internal/utils"
)

func main() {
	_ = godotenv.Load()

	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	refreshTokenTTL := utils.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)

	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	log.Info("Setting up repos...")
	userRepo := repos.NewUserRepo(thePG, log)
	userTokenRepo := repos.NewUserTokenRepo(thePG, log)
	detectionRepo := repos.NewDetectionRepo(thePG, log)

	log.Info("Setting up services...")
	uploadService, err := services.NewUploadService(log)
	if err != nil {
		log.Error("Could not init UploadService", "error", err)
		os.Exit(1)
	}
	mlClient, err := services.NewMLClientFromEnv(log)
	if err != nil {
		log.Error("Could not init MLClient", "error", err)
		os.Exit(1)
	}
	knowledgeBase := knowledge.NewStaticBase()
	authService := services.NewAuthService(thePG, log, userRepo, userTokenRepo, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second, time.Duration(refreshTokenTTL)*time.Second)
	userService := services.NewUserService(thePG, log, userRepo)
	detectionService := services.NewDetectionService(thePG, log, detectionRepo, uploadService, mlClient, knowledgeBase)

	log.Info("Setting up handlers...")
	authHandler := handlers.NewAuthHandler(authService, userService)
	detectionHandler := handlers.NewDetectionHandler(log, detectionService)

	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	router := server.NewRouter(server.RouterConfig{
		AuthHandler:      authHandler,
		DetectionHandler: detectionHandler,
		AuthMiddleware:   authMiddleware,
		UploadDir:        uploadService.Dir(),
	})

	port := utils.GetEnv("PORT", "3000", log)
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
