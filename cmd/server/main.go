package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/aditpra/smartcare-server/internal/api"
	"github.com/aditpra/smartcare-server/internal/config"
	"github.com/aditpra/smartcare-server/internal/notify"
	"github.com/aditpra/smartcare-server/internal/repository"
	"github.com/aditpra/smartcare-server/internal/service"
	"github.com/aditpra/smartcare-server/internal/utils"
)

func main() {
	logger := utils.NewLogger()

	if err := godotenv.Load(); err != nil {
		logger.Info(".env file not found, using system environment variables")
	}

	// Load configuration
	cfg := config.LoadConfig()

	// Select storage backend
	var repo repository.Repository
	switch cfg.Storage {
	case config.StorageMemory:
		logger.Info("Using in-memory storage")
		repo = repository.NewMemoryRepository()
	default:
		db, err := config.SetupDatabase(cfg)
		if err != nil {
			logger.Fatal("Failed to set up database: %v", err)
		}
		defer db.Close()
		repo = repository.NewPostgresRepository(db)
	}

	// Event fan-out hub, with an optional Redis bridge for
	// multi-instance deployments
	hub := notify.NewHub()
	if cfg.Redis.Addr != "" {
		bridge, err := notify.NewRedisBridge(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, hub, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis: %v", err)
		}
		defer bridge.Close()

		hub.SetBridge(bridge)
		go bridge.Run(context.Background())
		logger.Info("Event bridge connected to Redis at %s", cfg.Redis.Addr)
	}

	// Create service
	svc := service.NewDefaultService(repo, hub, cfg.Auth.JWTSecret)

	// Create API handler
	handler := api.NewHandler(svc)

	// Set up Gin router
	router := gin.Default()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(cfg.Auth.JWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Starting server on %s", serverAddr)
	if err := http.ListenAndServe(serverAddr, router); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}
