package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trayyy/trayyy/backend-go/internal/api"
	"github.com/trayyy/trayyy/backend-go/internal/config"
	"github.com/trayyy/trayyy/backend-go/internal/database"
	"github.com/trayyy/trayyy/backend-go/internal/database/repository"
	"github.com/trayyy/trayyy/backend-go/internal/database/service"
	"github.com/trayyy/trayyy/backend-go/internal/engine"
	"github.com/trayyy/trayyy/backend-go/internal/handler"
	"github.com/trayyy/trayyy/backend-go/internal/logger"
	"github.com/trayyy/trayyy/backend-go/internal/middleware"
	"github.com/trayyy/trayyy/backend-go/internal/worker"
)

func main() {
	// 1. Config
	cfg := config.LoadConfig()

	// 2. Logger
	appLogger := logger.New(cfg)

	appLogger.Info("🚀 [Go] Starting Trayyy API...",
		"environment", cfg.AppEnv,
	)

	// 3. Connect to Database
	if err := database.ConnectDatabase(cfg, appLogger); err != nil {
		appLogger.Error("❌ Failed to connect to database", "error", err)
		os.Exit(1)
	}

	db := database.GetDatabase()

	// 4. Initialize Repositories
	userRepo := repository.NewUserRepository(db)
	refreshTokenRepo := repository.NewRefreshTokenRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	usageRepo := repository.NewUsageRepository(db)

	// 5. Initialize Redis Client (stats cache)
	redisClient, err := database.NewRedisClient(cfg, appLogger)
	if err != nil {
		appLogger.Warn("⚠️ Failed to connect to Redis for stats caching", "error", err)
		appLogger.Info("💡 Usage stats will be recomputed from Postgres on every request")
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			redisClient.Close()
		}
	}()

	// 6. Initialize Rate Limiter (fast daily counter)
	rateLimiter, err := middleware.NewRateLimiter(cfg, appLogger)
	if err != nil {
		appLogger.Warn("⚠️ Failed to connect to Redis, using no-op rate limiter", "error", err)
		rateLimiter = middleware.NewNoOpRateLimiter(appLogger)
	}
	defer rateLimiter.Close()

	// 7. Initialize Worker Pool & Engine
	pool := worker.NewPool(appLogger)
	eng := engine.NewSimulated(time.Duration(cfg.EngineStepDelayMS)*time.Millisecond, appLogger)

	// 8. Initialize Services
	authService := service.NewAuthService(userRepo, refreshTokenRepo, cfg, appLogger)
	usageService := service.NewUsageService(usageRepo, rateLimiter, redisClient, appLogger)
	taskService := service.NewTaskService(taskRepo, userRepo, usageService, eng, pool, appLogger)

	// 9. Initialize Handlers & Middleware
	authHandler := handler.NewAuthHandler(authService, appLogger)
	planHandler := handler.NewPlanHandler()
	toolHandler := handler.NewToolHandler()
	taskHandler := handler.NewTaskHandler(taskService, appLogger)
	userHandler := handler.NewUserHandler(userRepo, usageService, appLogger)
	authMiddleware := middleware.NewAuthMiddleware(authService, appLogger)

	// 10. Setup Router & HTTP Server
	r := api.SetupRouter(authHandler, planHandler, toolHandler, taskHandler, userHandler, authMiddleware)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ApiServicePort),
		Handler: r,
	}

	go func() {
		appLogger.Info("🌍 [Go] HTTP Server running...", "port", cfg.ApiServicePort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("❌ HTTP Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// 11. Wait for shutdown signal, then drain
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("🛑 [Go] Shutdown signal received")

	shutdownTimeout := time.Duration(cfg.ShutdownTimeout) * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("❌ HTTP Server shutdown failed", "error", err)
	}

	// Let in-flight conversions finish before exiting
	pool.Shutdown(shutdownTimeout)

	appLogger.Info("👋 [Go] Server stopped")
}
