package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trayyy/trayyy/backend-go/internal/handler"
	"github.com/trayyy/trayyy/backend-go/internal/metrics"
	"github.com/trayyy/trayyy/backend-go/internal/middleware"
)

func SetupRouter(
	authHandler *handler.AuthHandler,
	planHandler *handler.PlanHandler,
	toolHandler *handler.ToolHandler,
	taskHandler *handler.TaskHandler,
	userHandler *handler.UserHandler,
	authMiddleware *middleware.AuthMiddleware,
) *gin.Engine {
	r := gin.Default()
	r.SetTrustedProxies(nil)
	r.Use(metrics.Middleware())

	// Public routes
	r.GET("/api/v1/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Auth routes (Public)
	authGroup := r.Group("/api/v1/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.RefreshToken)
		authGroup.POST("/logout", authHandler.Logout)
	}

	// Catalog routes (Public): plans, trays and tools are browsable before login
	catalog := r.Group("/api/v1")
	{
		catalog.GET("/plans", planHandler.GetAllPlans)
		catalog.GET("/plans/:tier", planHandler.GetPlan)
		catalog.GET("/trays", toolHandler.ListTrays)
		catalog.GET("/trays/:tray_id/tools", toolHandler.ListTrayTools)
		catalog.GET("/tools/:tool_id", toolHandler.GetTool)
	}

	// Protected API routes
	api := r.Group("/api/v1")
	api.Use(authMiddleware.RequireAuth())
	{
		api.GET("/me", userHandler.GetMe)
		api.GET("/me/usage", userHandler.GetUsage)
		api.POST("/tools/:tool_id/tasks", taskHandler.CreateTask)
		api.GET("/tasks", taskHandler.ListTasks)
		api.GET("/tasks/:task_id", taskHandler.GetTask)
	}

	return r
}
