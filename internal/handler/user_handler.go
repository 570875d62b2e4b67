package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trayyy/trayyy/backend-go/internal/database/repository"
	"github.com/trayyy/trayyy/backend-go/internal/database/service"
	"github.com/trayyy/trayyy/backend-go/internal/middleware"
)

// UserHandler handles HTTP requests for the authenticated user's account
type UserHandler struct {
	userRepo repository.UserRepository
	usage    service.UsageService
	logger   *slog.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(userRepo repository.UserRepository, usage service.UsageService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		userRepo: userRepo,
		usage:    usage,
		logger:   logger,
	}
}

// GetMe handles GET /me - returns the caller's profile with plan limits
func (h *UserHandler) GetMe(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	user, err := h.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.logger.Error("❌ [Handler] Failed to load user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	limits := user.GetPlanLimits()

	c.JSON(http.StatusOK, gin.H{
		"user": user,
		"plan": gin.H{
			"tier": user.PlanTier,
			"limits": gin.H{
				"max_file_size":      limits.MaxFileSize,
				"max_files_at_once":  limits.MaxFilesAtOnce,
				"max_daily_tasks":    limits.MaxDailyTasks,
				"max_pages_per_file": limits.MaxPagesPerFile,
			},
			"features": limits.Features,
		},
	})
}

// GetUsage handles GET /me/usage - returns today's and this month's usage
func (h *UserHandler) GetUsage(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	user, err := h.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		h.logger.Error("❌ [Handler] Failed to load user", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	stats, err := h.usage.GetUserStats(c.Request.Context(), userID, user.PlanTier)
	if err != nil {
		h.logger.Error("❌ [Handler] Failed to load usage stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, stats)
}
