package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/trayyy/trayyy/backend-go/internal/access"
	"github.com/trayyy/trayyy/backend-go/internal/database/repository"
	"github.com/trayyy/trayyy/backend-go/internal/database/service"
	"github.com/trayyy/trayyy/backend-go/internal/middleware"
	"github.com/trayyy/trayyy/backend-go/internal/tools"
)

// TaskHandler handles HTTP requests for conversion tasks
type TaskHandler struct {
	service service.TaskService
	logger  *slog.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(service service.TaskService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		service: service,
		logger:  logger,
	}
}

// CreateTask handles POST /tools/:tool_id/tasks - uploads files and starts a run.
// Expects multipart form data with one or more "files" parts and an optional
// "page_count" field for page-aware tools.
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	toolID := c.Param("tool_id")

	form, err := c.MultipartForm()
	if err != nil {
		h.logger.Error("❌ [Handler] Invalid multipart form", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Multipart form with at least one file required"})
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one file required"})
		return
	}

	var totalBytes, largest int64
	for _, fh := range files {
		totalBytes += fh.Size
		if fh.Size > largest {
			largest = fh.Size
		}
	}

	pageCount := 0
	if raw := c.PostForm("page_count"); raw != "" {
		pageCount, err = strconv.Atoi(raw)
		if err != nil || pageCount < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page_count must be a non-negative integer"})
			return
		}
	}

	view, decision, err := h.service.StartTask(c.Request.Context(), userID, toolID, service.StartRequest{
		FileCount:   len(files),
		TotalBytes:  totalBytes,
		LargestFile: largest,
		PageCount:   pageCount,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	if decision != nil {
		status := http.StatusForbidden
		if decision.Kind == access.DenyDailyLimit {
			status = http.StatusTooManyRequests
		}
		c.JSON(status, gin.H{
			"error":            decision.Reason,
			"upgrade_triggers": decision.UpgradeTriggers,
		})
		return
	}

	c.JSON(http.StatusAccepted, view)
}

// GetTask handles GET /tasks/:task_id - returns the task with live progress
func (h *TaskHandler) GetTask(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	taskID, err := uuid.Parse(c.Param("task_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid task ID"})
		return
	}

	view, err := h.service.GetTask(userID, taskID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// ListTasks handles GET /tasks - returns the caller's task history, newest first
func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	tasks, total, err := h.service.ListTasks(userID, page, pageSize)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks":     tasks,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// handleServiceError maps service errors to HTTP responses
func (h *TaskHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tools.ErrToolNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Tool not found"})
	case errors.Is(err, repository.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
	case errors.Is(err, repository.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
	default:
		h.logger.Error("❌ [Handler] Internal server error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
