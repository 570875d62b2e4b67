package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trayyy/trayyy/backend-go/internal/config"
)

// PlanHandler handles public plan information API requests
type PlanHandler struct{}

// NewPlanHandler creates a new plan handler
func NewPlanHandler() *PlanHandler {
	return &PlanHandler{}
}

// GetAllPlans handles GET /plans - returns all available plan tiers and their limits
func (h *PlanHandler) GetAllPlans(c *gin.Context) {
	plans := []gin.H{}

	for _, tier := range config.AllPlanTiers {
		limits := config.GetPlanLimits(tier)

		plans = append(plans, gin.H{
			"tier": tier,
			"limits": gin.H{
				"max_file_size":      limits.MaxFileSize,
				"max_files_at_once":  limits.MaxFilesAtOnce,
				"max_daily_tasks":    limits.MaxDailyTasks,
				"max_pages_per_file": limits.MaxPagesPerFile,
			},
			"features": gin.H{
				"watermark":          limits.Features.Watermark,
				"ads":                limits.Features.Ads,
				"priority_queue":     limits.Features.PriorityQueue,
				"ocr":                limits.Features.OCR,
				"cloud_integrations": limits.Features.CloudIntegrations,
			},
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"plans": plans,
	})
}

// GetPlan handles GET /plans/:tier - returns one tier's limits
func (h *PlanHandler) GetPlan(c *gin.Context) {
	tier := config.PlanTier(c.Param("tier"))
	if !config.IsValidTier(tier) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown plan tier"})
		return
	}

	limits := config.GetPlanLimits(tier)

	c.JSON(http.StatusOK, gin.H{
		"tier": tier,
		"limits": gin.H{
			"max_file_size":      limits.MaxFileSize,
			"max_files_at_once":  limits.MaxFilesAtOnce,
			"max_daily_tasks":    limits.MaxDailyTasks,
			"max_pages_per_file": limits.MaxPagesPerFile,
		},
		"features": gin.H{
			"watermark":          limits.Features.Watermark,
			"ads":                limits.Features.Ads,
			"priority_queue":     limits.Features.PriorityQueue,
			"ocr":                limits.Features.OCR,
			"cloud_integrations": limits.Features.CloudIntegrations,
		},
	})
}
