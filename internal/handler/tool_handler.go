package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/trayyy/trayyy/backend-go/internal/tools"
)

// ToolHandler serves the public tool catalog
type ToolHandler struct{}

// NewToolHandler creates a new tool catalog handler
func NewToolHandler() *ToolHandler {
	return &ToolHandler{}
}

// ListTrays handles GET /trays - returns all trays
func (h *ToolHandler) ListTrays(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"trays": tools.Trays()})
}

// ListTrayTools handles GET /trays/:tray_id/tools - returns one tray's tools
func (h *ToolHandler) ListTrayTools(c *gin.Context) {
	trayID := c.Param("tray_id")

	trayTools, err := tools.ByTray(trayID)
	if err != nil {
		if errors.Is(err, tools.ErrTrayNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Tray not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tools": trayTools})
}

// GetTool handles GET /tools/:tool_id - returns one tool definition
func (h *ToolHandler) GetTool(c *gin.Context) {
	tool, err := tools.Find(c.Param("tool_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tool not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tool": tool})
}
