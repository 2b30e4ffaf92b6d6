package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AgentShepherd/dataworks/internal/audit"
)

// AuditHandler serves the decision audit trail over HTTP
type AuditHandler struct {
	storage *audit.Storage
}

// NewAuditHandler creates a new audit API handler
func NewAuditHandler(storage *audit.Storage) *AuditHandler {
	return &AuditHandler{storage: storage}
}

// RegisterRoutes registers audit API routes on the given router
func (h *AuditHandler) RegisterRoutes(router gin.IRouter) {
	g := router.Group("/api/audit")
	{
		g.GET("/logs", h.HandleLogs)
		g.GET("/stats", h.HandleStats)
	}
}

// LogsQuery represents query parameters for the logs endpoint
type LogsQuery struct {
	Minutes int `form:"minutes" binding:"omitempty,min=1,max=10080"` // max 7 days
	Limit   int `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// HandleLogs handles GET /api/audit/logs
func (h *AuditHandler) HandleLogs(c *gin.Context) {
	var query LogsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		Error(c, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.storage.Recent(c.Request.Context(), query.Minutes, query.Limit)
	if err != nil {
		httpLog.Error("Failed to list decisions: %v", err)
		Error(c, http.StatusInternalServerError, "Failed to list decisions")
		return
	}
	Success(c, entries)
}

// HandleStats handles GET /api/audit/stats
func (h *AuditHandler) HandleStats(c *gin.Context) {
	stats, err := h.storage.Stats(c.Request.Context())
	if err != nil {
		httpLog.Error("Failed to compute stats: %v", err)
		Error(c, http.StatusInternalServerError, "Failed to compute stats")
		return
	}
	Success(c, stats)
}
