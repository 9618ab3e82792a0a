package handlers

import (
	"net/http"

	"marketplace_ops_backend/internal/models"
	"marketplace_ops_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// AuditHandler exposes the audit trail.
type AuditHandler struct {
	auditService services.AuditService
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(as services.AuditService) *AuditHandler {
	return &AuditHandler{auditService: as}
}

func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	var filters models.AuditLogFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		respondBindError(c, "GetAuditLogs", err)
		return
	}
	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, "GetAuditLogs", err, "Failed to fetch audit logs.")
		return
	}
	c.JSON(http.StatusOK, paged(logs, total, filters.Page, filters.PageSize))
}
