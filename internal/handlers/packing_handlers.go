package handlers

import (
	"net/http"

	"marketplace_ops_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// PackingHandler serves the packing terminal.
type PackingHandler struct {
	packingService services.PackingService
}

// NewPackingHandler creates a new PackingHandler.
func NewPackingHandler(ps services.PackingService) *PackingHandler {
	return &PackingHandler{packingService: ps}
}

func (h *PackingHandler) Lookup(c *gin.Context) {
	summary, err := h.packingService.Lookup(c.Request.Context(), c.Param("reference"))
	if err != nil {
		respondServiceError(c, "PackingLookup", err, "Failed to look up order for packing.")
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *PackingHandler) Confirm(c *gin.Context) {
	var req services.ConfirmPackingRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, "PackingConfirm", err)
			return
		}
	}
	summary, err := h.packingService.Confirm(c.Request.Context(), actorFromContext(c), c.Param("reference"), req)
	if err != nil {
		respondServiceError(c, "PackingConfirm", err, "Failed to confirm packing.")
		return
	}
	c.JSON(http.StatusOK, summary)
}
