package handlers

import (
	"net/http"

	"marketplace_ops_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// PickingHandler drives picking terminal sessions.
type PickingHandler struct {
	pickingService services.PickingService
}

// NewPickingHandler creates a new PickingHandler.
func NewPickingHandler(ps services.PickingService) *PickingHandler {
	return &PickingHandler{pickingService: ps}
}

func (h *PickingHandler) StartSession(c *gin.Context) {
	var req services.StartPickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, "StartSession", err)
		return
	}
	session, err := h.pickingService.StartSession(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		respondServiceError(c, "StartSession", err, "Failed to start picking session.")
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *PickingHandler) GetSession(c *gin.Context) {
	session, err := h.pickingService.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, "GetSession", err, "Failed to fetch picking session.")
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *PickingHandler) ScanLocation(c *gin.Context) {
	var req services.ScanLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, "ScanLocation", err)
		return
	}
	session, err := h.pickingService.ScanLocation(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondServiceError(c, "ScanLocation", err, "Failed to verify location.")
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *PickingHandler) ScanProduct(c *gin.Context) {
	var req services.ScanProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, "ScanProduct", err)
		return
	}
	session, err := h.pickingService.ScanProduct(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondServiceError(c, "ScanProduct", err, "Failed to verify product.")
		return
	}
	c.JSON(http.StatusOK, session)
}

// EnterQuantity records the counted quantity; the final line commits or short-picks the order.
func (h *PickingHandler) EnterQuantity(c *gin.Context) {
	var req services.EnterQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, "EnterQuantity", err)
		return
	}
	session, err := h.pickingService.EnterQuantity(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		respondServiceError(c, "EnterQuantity", err, "Failed to record quantity.")
		return
	}
	c.JSON(http.StatusOK, session)
}
