package handlers

import (
	"net/http"

	"marketplace_ops_backend/internal/models"
	"marketplace_ops_backend/internal/services"
	"marketplace_ops_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// WaveHandler holds the wave service.
type WaveHandler struct {
	waveService services.WaveService
}

// NewWaveHandler creates a new WaveHandler.
func NewWaveHandler(ws services.WaveService) *WaveHandler {
	return &WaveHandler{waveService: ws}
}

// CreateWave releases queued orders into a new wave.
func (h *WaveHandler) CreateWave(c *gin.Context) {
	var req services.CreateWaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, "CreateWave", err)
		return
	}
	detail, err := h.waveService.CreateWave(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		respondServiceError(c, "CreateWave", err, "Failed to create wave.")
		return
	}
	c.JSON(http.StatusCreated, detail)
}

// GetWaves lists waves with their derived order counts.
func (h *WaveHandler) GetWaves(c *gin.Context) {
	var filters models.WaveFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		respondBindError(c, "GetWaves", err)
		return
	}
	waves, total, err := h.waveService.GetWaves(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, "GetWaves", err, "Failed to fetch waves.")
		return
	}
	c.JSON(http.StatusOK, paged(waves, total, filters.Page, filters.PageSize))
}

// GetWave returns the wave together with its orders.
func (h *WaveHandler) GetWave(c *gin.Context) {
	waveID, ok := parseIDParam(c, "id", "wave ID")
	if !ok {
		return
	}
	detail, err := h.waveService.GetWaveDetail(c.Request.Context(), waveID)
	if err != nil {
		respondServiceError(c, "GetWave", err, "Failed to fetch wave.")
		return
	}
	c.JSON(http.StatusOK, detail)
}

// CancelWave returns every order of the wave to the queue, reverses its stock issues and deletes it.
func (h *WaveHandler) CancelWave(c *gin.Context) {
	waveID, ok := parseIDParam(c, "id", "wave ID")
	if !ok {
		return
	}
	result, err := h.waveService.CancelWave(c.Request.Context(), actorFromContext(c), waveID)
	if err != nil {
		respondServiceError(c, "CancelWave", err, "Failed to cancel wave.")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Wave cancelled",
		"result":  result,
	})
}

// UpdateWave dispatches PATCH actions: mark_oos, remove_order and update_status.
func (h *WaveHandler) UpdateWave(c *gin.Context) {
	waveID, ok := parseIDParam(c, "id", "wave ID")
	if !ok {
		return
	}
	var req services.UpdateWaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, "UpdateWave", err)
		return
	}

	ctx := c.Request.Context()
	actor := actorFromContext(c)
	switch req.Action {
	case services.WaveActionMarkOOS, services.WaveActionRemoveOrder:
		if utils.IsEmpty(req.OrderID) {
			utils.RespondValidationFailed(c, "orderId is required for "+req.Action)
			return
		}
		var result *services.WaveOrderResult
		var err error
		if req.Action == services.WaveActionMarkOOS {
			result, err = h.waveService.MarkOrderOutOfStock(ctx, actor, waveID, req.OrderID, nil)
		} else {
			result, err = h.waveService.RemoveOrderFromWave(ctx, actor, waveID, req.OrderID)
		}
		if err != nil {
			respondServiceError(c, "UpdateWave", err, "Failed to update wave.")
			return
		}
		c.JSON(http.StatusOK, result)
	case services.WaveActionUpdateStatus:
		if utils.IsEmpty(req.Status) {
			utils.RespondValidationFailed(c, "status is required for update_status")
			return
		}
		wave, err := h.waveService.UpdateWaveStatus(ctx, actor, waveID, req.Status)
		if err != nil {
			respondServiceError(c, "UpdateWave", err, "Failed to update wave.")
			return
		}
		c.JSON(http.StatusOK, wave)
	default:
		utils.RespondValidationFailed(c, "unknown action "+req.Action)
	}
}
