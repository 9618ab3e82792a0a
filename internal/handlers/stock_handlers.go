package handlers

import (
	"net/http"

	"marketplace_ops_backend/internal/models"
	"marketplace_ops_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// StockHandler serves the stock ledger.
type StockHandler struct {
	stockService services.StockService
}

// NewStockHandler creates a new StockHandler.
func NewStockHandler(ss services.StockService) *StockHandler {
	return &StockHandler{stockService: ss}
}

// CreateDocument appends a manual ledger document.
func (h *StockHandler) CreateDocument(c *gin.Context) {
	var req services.CreateStockDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, "CreateDocument", err)
		return
	}
	doc, err := h.stockService.CreateDocument(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		respondServiceError(c, "CreateDocument", err, "Failed to create stock document.")
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (h *StockHandler) GetDocuments(c *gin.Context) {
	var filters models.StockDocumentFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		respondBindError(c, "GetDocuments", err)
		return
	}
	docs, total, err := h.stockService.GetDocuments(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, "GetDocuments", err, "Failed to fetch stock documents.")
		return
	}
	c.JSON(http.StatusOK, paged(docs, total, filters.Page, filters.PageSize))
}

// GetBatchProducts lists batches of a sku with stock on hand, earliest expiry first.
func (h *StockHandler) GetBatchProducts(c *gin.Context) {
	batches, err := h.stockService.GetBatchProducts(c.Request.Context(), c.Query("sku"))
	if err != nil {
		respondServiceError(c, "GetBatchProducts", err, "Failed to fetch batch products.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": batches})
}

// UpdateShippingStatus moves a packed order along Packed, Shipped, Delivered.
func (h *StockHandler) UpdateShippingStatus(c *gin.Context) {
	var req services.UpdateShippingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, "UpdateShippingStatus", err)
		return
	}
	result, err := h.stockService.UpdateShippingStatus(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		respondServiceError(c, "UpdateShippingStatus", err, "Failed to update shipping status.")
		return
	}
	c.JSON(http.StatusOK, result)
}
