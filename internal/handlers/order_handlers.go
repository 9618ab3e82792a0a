package handlers

import (
	"net/http"

	"marketplace_ops_backend/internal/models"
	"marketplace_ops_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// OrderHandler holds the order queue service.
type OrderHandler struct {
	orderService services.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(os services.OrderService) *OrderHandler {
	return &OrderHandler{orderService: os}
}

// CreateOrder adds an order to the queue.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req services.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, "CreateOrder", err)
		return
	}
	order, err := h.orderService.CreateOrder(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, "CreateOrder", err, "Failed to create order.")
		return
	}
	c.JSON(http.StatusCreated, order)
}

// GetOrders handles fetching queued orders with filters
func (h *OrderHandler) GetOrders(c *gin.Context) {
	var filters models.OrderFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		respondBindError(c, "GetOrders", err)
		return
	}
	orders, total, err := h.orderService.GetOrders(c.Request.Context(), filters)
	if err != nil {
		respondServiceError(c, "GetOrders", err, "Failed to fetch orders.")
		return
	}
	c.JSON(http.StatusOK, paged(orders, total, filters.Page, filters.PageSize))
}

func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	orderID, ok := parseIDParam(c, "id", "order ID")
	if !ok {
		return
	}
	order, err := h.orderService.GetOrderByID(c.Request.Context(), orderID)
	if err != nil {
		respondServiceError(c, "GetOrderByID", err, "Failed to fetch order.")
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	orderID, ok := parseIDParam(c, "id", "order ID")
	if !ok {
		return
	}
	if err := h.orderService.DeleteOrder(c.Request.Context(), orderID); err != nil {
		respondServiceError(c, "DeleteOrder", err, "Failed to delete order.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order deleted"})
}

// GetOrderState reports where a reference sits in the fulfillment lifecycle.
func (h *OrderHandler) GetOrderState(c *gin.Context) {
	state, err := h.orderService.GetOrderState(c.Request.Context(), c.Param("reference"))
	if err != nil {
		respondServiceError(c, "GetOrderState", err, "Failed to fetch order state.")
		return
	}
	c.JSON(http.StatusOK, state)
}
