package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace_ops_backend/internal/models"
	"marketplace_ops_backend/internal/repositories"
	"marketplace_ops_backend/pkg/utils"
)

// --- Data Transfer Objects (DTOs) ---

// CreateOrderRequest is used for adding an order to the queue.
type CreateOrderRequest struct {
	Reference    string     `json:"reference" binding:"required"`
	SKU          string     `json:"sku" binding:"required"`
	Quantity     int        `json:"quantity" binding:"required,gt=0"`
	CustomerName string     `json:"customer_name"`
	Phone        *string    `json:"phone"`
	Address      *string    `json:"address"`
	City         string     `json:"city"`
	DeliveryType *string    `json:"delivery_type"`
	StoreName    *string    `json:"store_name"`
	OrderDate    *time.Time `json:"order_date"`
}

// OrderStateResponse is where an order reference currently sits in the lifecycle.
type OrderStateResponse struct {
	Reference string                 `json:"reference"`
	State     models.OrderState      `json:"state"`
	WaveID    *int64                 `json:"wave_id,omitempty"`
	Queue     []models.Order         `json:"queue"`
	Documents []models.StockDocument `json:"documents"`
}

// --- End of DTOs ---

type OrderService interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, error)
	GetOrders(ctx context.Context, filters models.OrderFilters) ([]models.Order, int, error)
	GetOrderByID(ctx context.Context, orderID int64) (*models.Order, error)
	DeleteOrder(ctx context.Context, orderID int64) error
	GetOrderState(ctx context.Context, reference string) (*OrderStateResponse, error)
}

type orderService struct {
	orderRepo  repositories.OrderRepository
	waveRepo   repositories.WaveRepository
	ledgerRepo repositories.StockLedgerRepository
	db         *sql.DB
}

// NewOrderService creates a new instance of OrderService.
func NewOrderService(
	or repositories.OrderRepository,
	wr repositories.WaveRepository,
	lr repositories.StockLedgerRepository,
	db *sql.DB,
) OrderService {
	return &orderService{
		orderRepo:  or,
		waveRepo:   wr,
		ledgerRepo: lr,
		db:         db,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	if utils.IsEmpty(req.Reference) || utils.IsEmpty(req.SKU) {
		return nil, fmt.Errorf("%w: reference and sku are required", ErrValidation)
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}

	order := &models.Order{
		Reference:    strings.TrimSpace(req.Reference),
		SKU:          strings.TrimSpace(req.SKU),
		Quantity:     req.Quantity,
		CustomerName: strings.TrimSpace(req.CustomerName),
		Phone:        trimmedOrNil(req.Phone),
		Address:      trimmedOrNil(req.Address),
		City:         strings.TrimSpace(req.City),
		DeliveryType: trimmedOrNil(req.DeliveryType),
		StoreName:    trimmedOrNil(req.StoreName),
		Status:       models.OrderStatusPaymentAccepted,
	}
	if req.OrderDate != nil {
		order.OrderDate = *req.OrderDate
	}

	if _, err := s.orderRepo.CreateOrder(ctx, s.db, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *orderService) GetOrders(ctx context.Context, filters models.OrderFilters) ([]models.Order, int, error) {
	if filters.Status != nil && *filters.Status != "" &&
		*filters.Status != models.OrderStatusPaymentAccepted && *filters.Status != models.OrderStatusOutOfStock {
		return nil, 0, fmt.Errorf("%w: unknown order status %q", ErrValidation, *filters.Status)
	}
	return s.orderRepo.GetOrders(ctx, filters)
}

func (s *orderService) GetOrderByID(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *orderService) DeleteOrder(ctx context.Context, orderID int64) error {
	if _, err := s.orderRepo.DeleteOrder(ctx, s.db, orderID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrOrderNotFound
		}
		return err
	}
	return nil
}

func (s *orderService) GetOrderState(ctx context.Context, reference string) (*OrderStateResponse, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrValidation)
	}
	queue, err := s.orderRepo.FindOrdersByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	waveOrders, err := s.waveRepo.FindWaveOrdersByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	docs, err := s.ledgerRepo.GetDocumentsByReference(ctx, reference)
	if err != nil {
		return nil, err
	}

	state := DeriveOrderState(queue, waveOrders, docs)
	if state == models.OrderStateUnknown {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, reference)
	}
	resp := &OrderStateResponse{Reference: reference, State: state, Queue: queue, Documents: docs}
	if len(waveOrders) > 0 {
		id := waveOrders[0].WaveID
		resp.WaveID = &id
	}
	return resp, nil
}

// DeriveOrderState places a reference in the lifecycle from what exists for it.
// Outstanding order issues decide first (least advanced shipping state wins),
// then wave membership, then the queue.
func DeriveOrderState(queue []models.Order, waveOrders []models.WaveOrder, docs []models.StockDocument) models.OrderState {
	reversed := map[int64]bool{}
	for _, d := range docs {
		if d.SourceDocumentID != nil {
			reversed[*d.SourceDocumentID] = true
		}
	}

	rank := map[models.OrderState]int{
		models.OrderStatePicked:    1,
		models.OrderStatePacked:    2,
		models.OrderStateShipped:   3,
		models.OrderStateDelivered: 4,
	}
	var fromLedger models.OrderState
	for _, d := range docs {
		if d.Status != models.StatusIssueOrder || reversed[d.ID] {
			continue
		}
		state := models.OrderStatePicked
		switch {
		case d.ShippingStatus != nil && *d.ShippingStatus == models.ShippingStatusDelivered:
			state = models.OrderStateDelivered
		case d.ShippingStatus != nil && *d.ShippingStatus == models.ShippingStatusShipped:
			state = models.OrderStateShipped
		case d.PackerName != nil:
			state = models.OrderStatePacked
		}
		if fromLedger == "" || rank[state] < rank[fromLedger] {
			fromLedger = state
		}
	}
	if fromLedger != "" {
		return fromLedger
	}

	if len(waveOrders) > 0 {
		for _, wo := range waveOrders {
			if wo.PickedAt == nil {
				return models.OrderStateAssigned
			}
		}
		return models.OrderStatePicked
	}

	if len(queue) > 0 {
		for _, o := range queue {
			if o.Status == models.OrderStatusOutOfStock {
				return models.OrderStateOutOfStock
			}
		}
		return models.OrderStateQueued
	}
	return models.OrderStateUnknown
}
