package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace_ops_backend/internal/locks"
	"marketplace_ops_backend/internal/metrics"
	"marketplace_ops_backend/internal/models"
	"marketplace_ops_backend/internal/repositories"
	"marketplace_ops_backend/pkg/utils"
)

// Roles allowed to run the supervisory wave operations.
var waveSupervisorRoles = []string{models.RoleSuperAdmin, models.RoleManager, models.RoleSupervisor}

// Mark out-of-stock is also reachable from the picking terminal.
var markOutOfStockRoles = []string{models.RoleSuperAdmin, models.RoleManager, models.RoleSupervisor, models.RolePicker}

// Wave PATCH actions.
const (
	WaveActionMarkOOS      = "mark_oos"
	WaveActionRemoveOrder  = "remove_order"
	WaveActionUpdateStatus = "update_status"
)

// CreateWaveRequest releases queued orders into a new wave.
type CreateWaveRequest struct {
	WaveType string  `json:"wave_type" binding:"required"`
	OrderIDs []int64 `json:"order_ids" binding:"required,min=1,dive,gt=0"`
}

// UpdateWaveRequest is the body of PATCH /api/waves/:id.
type UpdateWaveRequest struct {
	Action  string `json:"action" binding:"required,wave_action"`
	OrderID string `json:"orderId"` // order reference
	Status  string `json:"status"`
}

// CancelWaveResult summarizes a cancelled wave.
type CancelWaveResult struct {
	WaveID         int64                  `json:"wave_id"`
	DocumentNumber string                 `json:"document_number"`
	OrdersReturned int                    `json:"orders_returned"`
	StockReversed  bool                   `json:"stock_reversed"`
	Reversals      []models.StockDocument `json:"reversals"`
}

// WaveOrderResult is returned when an order leaves a wave.
type WaveOrderResult struct {
	WaveID      int64                  `json:"wave_id"`
	Reference   string                 `json:"reference"`
	Order       models.Order           `json:"order"`
	TotalOrders int                    `json:"total_orders"`
	Reversals   []models.StockDocument `json:"reversals"`
}

type WaveService interface {
	CreateWave(ctx context.Context, actor models.Actor, req CreateWaveRequest) (*models.WaveDetail, error)
	GetWaves(ctx context.Context, filters models.WaveFilters) ([]models.Wave, int, error)
	GetWaveDetail(ctx context.Context, waveID int64) (*models.WaveDetail, error)
	CancelWave(ctx context.Context, actor models.Actor, waveID int64) (*CancelWaveResult, error)
	MarkOrderOutOfStock(ctx context.Context, actor models.Actor, waveID int64, reference string, details map[string]interface{}) (*WaveOrderResult, error)
	RemoveOrderFromWave(ctx context.Context, actor models.Actor, waveID int64, reference string) (*WaveOrderResult, error)
	// MarkWaveOrderOutOfStock releases one exact, still unpicked wave-order row.
	MarkWaveOrderOutOfStock(ctx context.Context, actor models.Actor, waveID, waveOrderID int64, details map[string]interface{}) (*WaveOrderResult, error)
	UpdateWaveStatus(ctx context.Context, actor models.Actor, waveID int64, status string) (*models.Wave, error)
}

type waveService struct {
	waveRepo   repositories.WaveRepository
	orderRepo  repositories.OrderRepository
	ledgerRepo repositories.StockLedgerRepository
	auditRepo  repositories.AuditRepository
	locker     locks.Locker
	db         *sql.DB
	now        func() time.Time
}

// NewWaveService creates a new instance of WaveService.
func NewWaveService(
	wr repositories.WaveRepository,
	or repositories.OrderRepository,
	lr repositories.StockLedgerRepository,
	ar repositories.AuditRepository,
	locker locks.Locker,
	db *sql.DB,
) WaveService {
	return &waveService{
		waveRepo:   wr,
		orderRepo:  or,
		ledgerRepo: lr,
		auditRepo:  ar,
		locker:     locker,
		db:         db,
		now:        time.Now,
	}
}

// obtainLock takes key and returns its release func. A contended key maps to busy.
func obtainLock(ctx context.Context, locker locks.Locker, key string, busy error) (func(), error) {
	lock, err := locker.Obtain(ctx, key)
	if err != nil {
		if errors.Is(err, locks.ErrNotObtained) {
			return nil, fmt.Errorf("%w: %v", busy, err)
		}
		return nil, err
	}
	return func() {
		if err := lock.Release(context.Background()); err != nil {
			utils.LogWarn("Failed to release lock", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}, nil
}

// obtainWaveLock takes the per-wave lock shared by every mutation of waveID.
func obtainWaveLock(ctx context.Context, locker locks.Locker, waveID int64) (func(), error) {
	return obtainLock(ctx, locker, locks.WaveKey(waveID), ErrWaveBusy)
}

// mutate runs fn under the wave lock in one transaction with the wave row locked.
func (s *waveService) mutate(ctx context.Context, operation string, waveID int64, fn func(tx *sql.Tx, wave *models.Wave) error) (err error) {
	defer func() { metrics.ObserveWaveOperation(operation, err) }()

	release, err := obtainWaveLock(ctx, s.locker, waveID)
	if err != nil {
		return err
	}
	defer release()

	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		wave, err := s.waveRepo.LockWave(ctx, tx, waveID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrWaveNotFound
			}
			return err
		}
		return fn(tx, wave)
	})
}

func (s *waveService) CreateWave(ctx context.Context, actor models.Actor, req CreateWaveRequest) (detail *models.WaveDetail, err error) {
	defer func() { metrics.ObserveWaveOperation("create", err) }()

	if err := requireRole(actor, waveSupervisorRoles...); err != nil {
		return nil, err
	}
	if utils.IsEmpty(req.WaveType) {
		return nil, fmt.Errorf("%w: wave_type is required", ErrValidation)
	}
	ids := uniqueIDs(req.OrderIDs)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: at least one order is required", ErrValidation)
	}

	now := s.now()
	detail = &models.WaveDetail{}
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		orders, err := s.orderRepo.GetOrdersForUpdate(ctx, tx, ids)
		if err != nil {
			return err
		}
		if len(orders) != len(ids) {
			return fmt.Errorf("%w: %d of %d orders are not in the queue", ErrOrderNotFound, len(ids)-len(orders), len(ids))
		}
		for _, o := range orders {
			if o.Status != models.OrderStatusPaymentAccepted {
				return fmt.Errorf("%w: %s is %s", ErrOrderNotQueued, o.Reference, o.Status)
			}
		}

		number, err := s.waveRepo.NextWaveNumber(ctx, tx, now.Year())
		if err != nil {
			return err
		}
		detail.Wave = models.Wave{
			DocumentNumber: number,
			WaveType:       strings.TrimSpace(req.WaveType),
			Status:         models.WaveStatusProgress,
			CreatedBy:      actor.DisplayName(),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if _, err := s.waveRepo.CreateWave(ctx, tx, &detail.Wave); err != nil {
			return err
		}

		locations := map[string]string{}
		detail.Orders = make([]models.WaveOrder, 0, len(orders))
		for _, o := range orders {
			location, ok := locations[o.SKU]
			if !ok {
				batches, err := s.ledgerRepo.GetBatches(ctx, tx, o.SKU)
				if err != nil {
					return err
				}
				if len(batches) > 0 {
					location = batches[0].Location
				}
				locations[o.SKU] = location
			}
			wo := models.NewWaveOrder(detail.ID, o, location, now)
			if _, err := s.waveRepo.CreateWaveOrder(ctx, tx, &wo); err != nil {
				return err
			}
			detail.Orders = append(detail.Orders, wo)
		}
		if _, err := s.orderRepo.DeleteOrders(ctx, tx, ids); err != nil {
			return err
		}
		detail.TotalOrders = len(detail.Orders)

		return writeAudit(ctx, s.auditRepo, tx, actor, models.AuditActionWaveCreated, "wave", utils.Int64ToStr(detail.ID),
			map[string]interface{}{"document_number": number, "orders": len(detail.Orders)})
	})
	if err != nil {
		return nil, err
	}
	utils.LogInfo("Wave created", map[string]interface{}{"wave_id": detail.ID, "document_number": detail.DocumentNumber, "orders": detail.TotalOrders})
	return detail, nil
}

func (s *waveService) GetWaves(ctx context.Context, filters models.WaveFilters) ([]models.Wave, int, error) {
	if filters.Status != nil && *filters.Status != "" && !models.IsValidWaveStatus(*filters.Status) {
		return nil, 0, fmt.Errorf("%w: %q", ErrInvalidWaveStatus, *filters.Status)
	}
	return s.waveRepo.GetWaves(ctx, filters)
}

func (s *waveService) GetWaveDetail(ctx context.Context, waveID int64) (*models.WaveDetail, error) {
	wave, err := s.waveRepo.GetWaveByID(ctx, waveID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrWaveNotFound
		}
		return nil, err
	}
	orders, err := s.waveRepo.GetWaveOrders(ctx, s.db, waveID)
	if err != nil {
		return nil, err
	}
	return &models.WaveDetail{Wave: *wave, Orders: orders}, nil
}

func (s *waveService) CancelWave(ctx context.Context, actor models.Actor, waveID int64) (*CancelWaveResult, error) {
	if err := requireRole(actor, waveSupervisorRoles...); err != nil {
		return nil, err
	}

	now := s.now()
	result := &CancelWaveResult{WaveID: waveID}
	err := s.mutate(ctx, "cancel", waveID, func(tx *sql.Tx, wave *models.Wave) error {
		result.DocumentNumber = wave.DocumentNumber

		waveOrders, err := s.waveRepo.GetWaveOrders(ctx, tx, waveID)
		if err != nil {
			return err
		}
		waveOrderIDs := make([]int64, 0, len(waveOrders))
		for _, wo := range waveOrders {
			order := wo.ToQueueOrder(models.OrderStatusPaymentAccepted, now)
			if err := s.orderRepo.UpsertOrder(ctx, tx, &order); err != nil {
				return err
			}
			waveOrderIDs = append(waveOrderIDs, wo.ID)
		}
		result.OrdersReturned = len(waveOrders)

		reversals, err := reverseIssues(ctx, s.ledgerRepo, tx, waveOrderIDs, actor.DisplayName(), now)
		if err != nil {
			return err
		}
		result.Reversals = reversals
		result.StockReversed = len(reversals) > 0

		if _, err := s.waveRepo.DeleteWave(ctx, tx, waveID); err != nil {
			return err
		}
		return writeAudit(ctx, s.auditRepo, tx, actor, models.AuditActionWaveCancelled, "wave", utils.Int64ToStr(waveID),
			map[string]interface{}{
				"document_number": wave.DocumentNumber,
				"orders_returned": result.OrdersReturned,
				"stock_reversed":  result.StockReversed,
				"reversals":       len(reversals),
			})
	})
	if err != nil {
		return nil, err
	}
	countReversals(result.Reversals)
	utils.LogInfo("Wave cancelled", map[string]interface{}{"wave_id": waveID, "orders_returned": result.OrdersReturned, "reversals": len(result.Reversals)})
	return result, nil
}

func (s *waveService) MarkOrderOutOfStock(ctx context.Context, actor models.Actor, waveID int64, reference string, details map[string]interface{}) (*WaveOrderResult, error) {
	if err := requireRole(actor, markOutOfStockRoles...); err != nil {
		return nil, err
	}
	match, err := matchReference(reference)
	if err != nil {
		return nil, err
	}
	return s.releaseOrder(ctx, actor, "mark_oos", waveID, match, models.OrderStatusOutOfStock, models.AuditActionOrderOutOfStock, details)
}

func (s *waveService) RemoveOrderFromWave(ctx context.Context, actor models.Actor, waveID int64, reference string) (*WaveOrderResult, error) {
	if err := requireRole(actor, waveSupervisorRoles...); err != nil {
		return nil, err
	}
	match, err := matchReference(reference)
	if err != nil {
		return nil, err
	}
	return s.releaseOrder(ctx, actor, "remove_order", waveID, match, models.OrderStatusPaymentAccepted, models.AuditActionOrderRemoved, nil)
}

func (s *waveService) MarkWaveOrderOutOfStock(ctx context.Context, actor models.Actor, waveID, waveOrderID int64, details map[string]interface{}) (*WaveOrderResult, error) {
	if err := requireRole(actor, markOutOfStockRoles...); err != nil {
		return nil, err
	}
	match := func(waveOrders []models.WaveOrder) (models.WaveOrder, error) {
		for _, wo := range waveOrders {
			if wo.ID == waveOrderID && wo.PickedAt == nil {
				return wo, nil
			}
		}
		return models.WaveOrder{}, fmt.Errorf("%w: wave order %d is not pickable in wave %d", ErrWaveOrderNotFound, waveOrderID, waveID)
	}
	return s.releaseOrder(ctx, actor, "mark_oos", waveID, match, models.OrderStatusOutOfStock, models.AuditActionOrderOutOfStock, details)
}

// waveOrderMatcher picks the row to release from the wave's orders.
type waveOrderMatcher func(waveOrders []models.WaveOrder) (models.WaveOrder, error)

// matchReference selects the single wave-order carrying reference; none or several is not found.
func matchReference(reference string) (waveOrderMatcher, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("%w: orderId is required", ErrValidation)
	}
	return func(waveOrders []models.WaveOrder) (models.WaveOrder, error) {
		var matches []models.WaveOrder
		for _, wo := range waveOrders {
			if wo.Reference == reference {
				matches = append(matches, wo)
			}
		}
		switch len(matches) {
		case 1:
			return matches[0], nil
		case 0:
			return models.WaveOrder{}, fmt.Errorf("%w: %s", ErrWaveOrderNotFound, reference)
		default:
			return models.WaveOrder{}, fmt.Errorf("%w: %s matches %d orders", ErrWaveOrderNotFound, reference, len(matches))
		}
	}, nil
}

// releaseOrder moves the wave-order chosen by match back to the queue with status
// and reverses the issues written for that row only.
func (s *waveService) releaseOrder(ctx context.Context, actor models.Actor, operation string, waveID int64, match waveOrderMatcher, status, action string, details map[string]interface{}) (*WaveOrderResult, error) {
	now := s.now()
	result := &WaveOrderResult{WaveID: waveID}
	err := s.mutate(ctx, operation, waveID, func(tx *sql.Tx, wave *models.Wave) error {
		waveOrders, err := s.waveRepo.GetWaveOrders(ctx, tx, waveID)
		if err != nil {
			return err
		}
		wo, err := match(waveOrders)
		if err != nil {
			return fmt.Errorf("%w (wave %d)", err, waveID)
		}
		result.Reference = wo.Reference

		result.Order = wo.ToQueueOrder(status, now)
		if err := s.orderRepo.UpsertOrder(ctx, tx, &result.Order); err != nil {
			return err
		}
		reversals, err := reverseIssues(ctx, s.ledgerRepo, tx, []int64{wo.ID}, actor.DisplayName(), now)
		if err != nil {
			return err
		}
		result.Reversals = reversals
		if _, err := s.waveRepo.DeleteWaveOrder(ctx, tx, wo.ID); err != nil {
			return err
		}
		count, err := s.waveRepo.CountWaveOrders(ctx, tx, waveID)
		if err != nil {
			return err
		}
		result.TotalOrders = count

		auditDetails := map[string]interface{}{
			"wave_id":       waveID,
			"wave_order_id": wo.ID,
			"order_id":      wo.OrderID,
			"sku":           wo.SKU,
			"status":        status,
			"reversals":     len(reversals),
		}
		for k, v := range details {
			auditDetails[k] = v
		}
		return writeAudit(ctx, s.auditRepo, tx, actor, action, "order", wo.Reference, auditDetails)
	})
	if err != nil {
		return nil, err
	}
	countReversals(result.Reversals)
	return result, nil
}

func (s *waveService) UpdateWaveStatus(ctx context.Context, actor models.Actor, waveID int64, status string) (*models.Wave, error) {
	if err := requireRole(actor, waveSupervisorRoles...); err != nil {
		return nil, err
	}
	if !models.IsValidWaveStatus(status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidWaveStatus, status)
	}

	now := s.now()
	var updated models.Wave
	err := s.mutate(ctx, "update_status", waveID, func(tx *sql.Tx, wave *models.Wave) error {
		if err := s.waveRepo.UpdateWaveStatus(ctx, tx, waveID, status, now); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrWaveNotFound
			}
			return err
		}
		previous := wave.Status
		updated = *wave
		updated.Status = status
		updated.UpdatedAt = now
		return writeAudit(ctx, s.auditRepo, tx, actor, models.AuditActionWaveStatus, "wave", utils.Int64ToStr(waveID),
			map[string]interface{}{"from": previous, "to": status})
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
