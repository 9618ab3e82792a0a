package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"marketplace_ops_backend/internal/locks"
	"marketplace_ops_backend/internal/models"
	"marketplace_ops_backend/internal/repositories"
	"marketplace_ops_backend/pkg/utils"
)

// ConfirmPackingRequest finishes packing of an order.
type ConfirmPackingRequest struct {
	PackerName *string `json:"packer_name"`
}

// PackingItem aggregates the issue documents of one sku/barcode.
type PackingItem struct {
	SKU       string   `json:"sku"`
	Barcode   string   `json:"barcode"`
	Quantity  int      `json:"quantity"`
	Locations []string `json:"locations"`
	Documents []string `json:"documents"`
}

// PackingSummary is what the packing terminal shows for a reference.
type PackingSummary struct {
	Reference    string                 `json:"reference"`
	CustomerName string                 `json:"customer_name,omitempty"`
	Phone        *string                `json:"phone,omitempty"`
	Address      *string                `json:"address,omitempty"`
	City         string                 `json:"city,omitempty"`
	DeliveryType *string                `json:"delivery_type,omitempty"`
	StoreName    *string                `json:"store_name,omitempty"`
	OrderDate    *time.Time             `json:"order_date,omitempty"`
	PackerName   *string                `json:"packer_name,omitempty"`
	Items        []PackingItem          `json:"items"`
	Documents    []models.StockDocument `json:"documents"`
}

type PackingService interface {
	Lookup(ctx context.Context, reference string) (*PackingSummary, error)
	Confirm(ctx context.Context, actor models.Actor, reference string, req ConfirmPackingRequest) (*PackingSummary, error)
}

type packingService struct {
	ledgerRepo repositories.StockLedgerRepository
	waveRepo   repositories.WaveRepository
	auditRepo  repositories.AuditRepository
	locker     locks.Locker
	db         *sql.DB
}

// NewPackingService creates a new instance of PackingService.
func NewPackingService(
	lr repositories.StockLedgerRepository,
	wr repositories.WaveRepository,
	ar repositories.AuditRepository,
	locker locks.Locker,
	db *sql.DB,
) PackingService {
	return &packingService{ledgerRepo: lr, waveRepo: wr, auditRepo: ar, locker: locker, db: db}
}

func (s *packingService) Lookup(ctx context.Context, reference string) (*PackingSummary, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrValidation)
	}
	docs, err := s.ledgerRepo.FindPendingPacking(ctx, s.db, reference)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNothingToPack, reference)
	}
	return s.summarize(ctx, reference, docs)
}

func (s *packingService) Confirm(ctx context.Context, actor models.Actor, reference string, req ConfirmPackingRequest) (*PackingSummary, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("%w: reference is required", ErrValidation)
	}
	packer := actor.DisplayName()
	if name := trimmedOrNil(req.PackerName); name != nil {
		packer = *name
	}
	if utils.IsEmpty(packer) {
		return nil, fmt.Errorf("%w: packer_name is required", ErrValidation)
	}

	release, err := obtainLock(ctx, s.locker, locks.OrderKey(reference), ErrWaveBusy)
	if err != nil {
		return nil, err
	}
	defer release()

	var packed []models.StockDocument
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		docs, err := s.ledgerRepo.MarkPacked(ctx, tx, reference, packer)
		if err != nil {
			return err
		}
		packed = docs
		if len(packed) == 0 {
			return fmt.Errorf("%w: %s", ErrNothingToPack, reference)
		}
		return writeAudit(ctx, s.auditRepo, tx, actor, models.AuditActionOrderPacked, "order", reference,
			map[string]interface{}{"packer_name": packer, "documents": len(packed)})
	})
	if err != nil {
		return nil, err
	}
	utils.LogInfo("Order packed", map[string]interface{}{"reference": reference, "packer_name": packer, "documents": len(packed)})

	summary, err := s.summarize(ctx, reference, packed)
	if err != nil {
		return nil, err
	}
	summary.PackerName = &packer
	return summary, nil
}

func (s *packingService) summarize(ctx context.Context, reference string, docs []models.StockDocument) (*PackingSummary, error) {
	summary := &PackingSummary{Reference: reference, Items: aggregatePackingItems(docs), Documents: docs}

	waveOrders, err := s.waveRepo.FindWaveOrdersByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if len(waveOrders) > 0 {
		wo := waveOrders[0]
		summary.CustomerName = wo.CustomerName
		summary.Phone = wo.Phone
		summary.Address = wo.Address
		summary.City = wo.City
		summary.DeliveryType = wo.DeliveryType
		summary.StoreName = wo.StoreName
		orderDate := wo.OrderDate
		summary.OrderDate = &orderDate
	}
	return summary, nil
}

// aggregatePackingItems merges documents of an order split across batches.
func aggregatePackingItems(docs []models.StockDocument) []PackingItem {
	index := map[string]int{}
	items := []PackingItem{}
	for _, d := range docs {
		key := d.SKU + "|" + d.Barcode
		i, ok := index[key]
		if !ok {
			items = append(items, PackingItem{SKU: d.SKU, Barcode: d.Barcode})
			i = len(items) - 1
			index[key] = i
		}
		items[i].Quantity += d.Quantity
		items[i].Documents = append(items[i].Documents, d.DocumentNumber)
		if !containsString(items[i].Locations, d.Location) {
			items[i].Locations = append(items[i].Locations, d.Location)
		}
	}
	sort.SliceStable(items, func(a, b int) bool { return items[a].SKU < items[b].SKU })
	return items
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
