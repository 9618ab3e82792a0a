package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace_ops_backend/internal/metrics"
	"marketplace_ops_backend/internal/models"
	"marketplace_ops_backend/internal/repositories"
	"marketplace_ops_backend/pkg/utils"
)

// CreateStockDocumentRequest appends one manual ledger row.
type CreateStockDocumentRequest struct {
	DocumentNumber *string `json:"document_number"`
	SKU            string  `json:"sku" binding:"required"`
	Barcode        string  `json:"barcode"`
	ExpiryDate     *string `json:"expiry_date"` // YYYY-MM-DD
	Location       string  `json:"location" binding:"required"`
	Quantity       int     `json:"quantity" binding:"required,gt=0"`
	Status         string  `json:"status" binding:"required,ledger_status"`
	OrderReference *string `json:"order_reference"`
}

// UpdateShippingStatusRequest advances the shipping state of a packed order.
type UpdateShippingStatusRequest struct {
	OrderReference string `json:"order_reference" binding:"required"`
	ShippingStatus string `json:"shipping_status" binding:"required,shipping_status"`
}

// ShippingUpdateResult reports how many ledger rows moved.
type ShippingUpdateResult struct {
	OrderReference string `json:"order_reference"`
	ShippingStatus string `json:"shipping_status"`
	Updated        int64  `json:"updated"`
}

type StockService interface {
	CreateDocument(ctx context.Context, actor models.Actor, req CreateStockDocumentRequest) (*models.StockDocument, error)
	GetDocuments(ctx context.Context, filters models.StockDocumentFilters) ([]models.StockDocument, int, error)
	GetBatchProducts(ctx context.Context, sku string) ([]models.StockBatch, error)
	UpdateShippingStatus(ctx context.Context, actor models.Actor, req UpdateShippingStatusRequest) (*ShippingUpdateResult, error)
}

type stockService struct {
	ledgerRepo repositories.StockLedgerRepository
	auditRepo  repositories.AuditRepository
	db         *sql.DB
	now        func() time.Time
}

// NewStockService creates a new instance of StockService.
func NewStockService(lr repositories.StockLedgerRepository, ar repositories.AuditRepository, db *sql.DB) StockService {
	return &stockService{ledgerRepo: lr, auditRepo: ar, db: db, now: time.Now}
}

func (s *stockService) CreateDocument(ctx context.Context, actor models.Actor, req CreateStockDocumentRequest) (*models.StockDocument, error) {
	status, err := models.ParseLedgerStatus(req.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	if utils.IsEmpty(req.SKU) || utils.IsEmpty(req.Location) {
		return nil, fmt.Errorf("%w: sku and location are required", ErrValidation)
	}

	doc := &models.StockDocument{
		SKU:            strings.TrimSpace(req.SKU),
		Barcode:        strings.TrimSpace(req.Barcode),
		Location:       strings.TrimSpace(req.Location),
		Quantity:       req.Quantity,
		Status:         status,
		ValidatedBy:    actor.DisplayName(),
		OrderReference: trimmedOrNil(req.OrderReference),
		CreatedAt:      s.now(),
	}
	if req.ExpiryDate != nil && strings.TrimSpace(*req.ExpiryDate) != "" {
		expiry, err := time.Parse("2006-01-02", strings.TrimSpace(*req.ExpiryDate))
		if err != nil {
			return nil, fmt.Errorf("%w: expiry_date must be YYYY-MM-DD", ErrValidation)
		}
		doc.ExpiryDate = &expiry
	}

	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		if status.Direction() == models.DirectionIssue {
			if err := s.ledgerRepo.LockSKU(ctx, tx, doc.SKU); err != nil {
				return err
			}
			batches, err := s.ledgerRepo.GetBatches(ctx, tx, doc.SKU)
			if err != nil {
				return err
			}
			if onHandFor(batches, doc.SKU, doc.Barcode, doc.Location, doc.ExpiryDate) < doc.Quantity {
				return fmt.Errorf("%w: %s at %s", ErrInsufficientStock, doc.SKU, doc.Location)
			}
		}

		if num := trimmedOrNil(req.DocumentNumber); num != nil {
			doc.DocumentNumber = *num
		} else {
			number, err := s.ledgerRepo.NextDocumentNumber(ctx, tx, utils.DocPrefixManual, doc.CreatedAt.Year())
			if err != nil {
				return err
			}
			doc.DocumentNumber = number
		}

		if _, err := s.ledgerRepo.CreateDocument(ctx, tx, doc); err != nil {
			if errors.Is(err, repositories.ErrDuplicateKey) {
				return fmt.Errorf("%w: %s", ErrDocumentExists, doc.DocumentNumber)
			}
			return err
		}
		return writeAudit(ctx, s.auditRepo, tx, actor, models.AuditActionDocumentAppended, "stock_document", doc.DocumentNumber,
			map[string]interface{}{"sku": doc.SKU, "quantity": doc.Quantity, "status": doc.Status.String()})
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *stockService) GetDocuments(ctx context.Context, filters models.StockDocumentFilters) ([]models.StockDocument, int, error) {
	if filters.Status != nil && *filters.Status != "" {
		if _, err := models.ParseLedgerStatus(*filters.Status); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}
	return s.ledgerRepo.GetDocuments(ctx, filters)
}

func (s *stockService) GetBatchProducts(ctx context.Context, sku string) ([]models.StockBatch, error) {
	if utils.IsEmpty(sku) {
		return nil, fmt.Errorf("%w: sku is required", ErrValidation)
	}
	return s.ledgerRepo.GetBatches(ctx, s.db, strings.TrimSpace(sku))
}

func (s *stockService) UpdateShippingStatus(ctx context.Context, actor models.Actor, req UpdateShippingStatusRequest) (*ShippingUpdateResult, error) {
	from := previousShippingStatus(req.ShippingStatus)
	if from == "" {
		return nil, fmt.Errorf("%w: cannot move to %q", ErrInvalidShipping, req.ShippingStatus)
	}

	result := &ShippingUpdateResult{OrderReference: req.OrderReference, ShippingStatus: req.ShippingStatus}
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		n, err := s.ledgerRepo.UpdateShippingStatus(ctx, tx, req.OrderReference, from, req.ShippingStatus)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: no %s documents for %s", ErrInvalidShipping, from, req.OrderReference)
		}
		result.Updated = n
		return writeAudit(ctx, s.auditRepo, tx, actor, models.AuditActionShippingUpdated, "order", req.OrderReference,
			map[string]interface{}{"from": from, "to": req.ShippingStatus, "documents": n})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func previousShippingStatus(to string) string {
	for _, from := range []string{models.ShippingStatusPacked, models.ShippingStatusShipped} {
		if models.NextShippingStatus(from, to) {
			return from
		}
	}
	return ""
}

func onHandFor(batches []models.StockBatch, sku, barcode, location string, expiry *time.Time) int {
	for _, b := range batches {
		if b.SameBatch(sku, barcode, location, expiry) {
			return b.OnHand
		}
	}
	return 0
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	return utils.NewNullString(strings.TrimSpace(*s))
}

// reverseIssues writes one "Receipt - Outbound Return" per outstanding order issue
// picked for the given wave-order rows.
func reverseIssues(ctx context.Context, ledger repositories.StockLedgerRepository, tx repositories.SQLExecutor, waveOrderIDs []int64, validatedBy string, now time.Time) ([]models.StockDocument, error) {
	issues, err := ledger.FindOutstandingIssues(ctx, tx, waveOrderIDs)
	if err != nil {
		return nil, err
	}
	reversals := make([]models.StockDocument, 0, len(issues))
	for _, issue := range issues {
		number, err := ledger.NextDocumentNumber(ctx, tx, utils.DocPrefixOutboundReturn, now.Year())
		if err != nil {
			return nil, err
		}
		sourceID := issue.ID
		reversal := models.StockDocument{
			DocumentNumber:   number,
			SKU:              issue.SKU,
			Barcode:          issue.Barcode,
			ExpiryDate:       issue.ExpiryDate,
			Location:         issue.Location,
			Quantity:         issue.Quantity,
			Status:           models.StatusReceiptOutboundReturn,
			ValidatedBy:      validatedBy,
			OrderReference:   issue.OrderReference,
			WaveOrderID:      issue.WaveOrderID,
			SourceDocumentID: &sourceID,
			CreatedAt:        now,
		}
		if _, err := ledger.CreateDocument(ctx, tx, &reversal); err != nil {
			return nil, fmt.Errorf("reversing document %s: %w", issue.DocumentNumber, err)
		}
		reversals = append(reversals, reversal)
	}
	return reversals, nil
}

func countReversals(reversals []models.StockDocument) {
	if len(reversals) > 0 {
		metrics.StockReversalsTotal.Add(float64(len(reversals)))
	}
}
