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

	"github.com/google/uuid"
)

// StartPickRequest opens a picking session for an order reference.
type StartPickRequest struct {
	OrderReference string `json:"order_reference" binding:"required"`
}

// ScanLocationRequest is the location scanned at the shelf.
type ScanLocationRequest struct {
	Location string `json:"location" binding:"required"`
}

// ScanProductRequest is the product barcode scanned.
type ScanProductRequest struct {
	Barcode string `json:"barcode" binding:"required"`
}

// EnterQuantityRequest is the counted quantity for the current line.
type EnterQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required,gte=0"`
}

type PickingService interface {
	StartSession(ctx context.Context, actor models.Actor, req StartPickRequest) (*PickSession, error)
	GetSession(ctx context.Context, sessionID string) (*PickSession, error)
	ScanLocation(ctx context.Context, sessionID string, req ScanLocationRequest) (*PickSession, error)
	ScanProduct(ctx context.Context, sessionID string, req ScanProductRequest) (*PickSession, error)
	EnterQuantity(ctx context.Context, actor models.Actor, sessionID string, req EnterQuantityRequest) (*PickSession, error)
	SweepExpired() int
}

type pickingService struct {
	waveRepo   repositories.WaveRepository
	ledgerRepo repositories.StockLedgerRepository
	auditRepo  repositories.AuditRepository
	waves      WaveService
	locker     locks.Locker
	store      *PickSessionStore
	db         *sql.DB
	ttl        time.Duration
	now        func() time.Time
	newID      func() string
}

// NewPickingService creates a new instance of PickingService.
func NewPickingService(
	wr repositories.WaveRepository,
	lr repositories.StockLedgerRepository,
	ar repositories.AuditRepository,
	waves WaveService,
	locker locks.Locker,
	store *PickSessionStore,
	db *sql.DB,
	ttl time.Duration,
) PickingService {
	return &pickingService{
		waveRepo:   wr,
		ledgerRepo: lr,
		auditRepo:  ar,
		waves:      waves,
		locker:     locker,
		store:      store,
		db:         db,
		ttl:        ttl,
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
}

func (s *pickingService) StartSession(ctx context.Context, actor models.Actor, req StartPickRequest) (*PickSession, error) {
	reference := strings.TrimSpace(req.OrderReference)
	if reference == "" {
		return nil, fmt.Errorf("%w: order_reference is required", ErrValidation)
	}
	candidates, err := s.waveRepo.FindPickableWaveOrders(ctx, reference)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %s is not waiting in an open wave", ErrWaveOrderNotFound, reference)
	}
	wo := candidates[0]

	batches, err := s.ledgerRepo.GetBatches(ctx, s.db, wo.SKU)
	if err != nil {
		return nil, err
	}
	session := newPickSession(s.newID(), wo, planPickLines(wo.Quantity, batches), actor, s.now(), s.ttl)
	if err := s.store.add(session); err != nil {
		return nil, err
	}
	utils.LogDebug("Picking session started", map[string]interface{}{"session_id": session.ID, "reference": reference, "lines": len(session.Lines)})
	return session.clone(), nil
}

func (s *pickingService) GetSession(ctx context.Context, sessionID string) (*PickSession, error) {
	var out *PickSession
	err := s.store.with(sessionID, s.now(), func(session *PickSession) error {
		out = session.clone()
		return nil
	})
	return out, err
}

func (s *pickingService) ScanLocation(ctx context.Context, sessionID string, req ScanLocationRequest) (*PickSession, error) {
	var out *PickSession
	err := s.store.with(sessionID, s.now(), func(session *PickSession) error {
		if err := session.ScanLocation(req.Location); err != nil {
			return err
		}
		out = session.clone()
		return nil
	})
	return out, err
}

func (s *pickingService) ScanProduct(ctx context.Context, sessionID string, req ScanProductRequest) (*PickSession, error) {
	var out *PickSession
	err := s.store.with(sessionID, s.now(), func(session *PickSession) error {
		if err := session.ScanProduct(req.Barcode); err != nil {
			return err
		}
		out = session.clone()
		return nil
	})
	return out, err
}

func (s *pickingService) EnterQuantity(ctx context.Context, actor models.Actor, sessionID string, req EnterQuantityRequest) (*PickSession, error) {
	if req.Quantity == nil {
		return nil, fmt.Errorf("%w: quantity is required", ErrValidation)
	}
	var out *PickSession
	err := s.store.with(sessionID, s.now(), func(session *PickSession) error {
		before := session.clone()
		outcome, err := session.EnterQuantity(*req.Quantity)
		if err != nil {
			return err
		}

		switch outcome {
		case PickOutcomeShort:
			err = s.shortPick(ctx, actor, session)
		case PickOutcomeComplete:
			err = s.commitPick(ctx, actor, session)
		}
		if err != nil {
			*session = *before
			return err
		}
		out = session.clone()
		return nil
	})
	return out, err
}

// shortPick sends the order back to the queue as out of stock. No issue document is written.
func (s *pickingService) shortPick(ctx context.Context, actor models.Actor, session *PickSession) error {
	_, err := s.waves.MarkWaveOrderOutOfStock(ctx, actor, session.WaveID, session.WaveOrderID, map[string]interface{}{
		"picked":     session.PickedTotal(),
		"required":   session.Required,
		"session_id": session.ID,
	})
	if err != nil {
		return err
	}
	metrics.PickOutcomesTotal.WithLabelValues("short").Inc()
	utils.LogInfo("Short pick, order marked out of stock", map[string]interface{}{
		"reference": session.Reference, "picked": session.PickedTotal(), "required": session.Required,
	})
	return nil
}

// commitPick writes one issue document per line, stamps the wave-order picked and
// closes the wave once nothing is left to pick.
func (s *pickingService) commitPick(ctx context.Context, actor models.Actor, session *PickSession) error {
	release, err := obtainWaveLock(ctx, s.locker, session.WaveID)
	if err != nil {
		return err
	}
	defer release()

	now := s.now()
	var docs []models.StockDocument
	waveDone := false
	err = withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := s.waveRepo.LockWave(ctx, tx, session.WaveID); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrWaveNotFound
			}
			return err
		}
		matches, err := s.waveRepo.FindWaveOrders(ctx, tx, session.WaveID, session.Reference)
		if err != nil {
			return err
		}
		found := false
		for _, wo := range matches {
			if wo.ID == session.WaveOrderID && wo.PickedAt == nil {
				found = true
			}
		}
		if !found {
			return fmt.Errorf("%w: %s is no longer pickable in wave %d", ErrWaveOrderNotFound, session.Reference, session.WaveID)
		}

		if err := s.ledgerRepo.LockSKU(ctx, tx, session.SKU); err != nil {
			return err
		}
		batches, err := s.ledgerRepo.GetBatches(ctx, tx, session.SKU)
		if err != nil {
			return err
		}
		if err := checkLinesCovered(session.Lines, batches); err != nil {
			return err
		}

		reference := session.Reference
		waveOrderID := session.WaveOrderID
		for _, line := range session.Lines {
			number, err := s.ledgerRepo.NextDocumentNumber(ctx, tx, utils.DocPrefixOrderIssue, now.Year())
			if err != nil {
				return err
			}
			doc := models.StockDocument{
				DocumentNumber: number,
				SKU:            line.SKU,
				Barcode:        line.Barcode,
				ExpiryDate:     line.ExpiryDate,
				Location:       line.Location,
				Quantity:       line.Picked,
				Status:         models.StatusIssueOrder,
				ValidatedBy:    actor.DisplayName(),
				OrderReference: &reference,
				WaveOrderID:    &waveOrderID,
				CreatedAt:      now,
			}
			if _, err := s.ledgerRepo.CreateDocument(ctx, tx, &doc); err != nil {
				return err
			}
			docs = append(docs, doc)
		}

		if err := s.waveRepo.MarkWaveOrderPicked(ctx, tx, session.WaveOrderID, now); err != nil {
			return err
		}
		unpicked, err := s.waveRepo.CountUnpickedWaveOrders(ctx, tx, session.WaveID)
		if err != nil {
			return err
		}
		if unpicked == 0 {
			if err := s.waveRepo.UpdateWaveStatus(ctx, tx, session.WaveID, models.WaveStatusDone, now); err != nil {
				return err
			}
			waveDone = true
		}
		return writeAudit(ctx, s.auditRepo, tx, actor, models.AuditActionOrderPicked, "order", reference,
			map[string]interface{}{"wave_id": session.WaveID, "documents": len(docs), "quantity": session.PickedTotal(), "wave_done": waveDone})
	})
	if err != nil {
		return err
	}
	session.Documents = docs
	metrics.PickOutcomesTotal.WithLabelValues("picked").Inc()
	utils.LogInfo("Order picked", map[string]interface{}{"reference": session.Reference, "wave_id": session.WaveID, "wave_done": waveDone})
	return nil
}

// checkLinesCovered fails when a batch no longer holds what the plan takes from it.
func checkLinesCovered(lines []PickLine, batches []models.StockBatch) error {
	for i, line := range lines {
		needed := 0
		for _, other := range lines {
			if batchOf(other) == batchOf(line) {
				needed += other.Picked
			}
		}
		if onHandFor(batches, line.SKU, line.Barcode, line.Location, line.ExpiryDate) < needed {
			return fmt.Errorf("%w: %s at %s (line %d)", ErrInsufficientStock, line.SKU, line.Location, i+1)
		}
	}
	return nil
}

func batchOf(l PickLine) string {
	expiry := ""
	if l.ExpiryDate != nil {
		expiry = l.ExpiryDate.Format("2006-01-02")
	}
	return l.SKU + "|" + l.Barcode + "|" + l.Location + "|" + expiry
}

func (s *pickingService) SweepExpired() int {
	return s.store.Sweep(s.now())
}
