package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"marketplace_ops_backend/internal/models"
)

// IntegrityRepository runs read-only consistency probes across the queue, waves and ledger.
type IntegrityRepository interface {
	// CountDuplicatedOrders counts orders present both in the queue and in a wave.
	CountDuplicatedOrders(ctx context.Context) (int, error)
	// CountUnreversedQueuedIssues counts "Issue - Order" documents without reversal whose
	// reference sits in the queue and in no wave.
	CountUnreversedQueuedIssues(ctx context.Context) (int, error)
}

type integrityRepository struct {
	db *sql.DB
}

// NewIntegrityRepository creates a new instance of IntegrityRepository.
func NewIntegrityRepository(db *sql.DB) IntegrityRepository {
	return &integrityRepository{db: db}
}

func (r *integrityRepository) CountDuplicatedOrders(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM manual_orders mo JOIN wave_orders wo ON wo.order_id = mo.id`
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: counting duplicated orders: %v", ErrDatabaseError, err)
	}
	return count, nil
}

func (r *integrityRepository) CountUnreversedQueuedIssues(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM product_out_documents d
	          WHERE d.status = $1
	            AND EXISTS (SELECT 1 FROM manual_orders mo WHERE mo.reference = d.order_reference)
	            AND NOT EXISTS (SELECT 1 FROM wave_orders wo WHERE wo.reference = d.order_reference)
	            AND ` + notReversed
	if err := r.db.QueryRowContext(ctx, query, models.StatusIssueOrder.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: counting unreversed queued issues: %v", ErrDatabaseError, err)
	}
	return count, nil
}
