package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"marketplace_ops_backend/internal/models"
	"marketplace_ops_backend/pkg/utils"

	"github.com/lib/pq"
)

// StockLedgerRepository defines the database operations on the append-only stock ledger
// (product_out_documents).
type StockLedgerRepository interface {
	// NextDocumentNumber must be called inside a transaction; it holds a per prefix/year
	// advisory lock until the transaction ends.
	NextDocumentNumber(ctx context.Context, executor SQLExecutor, prefix string, year int) (string, error)
	// LockSKU serializes stock checks and issues for one sku until the transaction ends.
	LockSKU(ctx context.Context, executor SQLExecutor, sku string) error
	CreateDocument(ctx context.Context, executor SQLExecutor, doc *models.StockDocument) (int64, error)
	GetDocuments(ctx context.Context, filters models.StockDocumentFilters) ([]models.StockDocument, int, error)
	GetDocumentsByReference(ctx context.Context, reference string) ([]models.StockDocument, error)
	// FindOutstandingIssues returns "Issue - Order" documents picked for the wave-order rows that have no reversal yet.
	FindOutstandingIssues(ctx context.Context, executor SQLExecutor, waveOrderIDs []int64) ([]models.StockDocument, error)
	FindPendingPacking(ctx context.Context, executor SQLExecutor, reference string) ([]models.StockDocument, error)
	MarkPacked(ctx context.Context, executor SQLExecutor, reference, packerName string) ([]models.StockDocument, error)
	UpdateShippingStatus(ctx context.Context, executor SQLExecutor, reference, from, to string) (int64, error)
	GetBatches(ctx context.Context, executor SQLExecutor, sku string) ([]models.StockBatch, error)
}

type stockLedgerRepository struct {
	db *sql.DB
}

// NewStockLedgerRepository creates a new instance of StockLedgerRepository.
func NewStockLedgerRepository(db *sql.DB) StockLedgerRepository {
	return &stockLedgerRepository{db: db}
}

const stockDocumentColumns = `id, document_number, sku, barcode, expiry_date, location, quantity, status,
	validated_by, order_reference, packer_name, shipping_status, wave_order_id, source_document_id, created_at`

// notReversed matches documents (aliased d) that no reversal points at.
const notReversed = `NOT EXISTS (SELECT 1 FROM product_out_documents r WHERE r.source_document_id = d.id)`

func scanStockDocument(row scanner, d *models.StockDocument) error {
	return row.Scan(
		&d.ID, &d.DocumentNumber, &d.SKU, &d.Barcode, &d.ExpiryDate, &d.Location, &d.Quantity, &d.Status,
		&d.ValidatedBy, &d.OrderReference, &d.PackerName, &d.ShippingStatus, &d.WaveOrderID, &d.SourceDocumentID, &d.CreatedAt,
	)
}

func (r *stockLedgerRepository) NextDocumentNumber(ctx context.Context, executor SQLExecutor, prefix string, year int) (string, error) {
	if err := advisoryLock(ctx, executor, fmt.Sprintf("%s-%d", prefix, year)); err != nil {
		return "", err
	}
	last, err := lastDocumentNumber(ctx, executor, "product_out_documents", utils.DocumentNumberPattern(prefix, year))
	if err != nil {
		return "", err
	}
	return utils.NextDocumentNumber(prefix, year, last)
}

func (r *stockLedgerRepository) LockSKU(ctx context.Context, executor SQLExecutor, sku string) error {
	return advisoryLock(ctx, executor, "stock:"+sku)
}

func (r *stockLedgerRepository) CreateDocument(ctx context.Context, executor SQLExecutor, doc *models.StockDocument) (int64, error) {
	query := `INSERT INTO product_out_documents
	            (document_number, sku, barcode, expiry_date, location, quantity, status, validated_by,
	             order_reference, packer_name, shipping_status, wave_order_id, source_document_id, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	          RETURNING id`
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	err := executor.QueryRowContext(ctx, query,
		doc.DocumentNumber, doc.SKU, doc.Barcode, doc.ExpiryDate, doc.Location, doc.Quantity, doc.Status,
		doc.ValidatedBy, doc.OrderReference, doc.PackerName, doc.ShippingStatus, doc.WaveOrderID, doc.SourceDocumentID, doc.CreatedAt,
	).Scan(&doc.ID)
	if err != nil {
		return 0, wrapWriteError(err, "creating stock document")
	}
	return doc.ID, nil
}

func (r *stockLedgerRepository) GetDocuments(ctx context.Context, filters models.StockDocumentFilters) ([]models.StockDocument, int, error) {
	docs := []models.StockDocument{}
	totalCount := 0

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + stockDocumentColumns + `, COUNT(*) OVER() AS total_count FROM product_out_documents d`)

	var conditions []string
	var args []interface{}
	argCounter := 1

	if filters.OrderReference != nil && *filters.OrderReference != "" {
		conditions = append(conditions, fmt.Sprintf("d.order_reference = $%d", argCounter))
		args = append(args, *filters.OrderReference)
		argCounter++
	}
	if filters.Status != nil && *filters.Status != "" {
		conditions = append(conditions, fmt.Sprintf("d.status = $%d", argCounter))
		args = append(args, *filters.Status)
		argCounter++
	}
	if filters.SKU != nil && *filters.SKU != "" {
		conditions = append(conditions, fmt.Sprintf("d.sku = $%d", argCounter))
		args = append(args, *filters.SKU)
		argCounter++
	}
	if filters.PendingPacking {
		conditions = append(conditions, fmt.Sprintf("d.status = $%d AND d.packer_name IS NULL AND %s", argCounter, notReversed))
		args = append(args, models.StatusIssueOrder.String())
		argCounter++
	}

	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	limit, offset := pageOffset(filters.Page, filters.PageSize)
	queryBuilder.WriteString(fmt.Sprintf(" ORDER BY d.created_at DESC, d.id DESC LIMIT $%d OFFSET $%d", argCounter, argCounter+1))
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: querying stock documents: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var d models.StockDocument
		err := rows.Scan(
			&d.ID, &d.DocumentNumber, &d.SKU, &d.Barcode, &d.ExpiryDate, &d.Location, &d.Quantity, &d.Status,
			&d.ValidatedBy, &d.OrderReference, &d.PackerName, &d.ShippingStatus, &d.WaveOrderID, &d.SourceDocumentID, &d.CreatedAt,
			&totalCount,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: scanning stock document: %v", ErrDatabaseError, err)
		}
		docs = append(docs, d)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterating stock documents: %v", ErrDatabaseError, err)
	}
	return docs, totalCount, nil
}

func (r *stockLedgerRepository) GetDocumentsByReference(ctx context.Context, reference string) ([]models.StockDocument, error) {
	query := `SELECT ` + stockDocumentColumns + ` FROM product_out_documents d WHERE d.order_reference = $1 ORDER BY d.id`
	return r.queryDocuments(ctx, r.db, "getting documents by reference", query, reference)
}

func (r *stockLedgerRepository) FindOutstandingIssues(ctx context.Context, executor SQLExecutor, waveOrderIDs []int64) ([]models.StockDocument, error) {
	if len(waveOrderIDs) == 0 {
		return []models.StockDocument{}, nil
	}
	query := `SELECT ` + stockDocumentColumns + ` FROM product_out_documents d
	          WHERE d.status = $1 AND d.wave_order_id = ANY($2) AND ` + notReversed + `
	          ORDER BY d.id`
	return r.queryDocuments(ctx, executor, "finding outstanding issues", query, models.StatusIssueOrder.String(), pq.Array(waveOrderIDs))
}

func (r *stockLedgerRepository) FindPendingPacking(ctx context.Context, executor SQLExecutor, reference string) ([]models.StockDocument, error) {
	query := `SELECT ` + stockDocumentColumns + ` FROM product_out_documents d
	          WHERE d.status = $1 AND d.order_reference = $2 AND d.packer_name IS NULL AND ` + notReversed + `
	          ORDER BY d.id`
	return r.queryDocuments(ctx, executor, "finding documents pending packing", query, models.StatusIssueOrder.String(), reference)
}

func (r *stockLedgerRepository) MarkPacked(ctx context.Context, executor SQLExecutor, reference, packerName string) ([]models.StockDocument, error) {
	query := `UPDATE product_out_documents d SET packer_name = $1, shipping_status = $2
	          WHERE d.status = $3 AND d.order_reference = $4 AND d.packer_name IS NULL AND ` + notReversed + `
	          RETURNING ` + prefixColumns("d", stockDocumentColumns)
	return r.queryDocuments(ctx, executor, "marking documents packed", query,
		packerName, models.ShippingStatusPacked, models.StatusIssueOrder.String(), reference)
}

func (r *stockLedgerRepository) UpdateShippingStatus(ctx context.Context, executor SQLExecutor, reference, from, to string) (int64, error) {
	query := `UPDATE product_out_documents d SET shipping_status = $1
	          WHERE d.order_reference = $2 AND d.status = $3 AND d.shipping_status = $4 AND ` + notReversed
	result, err := executor.ExecContext(ctx, query, to, reference, models.StatusIssueOrder.String(), from)
	if err != nil {
		return 0, fmt.Errorf("%w: updating shipping status for %s: %v", ErrDatabaseError, reference, err)
	}
	return rowsAffected(result, "updating shipping status")
}

func (r *stockLedgerRepository) GetBatches(ctx context.Context, executor SQLExecutor, sku string) ([]models.StockBatch, error) {
	query := `SELECT sku, barcode, location, expiry_date,
	                 SUM(CASE WHEN status LIKE 'Issue - %' THEN -quantity ELSE quantity END) AS on_hand
	          FROM product_out_documents
	          WHERE sku = $1
	          GROUP BY sku, barcode, location, expiry_date
	          HAVING SUM(CASE WHEN status LIKE 'Issue - %' THEN -quantity ELSE quantity END) > 0
	          ORDER BY expiry_date ASC NULLS LAST, location, barcode`
	rows, err := executor.QueryContext(ctx, query, sku)
	if err != nil {
		return nil, fmt.Errorf("%w: getting batches for sku %s: %v", ErrDatabaseError, sku, err)
	}
	defer rows.Close()

	batches := []models.StockBatch{}
	for rows.Next() {
		var b models.StockBatch
		if err := rows.Scan(&b.SKU, &b.Barcode, &b.Location, &b.ExpiryDate, &b.OnHand); err != nil {
			return nil, fmt.Errorf("%w: scanning stock batch: %v", ErrDatabaseError, err)
		}
		batches = append(batches, b)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating stock batches: %v", ErrDatabaseError, err)
	}
	return batches, nil
}

func (r *stockLedgerRepository) queryDocuments(ctx context.Context, executor SQLExecutor, op, query string, args ...interface{}) ([]models.StockDocument, error) {
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDatabaseError, op, err)
	}
	defer rows.Close()

	docs := []models.StockDocument{}
	for rows.Next() {
		var d models.StockDocument
		if err := scanStockDocument(rows, &d); err != nil {
			return nil, fmt.Errorf("%w: scanning stock document: %v", ErrDatabaseError, err)
		}
		docs = append(docs, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating stock documents: %v", ErrDatabaseError, err)
	}
	return docs, nil
}

// prefixColumns qualifies a comma separated column list with alias.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
