package repositories

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"marketplace_ops_backend/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func TestNextWaveNumber(t *testing.T) {
	db, mock := newMock(t)
	repo := NewWaveRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtext($1))`)).
		WithArgs("MP-WAV-2025").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT document_number FROM waves\s+WHERE document_number LIKE \$1`).
		WithArgs("MP-WAV-2025-%").
		WillReturnRows(sqlmock.NewRows([]string{"document_number"}).AddRow("MP-WAV-2025-00009"))

	number, err := repo.NextWaveNumber(context.Background(), db, 2025)
	require.NoError(t, err)
	assert.Equal(t, "MP-WAV-2025-00010", number)
}

func TestNextDocumentNumberStartsTheYear(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStockLedgerRepository(db)

	mock.ExpectQuery(`SELECT document_number FROM product_out_documents`).
		WithArgs("MP-OTR-2026-%").
		WillReturnError(sql.ErrNoRows)

	number, err := repo.NextDocumentNumber(context.Background(), db, "MP-OTR", 2026)
	require.NoError(t, err)
	assert.Equal(t, "MP-OTR-2026-00001", number)
}

func TestLockWave(t *testing.T) {
	db, mock := newMock(t)
	repo := NewWaveRepository(db)
	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM waves WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "document_number", "wave_type", "status", "created_by", "created_at", "updated_at"}).
			AddRow(4, "MP-WAV-2025-00004", "Standard", models.WaveStatusProgress, "sup", now, now))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM wave_orders WHERE wave_id = $1`)).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	wave, err := repo.LockWave(context.Background(), db, 4)
	require.NoError(t, err)
	assert.Equal(t, 3, wave.TotalOrders)
	assert.Equal(t, models.WaveStatusProgress, wave.Status)

	mock.ExpectQuery(`FROM waves WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(5)).
		WillReturnError(sql.ErrNoRows)
	_, err = repo.LockWave(context.Background(), db, 5)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkWaveOrderPickedOnlyOnce(t *testing.T) {
	db, mock := newMock(t)
	repo := NewWaveRepository(db)
	now := time.Now()

	mock.ExpectExec(`UPDATE wave_orders SET picked_at = \$1 WHERE id = \$2 AND picked_at IS NULL`).
		WithArgs(now, int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE wave_orders SET picked_at`).
		WithArgs(now, int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkWaveOrderPicked(context.Background(), db, 8, now))
	assert.ErrorIs(t, repo.MarkWaveOrderPicked(context.Background(), db, 8, now), ErrNotFound)
}

func TestGetBatches(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStockLedgerRepository(db)
	expiry := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SUM\(CASE WHEN status LIKE 'Issue - %' THEN -quantity ELSE quantity END\) AS on_hand`).
		WithArgs("SKU-1").
		WillReturnRows(sqlmock.NewRows([]string{"sku", "barcode", "location", "expiry_date", "on_hand"}).
			AddRow("SKU-1", "111", "A-01", expiry, 4).
			AddRow("SKU-1", "111", "B-01", nil, 2))

	batches, err := repo.GetBatches(context.Background(), db, "SKU-1")
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, 4, batches[0].OnHand)
	require.NotNil(t, batches[0].ExpiryDate)
	assert.Nil(t, batches[1].ExpiryDate)
}

func TestFindOutstandingIssuesSkipsEmptyInput(t *testing.T) {
	db, _ := newMock(t)
	repo := NewStockLedgerRepository(db)

	docs, err := repo.FindOutstandingIssues(context.Background(), db, nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestCreateDocumentDuplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStockLedgerRepository(db)

	mock.ExpectQuery(`INSERT INTO product_out_documents`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "product_out_documents_document_number_key"})

	doc := &models.StockDocument{DocumentNumber: "MP-DOC-2025-00001", SKU: "SKU-1", Location: "A-01", Quantity: 1, Status: models.StatusReceiptInbound}
	_, err := repo.CreateDocument(context.Background(), db, doc)
	assert.ErrorIs(t, err, ErrDuplicateKey)

	mock.ExpectQuery(`INSERT INTO product_out_documents`).
		WillReturnError(errors.New("connection refused"))
	_, err = repo.CreateDocument(context.Background(), db, doc)
	assert.ErrorIs(t, err, ErrDatabaseError)
}

func TestUpdateShippingStatus(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStockLedgerRepository(db)

	mock.ExpectExec(`UPDATE product_out_documents d SET shipping_status = \$1`).
		WithArgs(models.ShippingStatusShipped, "REF-1", "Issue - Order", models.ShippingStatusPacked).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.UpdateShippingStatus(context.Background(), db, "REF-1", models.ShippingStatusPacked, models.ShippingStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestIntegrityCounts(t *testing.T) {
	db, mock := newMock(t)
	repo := NewIntegrityRepository(db)

	mock.ExpectQuery(`FROM manual_orders`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`product_out_documents`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	dup, err := repo.CountDuplicatedOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, dup)
	unreversed, err := repo.CountUnreversedQueuedIssues(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, unreversed)
}

func TestFindOutstandingIssuesByWaveOrder(t *testing.T) {
	db, mock := newMock(t)
	repo := NewStockLedgerRepository(db)
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE d.status = \$1 AND d.wave_order_id = ANY\(\$2\) AND NOT EXISTS`).
		WithArgs("Issue - Order", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "document_number", "sku", "barcode", "expiry_date", "location", "quantity", "status",
			"validated_by", "order_reference", "packer_name", "shipping_status", "wave_order_id", "source_document_id", "created_at"}).
			AddRow(11, "MP-OUT-2025-00003", "SKU-1", "111", nil, "A-01", 2, "Issue - Order", "picker", "REF-1", nil, nil, 7, nil, now))

	docs, err := repo.FindOutstandingIssues(context.Background(), db, []int64{7})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.NotNil(t, docs[0].WaveOrderID)
	assert.Equal(t, int64(7), *docs[0].WaveOrderID)
	assert.Equal(t, models.StatusIssueOrder, docs[0].Status)
}
