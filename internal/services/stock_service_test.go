package services

import (
	"context"
	"testing"

	"marketplace_ops_backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStockService(store *memStore, t *testing.T) (*stockService, func(commit bool)) {
	db, mock := newMockDB(t)
	svc := NewStockService(store, store, db).(*stockService)
	svc.now = fixedNow
	expectTx := func(commit bool) {
		mock.ExpectBegin()
		if commit {
			mock.ExpectCommit()
		} else {
			mock.ExpectRollback()
		}
	}
	t.Cleanup(func() { assert.NoError(t, mock.ExpectationsWereMet()) })
	return svc, expectTx
}

func TestCreateStockDocument(t *testing.T) {
	store := newMemStore()
	svc, expectTx := newTestStockService(store, t)
	ctx := context.Background()

	expectTx(true)
	expiry := "2025-12-31"
	doc, err := svc.CreateDocument(ctx, testSupervisor, CreateStockDocumentRequest{
		SKU: "SKU-1", Barcode: "111", Location: "A-01", Quantity: 5, Status: "Receipt - Inbound", ExpiryDate: &expiry,
	})
	require.NoError(t, err)
	assert.Equal(t, "MP-DOC-2025-00001", doc.DocumentNumber)
	assert.Equal(t, models.StatusReceiptInbound, doc.Status)
	require.NotNil(t, doc.ExpiryDate)
	assert.Equal(t, 2025, doc.ExpiryDate.Year())

	expectTx(false)
	_, err = svc.CreateDocument(ctx, testSupervisor, CreateStockDocumentRequest{
		SKU: "SKU-1", Barcode: "111", Location: "A-01", Quantity: 6, Status: "Issue - Damaged", ExpiryDate: &expiry,
	})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	expectTx(true)
	issued, err := svc.CreateDocument(ctx, testSupervisor, CreateStockDocumentRequest{
		SKU: "SKU-1", Barcode: "111", Location: "A-01", Quantity: 5, Status: "Issue - Damaged", ExpiryDate: &expiry,
	})
	require.NoError(t, err)
	assert.Equal(t, "MP-DOC-2025-00002", issued.DocumentNumber)

	expectTx(false)
	number := "MP-DOC-2025-00002"
	_, err = svc.CreateDocument(ctx, testSupervisor, CreateStockDocumentRequest{
		DocumentNumber: &number, SKU: "SKU-1", Location: "A-01", Quantity: 1, Status: "Receipt - Adjustment",
	})
	assert.ErrorIs(t, err, ErrDocumentExists)

	assert.Equal(t, []string{models.AuditActionDocumentAppended, models.AuditActionDocumentAppended}, store.auditActions())
}

func TestCreateStockDocumentValidation(t *testing.T) {
	svc, _ := newTestStockService(newMemStore(), t)
	ctx := context.Background()

	_, err := svc.CreateDocument(ctx, testSupervisor, CreateStockDocumentRequest{SKU: "SKU-1", Location: "A-01", Quantity: 1, Status: "Receipt - Order"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateDocument(ctx, testSupervisor, CreateStockDocumentRequest{SKU: "SKU-1", Location: "A-01", Quantity: 0, Status: "Receipt - Inbound"})
	assert.ErrorIs(t, err, ErrValidation)

	bad := "31/12/2025"
	_, err = svc.CreateDocument(ctx, testSupervisor, CreateStockDocumentRequest{SKU: "SKU-1", Location: "A-01", Quantity: 1, Status: "Receipt - Inbound", ExpiryDate: &bad})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateShippingStatus(t *testing.T) {
	store := newMemStore()
	issue := store.issue("REF-1", "SKU-1", "111", "A-01", 1)
	packed := models.ShippingStatusPacked
	store.docs[len(store.docs)-1].ShippingStatus = &packed
	svc, expectTx := newTestStockService(store, t)
	ctx := context.Background()

	_, err := svc.UpdateShippingStatus(ctx, testPacker, UpdateShippingStatusRequest{OrderReference: "REF-1", ShippingStatus: models.ShippingStatusPacked})
	assert.ErrorIs(t, err, ErrInvalidShipping)

	expectTx(false)
	_, err = svc.UpdateShippingStatus(ctx, testPacker, UpdateShippingStatusRequest{OrderReference: "REF-1", ShippingStatus: models.ShippingStatusDelivered})
	assert.ErrorIs(t, err, ErrInvalidShipping)

	expectTx(true)
	result, err := svc.UpdateShippingStatus(ctx, testPacker, UpdateShippingStatusRequest{OrderReference: "REF-1", ShippingStatus: models.ShippingStatusShipped})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Updated)

	expectTx(true)
	_, err = svc.UpdateShippingStatus(ctx, testPacker, UpdateShippingStatusRequest{OrderReference: "REF-1", ShippingStatus: models.ShippingStatusDelivered})
	require.NoError(t, err)

	docs, err := store.GetDocumentsByReference(ctx, "REF-1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, issue.ID, docs[0].ID)
	assert.Equal(t, models.ShippingStatusDelivered, *docs[0].ShippingStatus)
}

func TestGetBatchProductsRequiresSKU(t *testing.T) {
	store := newMemStore()
	store.receipt("SKU-1", "111", "A-01", nil, 4)
	svc, _ := newTestStockService(store, t)

	_, err := svc.GetBatchProducts(context.Background(), " ")
	assert.ErrorIs(t, err, ErrValidation)

	batches, err := svc.GetBatchProducts(context.Background(), "SKU-1")
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, 4, batches[0].OnHand)
}
