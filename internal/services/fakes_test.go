package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"marketplace_ops_backend/internal/locks"
	"marketplace_ops_backend/internal/models"
	"marketplace_ops_backend/internal/repositories"
	"marketplace_ops_backend/pkg/utils"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

var (
	testNow        = time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC)
	testSupervisor = models.Actor{UserID: 1, Username: "sup", FullName: "Dana Supervisor", Role: models.RoleSupervisor}
	testPicker     = models.Actor{UserID: 2, Username: "picker", Role: models.RolePicker}
	testPacker     = models.Actor{UserID: 3, Username: "packer", FullName: "Pat Packer", Role: models.RolePacker}
)

// memStore is an in-memory stand-in for the wave, order, ledger and audit tables.
// Executors are ignored; transactions are asserted through sqlmock.
type memStore struct {
	mu         sync.Mutex
	orders     map[int64]models.Order
	waves      map[int64]models.Wave
	waveOrders []models.WaveOrder
	docs       []models.StockDocument
	audit      []models.AuditLog
	nextID     int64
}

var (
	_ repositories.WaveRepository        = (*memStore)(nil)
	_ repositories.OrderRepository       = (*memStore)(nil)
	_ repositories.StockLedgerRepository = (*memStore)(nil)
	_ repositories.AuditRepository       = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{
		orders: map[int64]models.Order{},
		waves:  map[int64]models.Wave{},
		nextID: 100,
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

// --- seeding helpers ---

func (m *memStore) seedOrder(o models.Order) models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == 0 {
		o.ID = m.id()
	}
	if o.Status == "" {
		o.Status = models.OrderStatusPaymentAccepted
	}
	m.orders[o.ID] = o
	return o
}

func (m *memStore) seedWave(status string) models.Wave {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := models.Wave{ID: m.id(), DocumentNumber: "MP-WAV-2025-00001", WaveType: "Standard", Status: status, CreatedAt: testNow.Add(-time.Hour)}
	m.waves[w.ID] = w
	return w
}

func (m *memStore) seedWaveOrder(waveID int64, o models.Order, picked bool) models.WaveOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == 0 {
		o.ID = m.id()
	}
	wo := models.NewWaveOrder(waveID, o, "A-01", testNow.Add(-time.Hour))
	wo.ID = m.id()
	if picked {
		at := testNow.Add(-30 * time.Minute)
		wo.PickedAt = &at
	}
	m.waveOrders = append(m.waveOrders, wo)
	return wo
}

func (m *memStore) seedDoc(d models.StockDocument) models.StockDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = m.id()
	if d.DocumentNumber == "" {
		d.DocumentNumber = utils.FormatDocumentNumber(utils.DocPrefixManual, testNow.Year(), int(d.ID))
	}
	m.docs = append(m.docs, d)
	return d
}

func (m *memStore) receipt(sku, barcode, location string, expiry *time.Time, qty int) models.StockDocument {
	return m.seedDoc(models.StockDocument{
		SKU: sku, Barcode: barcode, Location: location, ExpiryDate: expiry, Quantity: qty,
		Status: models.StatusReceiptInbound, ValidatedBy: "seed",
	})
}

func (m *memStore) issue(reference, sku, barcode, location string, qty int) models.StockDocument {
	ref := reference
	return m.seedDoc(models.StockDocument{
		SKU: sku, Barcode: barcode, Location: location, Quantity: qty,
		Status: models.StatusIssueOrder, ValidatedBy: "seed", OrderReference: &ref,
	})
}

// pickedIssue seeds the issue document commitPick writes for wo.
func (m *memStore) pickedIssue(wo models.WaveOrder, barcode, location string, qty int) models.StockDocument {
	ref, waveOrderID := wo.Reference, wo.ID
	return m.seedDoc(models.StockDocument{
		SKU: wo.SKU, Barcode: barcode, Location: location, Quantity: qty,
		Status: models.StatusIssueOrder, ValidatedBy: "seed", OrderReference: &ref, WaveOrderID: &waveOrderID,
	})
}

func (m *memStore) docsWithStatus(status models.LedgerStatus) []models.StockDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.StockDocument{}
	for _, d := range m.docs {
		if d.Status == status {
			out = append(out, d)
		}
	}
	return out
}

func (m *memStore) auditActions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []string{}
	for _, a := range m.audit {
		out = append(out, a.Action)
	}
	return out
}

func (m *memStore) reversedLocked(id int64) bool {
	for _, d := range m.docs {
		if d.SourceDocumentID != nil && *d.SourceDocumentID == id {
			return true
		}
	}
	return false
}

// --- WaveRepository ---

func (m *memStore) NextWaveNumber(ctx context.Context, executor repositories.SQLExecutor, year int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	last := ""
	for _, w := range m.waves {
		if _, err := utils.ParseDocumentSequence(w.DocumentNumber, utils.DocPrefixWave, year); err == nil && w.DocumentNumber > last {
			last = w.DocumentNumber
		}
	}
	return utils.NextDocumentNumber(utils.DocPrefixWave, year, last)
}

func (m *memStore) CreateWave(ctx context.Context, executor repositories.SQLExecutor, wave *models.Wave) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wave.ID = m.id()
	m.waves[wave.ID] = *wave
	return wave.ID, nil
}

func (m *memStore) waveLocked(id int64) (*models.Wave, error) {
	w, ok := m.waves[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	w.TotalOrders = 0
	for _, wo := range m.waveOrders {
		if wo.WaveID == id {
			w.TotalOrders++
		}
	}
	return &w, nil
}

func (m *memStore) GetWaveByID(ctx context.Context, waveID int64) (*models.Wave, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waveLocked(waveID)
}

func (m *memStore) LockWave(ctx context.Context, executor repositories.SQLExecutor, waveID int64) (*models.Wave, error) {
	return m.GetWaveByID(ctx, waveID)
}

func (m *memStore) GetWaves(ctx context.Context, filters models.WaveFilters) ([]models.Wave, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Wave{}
	for id := range m.waves {
		w, _ := m.waveLocked(id)
		if filters.Status != nil && *filters.Status != "" && w.Status != *filters.Status {
			continue
		}
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (m *memStore) UpdateWaveStatus(ctx context.Context, executor repositories.SQLExecutor, waveID int64, status string, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.waves[waveID]
	if !ok {
		return repositories.ErrNotFound
	}
	w.Status = status
	w.UpdatedAt = updatedAt
	m.waves[waveID] = w
	return nil
}

func (m *memStore) DeleteWave(ctx context.Context, executor repositories.SQLExecutor, waveID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.waves[waveID]; !ok {
		return 0, repositories.ErrNotFound
	}
	delete(m.waves, waveID)
	kept := m.waveOrders[:0]
	for _, wo := range m.waveOrders {
		if wo.WaveID != waveID {
			kept = append(kept, wo)
		}
	}
	m.waveOrders = kept
	return 1, nil
}

func (m *memStore) CreateWaveOrder(ctx context.Context, executor repositories.SQLExecutor, waveOrder *models.WaveOrder) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	waveOrder.ID = m.id()
	m.waveOrders = append(m.waveOrders, *waveOrder)
	return waveOrder.ID, nil
}

func (m *memStore) filterWaveOrders(keep func(wo models.WaveOrder) bool) []models.WaveOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.WaveOrder{}
	for _, wo := range m.waveOrders {
		if keep(wo) {
			out = append(out, wo)
		}
	}
	return out
}

func (m *memStore) GetWaveOrders(ctx context.Context, executor repositories.SQLExecutor, waveID int64) ([]models.WaveOrder, error) {
	return m.filterWaveOrders(func(wo models.WaveOrder) bool { return wo.WaveID == waveID }), nil
}

func (m *memStore) FindWaveOrders(ctx context.Context, executor repositories.SQLExecutor, waveID int64, reference string) ([]models.WaveOrder, error) {
	return m.filterWaveOrders(func(wo models.WaveOrder) bool { return wo.WaveID == waveID && wo.Reference == reference }), nil
}

func (m *memStore) FindPickableWaveOrders(ctx context.Context, reference string) ([]models.WaveOrder, error) {
	m.mu.Lock()
	waves := map[int64]models.Wave{}
	for id, w := range m.waves {
		waves[id] = w
	}
	m.mu.Unlock()
	return m.filterWaveOrders(func(wo models.WaveOrder) bool {
		w, ok := waves[wo.WaveID]
		return ok && w.Status == models.WaveStatusProgress && wo.Reference == reference && wo.PickedAt == nil
	}), nil
}

func (m *memStore) FindWaveOrdersByReference(ctx context.Context, reference string) ([]models.WaveOrder, error) {
	return m.filterWaveOrders(func(wo models.WaveOrder) bool { return wo.Reference == reference }), nil
}

func (m *memStore) MarkWaveOrderPicked(ctx context.Context, executor repositories.SQLExecutor, waveOrderID int64, pickedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.waveOrders {
		if m.waveOrders[i].ID == waveOrderID && m.waveOrders[i].PickedAt == nil {
			at := pickedAt
			m.waveOrders[i].PickedAt = &at
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (m *memStore) DeleteWaveOrder(ctx context.Context, executor repositories.SQLExecutor, waveOrderID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, wo := range m.waveOrders {
		if wo.ID == waveOrderID {
			m.waveOrders = append(m.waveOrders[:i], m.waveOrders[i+1:]...)
			return 1, nil
		}
	}
	return 0, repositories.ErrNotFound
}

func (m *memStore) CountWaveOrders(ctx context.Context, executor repositories.SQLExecutor, waveID int64) (int, error) {
	return len(m.filterWaveOrders(func(wo models.WaveOrder) bool { return wo.WaveID == waveID })), nil
}

func (m *memStore) CountUnpickedWaveOrders(ctx context.Context, executor repositories.SQLExecutor, waveID int64) (int, error) {
	return len(m.filterWaveOrders(func(wo models.WaveOrder) bool { return wo.WaveID == waveID && wo.PickedAt == nil })), nil
}

// --- OrderRepository ---

func (m *memStore) CreateOrder(ctx context.Context, executor repositories.SQLExecutor, order *models.Order) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order.ID = m.id()
	m.orders[order.ID] = *order
	return order.ID, nil
}

func (m *memStore) UpsertOrder(ctx context.Context, executor repositories.SQLExecutor, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.ID] = *order
	return nil
}

func (m *memStore) GetOrderByID(ctx context.Context, orderID int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &o, nil
}

func (m *memStore) GetOrdersForUpdate(ctx context.Context, executor repositories.SQLExecutor, orderIDs []int64) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Order{}
	for _, id := range orderIDs {
		if o, ok := m.orders[id]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memStore) GetOrders(ctx context.Context, filters models.OrderFilters) ([]models.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Order{}
	for _, o := range m.orders {
		if filters.Status != nil && *filters.Status != "" && o.Status != *filters.Status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memStore) FindOrdersByReference(ctx context.Context, reference string) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Order{}
	for _, o := range m.orders {
		if o.Reference == reference {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memStore) DeleteOrder(ctx context.Context, executor repositories.SQLExecutor, orderID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[orderID]; !ok {
		return 0, repositories.ErrNotFound
	}
	delete(m.orders, orderID)
	return 1, nil
}

func (m *memStore) DeleteOrders(ctx context.Context, executor repositories.SQLExecutor, orderIDs []int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, id := range orderIDs {
		if _, ok := m.orders[id]; ok {
			delete(m.orders, id)
			n++
		}
	}
	return n, nil
}

// --- StockLedgerRepository ---

func (m *memStore) NextDocumentNumber(ctx context.Context, executor repositories.SQLExecutor, prefix string, year int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	last := ""
	for _, d := range m.docs {
		if _, err := utils.ParseDocumentSequence(d.DocumentNumber, prefix, year); err == nil && d.DocumentNumber > last {
			last = d.DocumentNumber
		}
	}
	return utils.NextDocumentNumber(prefix, year, last)
}

func (m *memStore) LockSKU(ctx context.Context, executor repositories.SQLExecutor, sku string) error {
	return nil
}

func (m *memStore) CreateDocument(ctx context.Context, executor repositories.SQLExecutor, doc *models.StockDocument) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.DocumentNumber == doc.DocumentNumber {
			return 0, repositories.ErrDuplicateKey
		}
	}
	doc.ID = m.id()
	m.docs = append(m.docs, *doc)
	return doc.ID, nil
}

func (m *memStore) GetDocuments(ctx context.Context, filters models.StockDocumentFilters) ([]models.StockDocument, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]models.StockDocument(nil), m.docs...)
	return out, len(out), nil
}

func (m *memStore) GetDocumentsByReference(ctx context.Context, reference string) ([]models.StockDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.StockDocument{}
	for _, d := range m.docs {
		if d.OrderReference != nil && *d.OrderReference == reference {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memStore) FindOutstandingIssues(ctx context.Context, executor repositories.SQLExecutor, waveOrderIDs []int64) ([]models.StockDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := map[int64]bool{}
	for _, id := range waveOrderIDs {
		wanted[id] = true
	}
	out := []models.StockDocument{}
	for _, d := range m.docs {
		if d.Status == models.StatusIssueOrder && d.WaveOrderID != nil && wanted[*d.WaveOrderID] && !m.reversedLocked(d.ID) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memStore) FindPendingPacking(ctx context.Context, executor repositories.SQLExecutor, reference string) ([]models.StockDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.StockDocument{}
	for _, d := range m.docs {
		if d.Status == models.StatusIssueOrder && d.OrderReference != nil && *d.OrderReference == reference &&
			d.PackerName == nil && !m.reversedLocked(d.ID) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memStore) MarkPacked(ctx context.Context, executor repositories.SQLExecutor, reference, packerName string) ([]models.StockDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.StockDocument{}
	for i, d := range m.docs {
		if d.Status == models.StatusIssueOrder && d.OrderReference != nil && *d.OrderReference == reference &&
			d.PackerName == nil && !m.reversedLocked(d.ID) {
			packer, shipping := packerName, models.ShippingStatusPacked
			m.docs[i].PackerName = &packer
			m.docs[i].ShippingStatus = &shipping
			out = append(out, m.docs[i])
		}
	}
	return out, nil
}

func (m *memStore) UpdateShippingStatus(ctx context.Context, executor repositories.SQLExecutor, reference, from, to string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i, d := range m.docs {
		if d.Status == models.StatusIssueOrder && d.OrderReference != nil && *d.OrderReference == reference &&
			d.ShippingStatus != nil && *d.ShippingStatus == from && !m.reversedLocked(d.ID) {
			next := to
			m.docs[i].ShippingStatus = &next
			n++
		}
	}
	return n, nil
}

func (m *memStore) GetBatches(ctx context.Context, executor repositories.SQLExecutor, sku string) ([]models.StockBatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	batches := []models.StockBatch{}
	for _, d := range m.docs {
		if d.SKU != sku {
			continue
		}
		found := false
		for i := range batches {
			if batches[i].SameBatch(d.SKU, d.Barcode, d.Location, d.ExpiryDate) {
				batches[i].OnHand += d.SignedQuantity()
				found = true
				break
			}
		}
		if !found {
			batches = append(batches, models.StockBatch{
				SKU: d.SKU, Barcode: d.Barcode, Location: d.Location, ExpiryDate: d.ExpiryDate, OnHand: d.SignedQuantity(),
			})
		}
	}
	out := []models.StockBatch{}
	for _, b := range batches {
		if b.OnHand > 0 {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].ExpiryDate, out[j].ExpiryDate
		switch {
		case a == nil && b == nil:
			return out[i].Location < out[j].Location
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return out, nil
}

// --- AuditRepository ---

func (m *memStore) CreateAuditLog(ctx context.Context, executor repositories.SQLExecutor, entry *models.AuditLog) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = m.id()
	m.audit = append(m.audit, *entry)
	return entry.ID, nil
}

func (m *memStore) GetAuditLogs(ctx context.Context, filters models.AuditLogFilters) ([]models.AuditLog, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]models.AuditLog(nil), m.audit...)
	return out, len(out), nil
}

// busyLocker never hands out a lock.
type busyLocker struct{}

func (busyLocker) Obtain(ctx context.Context, key string) (locks.Lock, error) {
	return nil, locks.ErrNotObtained
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func fixedNow() time.Time { return testNow }

func newTestWaveService(store *memStore, locker locks.Locker, db *sql.DB) *waveService {
	svc := NewWaveService(store, store, store, store, locker, db).(*waveService)
	svc.now = fixedNow
	return svc
}
