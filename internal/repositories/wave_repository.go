package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace_ops_backend/internal/models"
	"marketplace_ops_backend/pkg/utils"
)

// WaveRepository defines the database operations on waves and their orders.
type WaveRepository interface {
	NextWaveNumber(ctx context.Context, executor SQLExecutor, year int) (string, error)
	CreateWave(ctx context.Context, executor SQLExecutor, wave *models.Wave) (int64, error)
	GetWaveByID(ctx context.Context, waveID int64) (*models.Wave, error)
	// LockWave reads the wave with SELECT ... FOR UPDATE inside the caller's transaction.
	LockWave(ctx context.Context, executor SQLExecutor, waveID int64) (*models.Wave, error)
	GetWaves(ctx context.Context, filters models.WaveFilters) ([]models.Wave, int, error)
	UpdateWaveStatus(ctx context.Context, executor SQLExecutor, waveID int64, status string, updatedAt time.Time) error
	DeleteWave(ctx context.Context, executor SQLExecutor, waveID int64) (int64, error)

	CreateWaveOrder(ctx context.Context, executor SQLExecutor, waveOrder *models.WaveOrder) (int64, error)
	GetWaveOrders(ctx context.Context, executor SQLExecutor, waveID int64) ([]models.WaveOrder, error)
	FindWaveOrders(ctx context.Context, executor SQLExecutor, waveID int64, reference string) ([]models.WaveOrder, error)
	// FindPickableWaveOrders returns unpicked wave orders with reference in waves still in progress.
	FindPickableWaveOrders(ctx context.Context, reference string) ([]models.WaveOrder, error)
	FindWaveOrdersByReference(ctx context.Context, reference string) ([]models.WaveOrder, error)
	MarkWaveOrderPicked(ctx context.Context, executor SQLExecutor, waveOrderID int64, pickedAt time.Time) error
	DeleteWaveOrder(ctx context.Context, executor SQLExecutor, waveOrderID int64) (int64, error)
	CountWaveOrders(ctx context.Context, executor SQLExecutor, waveID int64) (int, error)
	CountUnpickedWaveOrders(ctx context.Context, executor SQLExecutor, waveID int64) (int, error)
}

type waveRepository struct {
	db *sql.DB
}

// NewWaveRepository creates a new instance of WaveRepository.
func NewWaveRepository(db *sql.DB) WaveRepository {
	return &waveRepository{db: db}
}

// total_orders is derived from wave_orders on every read.
const waveSelect = `SELECT w.id, w.document_number, w.wave_type, w.status, w.created_by, w.created_at, w.updated_at,
	(SELECT COUNT(*) FROM wave_orders wo WHERE wo.wave_id = w.id) AS total_orders
	FROM waves w`

func scanWave(row scanner, w *models.Wave, extra ...interface{}) error {
	dest := []interface{}{&w.ID, &w.DocumentNumber, &w.WaveType, &w.Status, &w.CreatedBy, &w.CreatedAt, &w.UpdatedAt, &w.TotalOrders}
	return row.Scan(append(dest, extra...)...)
}

const waveOrderColumns = `id, wave_id, order_id, reference, sku, quantity, customer_name, phone, address, city,
	delivery_type, store_name, location, order_date, picked_at, created_at`

func scanWaveOrder(row scanner, wo *models.WaveOrder) error {
	return row.Scan(
		&wo.ID, &wo.WaveID, &wo.OrderID, &wo.Reference, &wo.SKU, &wo.Quantity, &wo.CustomerName, &wo.Phone,
		&wo.Address, &wo.City, &wo.DeliveryType, &wo.StoreName, &wo.Location, &wo.OrderDate, &wo.PickedAt, &wo.CreatedAt,
	)
}

func (r *waveRepository) NextWaveNumber(ctx context.Context, executor SQLExecutor, year int) (string, error) {
	if err := advisoryLock(ctx, executor, fmt.Sprintf("%s-%d", utils.DocPrefixWave, year)); err != nil {
		return "", err
	}
	last, err := lastDocumentNumber(ctx, executor, "waves", utils.DocumentNumberPattern(utils.DocPrefixWave, year))
	if err != nil {
		return "", err
	}
	return utils.NextDocumentNumber(utils.DocPrefixWave, year, last)
}

func (r *waveRepository) CreateWave(ctx context.Context, executor SQLExecutor, wave *models.Wave) (int64, error) {
	query := `INSERT INTO waves (document_number, wave_type, status, created_by, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING id`
	now := time.Now()
	if wave.CreatedAt.IsZero() {
		wave.CreatedAt = now
	}
	if wave.UpdatedAt.IsZero() {
		wave.UpdatedAt = now
	}
	err := executor.QueryRowContext(ctx, query,
		wave.DocumentNumber, wave.WaveType, wave.Status, wave.CreatedBy, wave.CreatedAt, wave.UpdatedAt,
	).Scan(&wave.ID)
	if err != nil {
		return 0, wrapWriteError(err, "creating wave")
	}
	return wave.ID, nil
}

func (r *waveRepository) GetWaveByID(ctx context.Context, waveID int64) (*models.Wave, error) {
	wave := &models.Wave{}
	if err := scanWave(r.db.QueryRowContext(ctx, waveSelect+` WHERE w.id = $1`, waveID), wave); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting wave by ID %d: %v", ErrDatabaseError, waveID, err)
	}
	return wave, nil
}

func (r *waveRepository) LockWave(ctx context.Context, executor SQLExecutor, waveID int64) (*models.Wave, error) {
	wave := &models.Wave{}
	query := `SELECT id, document_number, wave_type, status, created_by, created_at, updated_at
	          FROM waves WHERE id = $1 FOR UPDATE`
	err := executor.QueryRowContext(ctx, query, waveID).Scan(
		&wave.ID, &wave.DocumentNumber, &wave.WaveType, &wave.Status, &wave.CreatedBy, &wave.CreatedAt, &wave.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: locking wave ID %d: %v", ErrDatabaseError, waveID, err)
	}
	count, err := r.CountWaveOrders(ctx, executor, waveID)
	if err != nil {
		return nil, err
	}
	wave.TotalOrders = count
	return wave, nil
}

func (r *waveRepository) GetWaves(ctx context.Context, filters models.WaveFilters) ([]models.Wave, int, error) {
	waves := []models.Wave{}
	totalCount := 0

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT w.id, w.document_number, w.wave_type, w.status, w.created_by, w.created_at, w.updated_at,
	    (SELECT COUNT(*) FROM wave_orders wo WHERE wo.wave_id = w.id) AS total_orders,
	    COUNT(*) OVER() AS total_count
	  FROM waves w`)

	var args []interface{}
	argCounter := 1
	if filters.Status != nil && *filters.Status != "" {
		queryBuilder.WriteString(fmt.Sprintf(" WHERE w.status = $%d", argCounter))
		args = append(args, *filters.Status)
		argCounter++
	}
	limit, offset := pageOffset(filters.Page, filters.PageSize)
	queryBuilder.WriteString(fmt.Sprintf(" ORDER BY w.created_at DESC, w.id DESC LIMIT $%d OFFSET $%d", argCounter, argCounter+1))
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: querying waves: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var w models.Wave
		if err := scanWave(rows, &w, &totalCount); err != nil {
			return nil, 0, fmt.Errorf("%w: scanning wave: %v", ErrDatabaseError, err)
		}
		waves = append(waves, w)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterating wave rows: %v", ErrDatabaseError, err)
	}
	return waves, totalCount, nil
}

func (r *waveRepository) UpdateWaveStatus(ctx context.Context, executor SQLExecutor, waveID int64, status string, updatedAt time.Time) error {
	result, err := executor.ExecContext(ctx, `UPDATE waves SET status = $1, updated_at = $2 WHERE id = $3`, status, updatedAt, waveID)
	if err != nil {
		return fmt.Errorf("%w: updating wave status for ID %d: %v", ErrDatabaseError, waveID, err)
	}
	n, err := rowsAffected(result, "wave status update")
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *waveRepository) DeleteWave(ctx context.Context, executor SQLExecutor, waveID int64) (int64, error) {
	result, err := executor.ExecContext(ctx, `DELETE FROM waves WHERE id = $1`, waveID)
	if err != nil {
		return 0, fmt.Errorf("%w: deleting wave ID %d: %v", ErrDatabaseError, waveID, err)
	}
	n, err := rowsAffected(result, "deleting wave")
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

func (r *waveRepository) CreateWaveOrder(ctx context.Context, executor SQLExecutor, wo *models.WaveOrder) (int64, error) {
	query := `INSERT INTO wave_orders
	            (wave_id, order_id, reference, sku, quantity, customer_name, phone, address, city,
	             delivery_type, store_name, location, order_date, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	          RETURNING id`
	if wo.CreatedAt.IsZero() {
		wo.CreatedAt = time.Now()
	}
	err := executor.QueryRowContext(ctx, query,
		wo.WaveID, wo.OrderID, wo.Reference, wo.SKU, wo.Quantity, wo.CustomerName, wo.Phone, wo.Address, wo.City,
		wo.DeliveryType, wo.StoreName, wo.Location, wo.OrderDate, wo.CreatedAt,
	).Scan(&wo.ID)
	if err != nil {
		return 0, wrapWriteError(err, "creating wave order")
	}
	return wo.ID, nil
}

func (r *waveRepository) GetWaveOrders(ctx context.Context, executor SQLExecutor, waveID int64) ([]models.WaveOrder, error) {
	query := `SELECT ` + waveOrderColumns + ` FROM wave_orders WHERE wave_id = $1 ORDER BY id`
	return r.queryWaveOrders(ctx, executor, "getting wave orders", query, waveID)
}

func (r *waveRepository) FindWaveOrders(ctx context.Context, executor SQLExecutor, waveID int64, reference string) ([]models.WaveOrder, error) {
	query := `SELECT ` + waveOrderColumns + ` FROM wave_orders WHERE wave_id = $1 AND reference = $2 ORDER BY id`
	return r.queryWaveOrders(ctx, executor, "finding wave order", query, waveID, reference)
}

func (r *waveRepository) FindPickableWaveOrders(ctx context.Context, reference string) ([]models.WaveOrder, error) {
	query := `SELECT wo.id, wo.wave_id, wo.order_id, wo.reference, wo.sku, wo.quantity, wo.customer_name, wo.phone,
	                 wo.address, wo.city, wo.delivery_type, wo.store_name, wo.location, wo.order_date, wo.picked_at, wo.created_at
	          FROM wave_orders wo
	          JOIN waves w ON w.id = wo.wave_id
	          WHERE wo.reference = $1 AND wo.picked_at IS NULL AND w.status = $2
	          ORDER BY w.created_at, wo.id`
	return r.queryWaveOrders(ctx, r.db, "finding pickable wave orders", query, reference, models.WaveStatusProgress)
}

func (r *waveRepository) FindWaveOrdersByReference(ctx context.Context, reference string) ([]models.WaveOrder, error) {
	query := `SELECT ` + waveOrderColumns + ` FROM wave_orders WHERE reference = $1 ORDER BY id`
	return r.queryWaveOrders(ctx, r.db, "finding wave orders by reference", query, reference)
}

func (r *waveRepository) queryWaveOrders(ctx context.Context, executor SQLExecutor, op, query string, args ...interface{}) ([]models.WaveOrder, error) {
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDatabaseError, op, err)
	}
	defer rows.Close()

	waveOrders := []models.WaveOrder{}
	for rows.Next() {
		var wo models.WaveOrder
		if err := scanWaveOrder(rows, &wo); err != nil {
			return nil, fmt.Errorf("%w: scanning wave order: %v", ErrDatabaseError, err)
		}
		waveOrders = append(waveOrders, wo)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating wave order rows: %v", ErrDatabaseError, err)
	}
	return waveOrders, nil
}

func (r *waveRepository) MarkWaveOrderPicked(ctx context.Context, executor SQLExecutor, waveOrderID int64, pickedAt time.Time) error {
	result, err := executor.ExecContext(ctx,
		`UPDATE wave_orders SET picked_at = $1 WHERE id = $2 AND picked_at IS NULL`, pickedAt, waveOrderID)
	if err != nil {
		return fmt.Errorf("%w: marking wave order %d picked: %v", ErrDatabaseError, waveOrderID, err)
	}
	n, err := rowsAffected(result, "marking wave order picked")
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *waveRepository) DeleteWaveOrder(ctx context.Context, executor SQLExecutor, waveOrderID int64) (int64, error) {
	result, err := executor.ExecContext(ctx, `DELETE FROM wave_orders WHERE id = $1`, waveOrderID)
	if err != nil {
		return 0, fmt.Errorf("%w: deleting wave order %d: %v", ErrDatabaseError, waveOrderID, err)
	}
	n, err := rowsAffected(result, "deleting wave order")
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

func (r *waveRepository) CountWaveOrders(ctx context.Context, executor SQLExecutor, waveID int64) (int, error) {
	var count int
	if err := executor.QueryRowContext(ctx, `SELECT COUNT(*) FROM wave_orders WHERE wave_id = $1`, waveID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: counting wave orders for wave %d: %v", ErrDatabaseError, waveID, err)
	}
	return count, nil
}

func (r *waveRepository) CountUnpickedWaveOrders(ctx context.Context, executor SQLExecutor, waveID int64) (int, error) {
	var count int
	err := executor.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM wave_orders WHERE wave_id = $1 AND picked_at IS NULL`, waveID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%w: counting unpicked wave orders for wave %d: %v", ErrDatabaseError, waveID, err)
	}
	return count, nil
}
