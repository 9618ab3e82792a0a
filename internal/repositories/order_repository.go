package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace_ops_backend/internal/models"

	"github.com/lib/pq"
)

// OrderRepository defines the database operations on the free order queue (manual_orders).
type OrderRepository interface {
	CreateOrder(ctx context.Context, executor SQLExecutor, order *models.Order) (int64, error)
	// UpsertOrder writes the order under its own id, overwriting an existing row.
	UpsertOrder(ctx context.Context, executor SQLExecutor, order *models.Order) error
	GetOrderByID(ctx context.Context, orderID int64) (*models.Order, error)
	GetOrdersForUpdate(ctx context.Context, executor SQLExecutor, orderIDs []int64) ([]models.Order, error)
	GetOrders(ctx context.Context, filters models.OrderFilters) ([]models.Order, int, error)
	FindOrdersByReference(ctx context.Context, reference string) ([]models.Order, error)
	DeleteOrder(ctx context.Context, executor SQLExecutor, orderID int64) (int64, error)
	DeleteOrders(ctx context.Context, executor SQLExecutor, orderIDs []int64) (int64, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository.
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `id, reference, sku, quantity, customer_name, phone, address, city,
	delivery_type, store_name, order_date, status, created_at, updated_at`

func scanOrder(row scanner, o *models.Order) error {
	return row.Scan(
		&o.ID, &o.Reference, &o.SKU, &o.Quantity, &o.CustomerName, &o.Phone, &o.Address, &o.City,
		&o.DeliveryType, &o.StoreName, &o.OrderDate, &o.Status, &o.CreatedAt, &o.UpdatedAt,
	)
}

func (r *orderRepository) CreateOrder(ctx context.Context, executor SQLExecutor, order *models.Order) (int64, error) {
	query := `INSERT INTO manual_orders
	            (reference, sku, quantity, customer_name, phone, address, city,
	             delivery_type, store_name, order_date, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	          RETURNING id`

	now := time.Now()
	if order.OrderDate.IsZero() {
		order.OrderDate = now
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = now
	}

	err := executor.QueryRowContext(ctx, query,
		order.Reference, order.SKU, order.Quantity, order.CustomerName, order.Phone, order.Address, order.City,
		order.DeliveryType, order.StoreName, order.OrderDate, order.Status, order.CreatedAt, order.UpdatedAt,
	).Scan(&order.ID)
	if err != nil {
		return 0, wrapWriteError(err, "creating order")
	}
	return order.ID, nil
}

func (r *orderRepository) UpsertOrder(ctx context.Context, executor SQLExecutor, order *models.Order) error {
	query := `INSERT INTO manual_orders
	            (id, reference, sku, quantity, customer_name, phone, address, city,
	             delivery_type, store_name, order_date, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	          ON CONFLICT (id) DO UPDATE SET
	             reference = EXCLUDED.reference, sku = EXCLUDED.sku, quantity = EXCLUDED.quantity,
	             customer_name = EXCLUDED.customer_name, phone = EXCLUDED.phone, address = EXCLUDED.address,
	             city = EXCLUDED.city, delivery_type = EXCLUDED.delivery_type, store_name = EXCLUDED.store_name,
	             order_date = EXCLUDED.order_date, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`

	_, err := executor.ExecContext(ctx, query,
		order.ID, order.Reference, order.SKU, order.Quantity, order.CustomerName, order.Phone, order.Address,
		order.City, order.DeliveryType, order.StoreName, order.OrderDate, order.Status, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return wrapWriteError(err, fmt.Sprintf("upserting order ID %d", order.ID))
	}
	return nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, orderID int64) (*models.Order, error) {
	order := &models.Order{}
	query := `SELECT ` + orderColumns + ` FROM manual_orders WHERE id = $1`
	if err := scanOrder(r.db.QueryRowContext(ctx, query, orderID), order); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting order by ID %d: %v", ErrDatabaseError, orderID, err)
	}
	return order, nil
}

func (r *orderRepository) GetOrdersForUpdate(ctx context.Context, executor SQLExecutor, orderIDs []int64) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM manual_orders WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	return r.queryOrders(ctx, executor, "locking orders", query, pq.Array(orderIDs))
}

func (r *orderRepository) FindOrdersByReference(ctx context.Context, reference string) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM manual_orders WHERE reference = $1 ORDER BY id`
	return r.queryOrders(ctx, r.db, "finding orders by reference", query, reference)
}

func (r *orderRepository) queryOrders(ctx context.Context, executor SQLExecutor, op, query string, args ...interface{}) ([]models.Order, error) {
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDatabaseError, op, err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var o models.Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("%w: scanning order: %v", ErrDatabaseError, err)
		}
		orders = append(orders, o)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating order rows: %v", ErrDatabaseError, err)
	}
	return orders, nil
}

func (r *orderRepository) GetOrders(ctx context.Context, filters models.OrderFilters) ([]models.Order, int, error) {
	orders := []models.Order{}
	totalCount := 0

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + orderColumns + `, COUNT(*) OVER() AS total_count FROM manual_orders`)

	var conditions []string
	var args []interface{}
	argCounter := 1

	if filters.Status != nil && *filters.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argCounter))
		args = append(args, *filters.Status)
		argCounter++
	}
	if filters.SKU != nil && *filters.SKU != "" {
		conditions = append(conditions, fmt.Sprintf("sku = $%d", argCounter))
		args = append(args, *filters.SKU)
		argCounter++
	}
	if filters.Reference != nil && *filters.Reference != "" {
		conditions = append(conditions, fmt.Sprintf("reference ILIKE $%d", argCounter))
		args = append(args, "%"+*filters.Reference+"%")
		argCounter++
	}

	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	limit, offset := pageOffset(filters.Page, filters.PageSize)
	queryBuilder.WriteString(fmt.Sprintf(" ORDER BY order_date ASC, id ASC LIMIT $%d OFFSET $%d", argCounter, argCounter+1))
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: querying orders: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var o models.Order
		err := rows.Scan(
			&o.ID, &o.Reference, &o.SKU, &o.Quantity, &o.CustomerName, &o.Phone, &o.Address, &o.City,
			&o.DeliveryType, &o.StoreName, &o.OrderDate, &o.Status, &o.CreatedAt, &o.UpdatedAt,
			&totalCount,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: scanning order: %v", ErrDatabaseError, err)
		}
		orders = append(orders, o)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterating order rows: %v", ErrDatabaseError, err)
	}
	return orders, totalCount, nil
}

func (r *orderRepository) DeleteOrder(ctx context.Context, executor SQLExecutor, orderID int64) (int64, error) {
	result, err := executor.ExecContext(ctx, `DELETE FROM manual_orders WHERE id = $1`, orderID)
	if err != nil {
		return 0, fmt.Errorf("%w: deleting order ID %d: %v", ErrDatabaseError, orderID, err)
	}
	n, err := rowsAffected(result, "deleting order")
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

func (r *orderRepository) DeleteOrders(ctx context.Context, executor SQLExecutor, orderIDs []int64) (int64, error) {
	result, err := executor.ExecContext(ctx, `DELETE FROM manual_orders WHERE id = ANY($1)`, pq.Array(orderIDs))
	if err != nil {
		return 0, fmt.Errorf("%w: deleting orders: %v", ErrDatabaseError, err)
	}
	return rowsAffected(result, "deleting orders")
}
