package models

import "time"

const (
	WaveStatusProgress = "Wave Progress"
	WaveStatusDone     = "Wave Done"
)

// IsValidWaveStatus reports whether status is one of the known wave statuses.
func IsValidWaveStatus(status string) bool {
	return status == WaveStatusProgress || status == WaveStatusDone
}

// Wave is a batch of orders released together for picking.
// TotalOrders is always computed from wave_orders, never stored.
type Wave struct {
	ID             int64     `json:"id" db:"id"`
	DocumentNumber string    `json:"document_number" db:"document_number"`
	WaveType       string    `json:"wave_type" db:"wave_type"`
	Status         string    `json:"status" db:"status"`
	TotalOrders    int       `json:"total_orders" db:"total_orders"`
	CreatedBy      string    `json:"created_by" db:"created_by"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// WaveOrder is the snapshot of an order taken when it was assigned to a wave.
type WaveOrder struct {
	ID           int64      `json:"id" db:"id"`
	WaveID       int64      `json:"wave_id" db:"wave_id"`
	OrderID      int64      `json:"order_id" db:"order_id"`
	Reference    string     `json:"reference" db:"reference"`
	SKU          string     `json:"sku" db:"sku"`
	Quantity     int        `json:"quantity" db:"quantity"`
	CustomerName string     `json:"customer_name" db:"customer_name"`
	Phone        *string    `json:"phone,omitempty" db:"phone"`
	Address      *string    `json:"address,omitempty" db:"address"`
	City         string     `json:"city" db:"city"`
	DeliveryType *string    `json:"delivery_type,omitempty" db:"delivery_type"`
	StoreName    *string    `json:"store_name,omitempty" db:"store_name"`
	Location     string     `json:"location" db:"location"`
	OrderDate    time.Time  `json:"order_date" db:"order_date"`
	PickedAt     *time.Time `json:"picked_at,omitempty" db:"picked_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// ToQueueOrder rebuilds the queue row from the snapshot, keeping the original order id.
func (wo WaveOrder) ToQueueOrder(status string, now time.Time) Order {
	return Order{
		ID:           wo.OrderID,
		Reference:    wo.Reference,
		SKU:          wo.SKU,
		Quantity:     wo.Quantity,
		CustomerName: wo.CustomerName,
		Phone:        wo.Phone,
		Address:      wo.Address,
		City:         wo.City,
		DeliveryType: wo.DeliveryType,
		StoreName:    wo.StoreName,
		OrderDate:    wo.OrderDate,
		Status:       status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewWaveOrder snapshots a queue order for assignment to waveID.
func NewWaveOrder(waveID int64, o Order, location string, now time.Time) WaveOrder {
	return WaveOrder{
		WaveID:       waveID,
		OrderID:      o.ID,
		Reference:    o.Reference,
		SKU:          o.SKU,
		Quantity:     o.Quantity,
		CustomerName: o.CustomerName,
		Phone:        o.Phone,
		Address:      o.Address,
		City:         o.City,
		DeliveryType: o.DeliveryType,
		StoreName:    o.StoreName,
		Location:     location,
		OrderDate:    o.OrderDate,
		CreatedAt:    now,
	}
}

// WaveDetail is a wave together with its orders, as returned by GET /api/waves/:id.
type WaveDetail struct {
	Wave
	Orders []WaveOrder `json:"orders"`
}

// WaveFilters defines the filters for listing waves.
type WaveFilters struct {
	Status   *string `form:"status"`
	Page     int     `form:"page"`
	PageSize int     `form:"page_size"`
}
