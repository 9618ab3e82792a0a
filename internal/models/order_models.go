package models

import "time"

// Queue statuses of an order that is not attached to a wave.
const (
	OrderStatusPaymentAccepted = "Payment Accepted"
	OrderStatusOutOfStock      = "Out of Stock"
)

// Order is a customer order waiting in the free queue (manual_orders).
type Order struct {
	ID           int64     `json:"id" db:"id"`
	Reference    string    `json:"reference" db:"reference"`
	SKU          string    `json:"sku" db:"sku"`
	Quantity     int       `json:"quantity" db:"quantity"`
	CustomerName string    `json:"customer_name" db:"customer_name"`
	Phone        *string   `json:"phone,omitempty" db:"phone"`
	Address      *string   `json:"address,omitempty" db:"address"`
	City         string    `json:"city" db:"city"`
	DeliveryType *string   `json:"delivery_type,omitempty" db:"delivery_type"`
	StoreName    *string   `json:"store_name,omitempty" db:"store_name"`
	OrderDate    time.Time `json:"order_date" db:"order_date"`
	Status       string    `json:"status" db:"status"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// OrderFilters defines the available filters for querying the order queue.
type OrderFilters struct {
	Status    *string `form:"status"`
	SKU       *string `form:"sku"`
	Reference *string `form:"reference"`
	Page      int     `form:"page"`
	PageSize  int     `form:"page_size"`
}

// OrderState is where an order sits in the fulfillment lifecycle.
type OrderState string

const (
	OrderStateQueued     OrderState = "Queued"
	OrderStateOutOfStock OrderState = "OutOfStock"
	OrderStateAssigned   OrderState = "Assigned"
	OrderStatePicked     OrderState = "Picked"
	OrderStatePacked     OrderState = "Packed"
	OrderStateShipped    OrderState = "Shipped"
	OrderStateDelivered  OrderState = "Delivered"
	OrderStateUnknown    OrderState = "Unknown"
)
