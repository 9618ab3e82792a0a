package models

import "time"

// Audit actions recorded by the wave lifecycle.
const (
	AuditActionWaveCreated      = "wave_created"
	AuditActionWaveCancelled    = "wave_cancelled"
	AuditActionWaveStatus       = "wave_status_updated"
	AuditActionOrderOutOfStock  = "order_marked_out_of_stock"
	AuditActionOrderRemoved     = "order_removed_from_wave"
	AuditActionOrderPicked      = "order_picked"
	AuditActionOrderPacked      = "order_packed"
	AuditActionShippingUpdated  = "shipping_status_updated"
	AuditActionDocumentAppended = "stock_document_appended"
)

// AuditLog is one entry of the operator audit trail.
type AuditLog struct {
	ID        int64                  `json:"id"`
	ActorID   *int64                 `json:"actor_id,omitempty"`
	ActorName string                 `json:"actor_name"`
	Action    string                 `json:"action"`
	Entity    string                 `json:"entity"`
	EntityID  string                 `json:"entity_id"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID *string                `json:"request_id,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// AuditLogFilters narrows the audit trail listing.
type AuditLogFilters struct {
	Entity   *string `form:"entity"`
	EntityID *string `form:"entity_id"`
	Page     int     `form:"page"`
	PageSize int     `form:"page_size"`
}
