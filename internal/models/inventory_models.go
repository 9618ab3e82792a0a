package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// LedgerDirection says whether a ledger document takes stock out or brings it in.
type LedgerDirection string

const (
	DirectionIssue   LedgerDirection = "Issue"
	DirectionReceipt LedgerDirection = "Receipt"
)

// LedgerReason is the business reason attached to a stock movement.
type LedgerReason string

const (
	ReasonOrder            LedgerReason = "Order"
	ReasonPutaway          LedgerReason = "Putaway"
	ReasonAdjustment       LedgerReason = "Adjustment"
	ReasonDamaged          LedgerReason = "Damaged"
	ReasonReturnToSupplier LedgerReason = "Return To Supplier"
	ReasonTransfer         LedgerReason = "Transfer"
	ReasonInbound          LedgerReason = "Inbound"
	ReasonOutboundReturn   LedgerReason = "Outbound Return"
)

var ErrInvalidLedgerStatus = errors.New("invalid ledger status")

// validLedgerReasons lists the only direction/reason pairs that can exist.
var validLedgerReasons = map[LedgerDirection][]LedgerReason{
	DirectionIssue: {
		ReasonOrder, ReasonPutaway, ReasonAdjustment, ReasonDamaged, ReasonReturnToSupplier, ReasonTransfer,
	},
	DirectionReceipt: {
		ReasonInbound, ReasonOutboundReturn, ReasonPutaway, ReasonAdjustment, ReasonTransfer,
	},
}

// LedgerStatus is the {direction, reason} pair stored on every product_out_documents row.
// The fields are unexported so a status can only be obtained through NewLedgerStatus,
// ParseLedgerStatus or the predefined values below.
type LedgerStatus struct {
	direction LedgerDirection
	reason    LedgerReason
}

var (
	StatusIssueOrder            = LedgerStatus{DirectionIssue, ReasonOrder}
	StatusIssuePutaway          = LedgerStatus{DirectionIssue, ReasonPutaway}
	StatusIssueAdjustment       = LedgerStatus{DirectionIssue, ReasonAdjustment}
	StatusIssueDamaged          = LedgerStatus{DirectionIssue, ReasonDamaged}
	StatusIssueReturnToSupplier = LedgerStatus{DirectionIssue, ReasonReturnToSupplier}
	StatusIssueTransfer         = LedgerStatus{DirectionIssue, ReasonTransfer}
	StatusReceiptInbound        = LedgerStatus{DirectionReceipt, ReasonInbound}
	StatusReceiptOutboundReturn = LedgerStatus{DirectionReceipt, ReasonOutboundReturn}
	StatusReceiptPutaway        = LedgerStatus{DirectionReceipt, ReasonPutaway}
	StatusReceiptAdjustment     = LedgerStatus{DirectionReceipt, ReasonAdjustment}
	StatusReceiptTransfer       = LedgerStatus{DirectionReceipt, ReasonTransfer}
)

// NewLedgerStatus validates the pair and returns the status.
func NewLedgerStatus(direction LedgerDirection, reason LedgerReason) (LedgerStatus, error) {
	for _, r := range validLedgerReasons[direction] {
		if r == reason {
			return LedgerStatus{direction: direction, reason: reason}, nil
		}
	}
	return LedgerStatus{}, fmt.Errorf("%w: %s - %s", ErrInvalidLedgerStatus, direction, reason)
}

// ParseLedgerStatus parses the canonical "<Direction> - <Reason>" form.
func ParseLedgerStatus(s string) (LedgerStatus, error) {
	parts := strings.SplitN(s, " - ", 2)
	if len(parts) != 2 {
		return LedgerStatus{}, fmt.Errorf("%w: %q", ErrInvalidLedgerStatus, s)
	}
	return NewLedgerStatus(LedgerDirection(parts[0]), LedgerReason(parts[1]))
}

// AllLedgerStatuses returns every valid status, issues first.
func AllLedgerStatuses() []LedgerStatus {
	statuses := []LedgerStatus{}
	for _, d := range []LedgerDirection{DirectionIssue, DirectionReceipt} {
		for _, r := range validLedgerReasons[d] {
			statuses = append(statuses, LedgerStatus{direction: d, reason: r})
		}
	}
	return statuses
}

func (s LedgerStatus) Direction() LedgerDirection { return s.direction }
func (s LedgerStatus) Reason() LedgerReason       { return s.reason }
func (s LedgerStatus) IsZero() bool               { return s.direction == "" }

// Sign is -1 for issues and +1 for receipts.
func (s LedgerStatus) Sign() int {
	if s.direction == DirectionIssue {
		return -1
	}
	return 1
}

func (s LedgerStatus) String() string {
	if s.IsZero() {
		return ""
	}
	return string(s.direction) + " - " + string(s.reason)
}

func (s LedgerStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *LedgerStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseLedgerStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value implements driver.Valuer so the status is stored as its canonical string.
func (s LedgerStatus) Value() (driver.Value, error) {
	if s.IsZero() {
		return nil, ErrInvalidLedgerStatus
	}
	return s.String(), nil
}

// Scan implements sql.Scanner.
func (s *LedgerStatus) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("%w: cannot scan %T", ErrInvalidLedgerStatus, src)
	}
	parsed, err := ParseLedgerStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Shipping states written on issue documents once packing starts.
const (
	ShippingStatusPacked    = "Packed"
	ShippingStatusShipped   = "Shipped"
	ShippingStatusDelivered = "Delivered"
)

// NextShippingStatus reports whether moving from -> to is a legal shipping transition.
func NextShippingStatus(from, to string) bool {
	switch from {
	case ShippingStatusPacked:
		return to == ShippingStatusShipped
	case ShippingStatusShipped:
		return to == ShippingStatusDelivered
	default:
		return false
	}
}

// StockDocument is one append-only row of the stock ledger (product_out_documents).
type StockDocument struct {
	ID               int64        `json:"id" db:"id"`
	DocumentNumber   string       `json:"document_number" db:"document_number"`
	SKU              string       `json:"sku" db:"sku"`
	Barcode          string       `json:"barcode" db:"barcode"`
	ExpiryDate       *time.Time   `json:"expiry_date,omitempty" db:"expiry_date"`
	Location         string       `json:"location" db:"location"`
	Quantity         int          `json:"quantity" db:"quantity"`
	Status           LedgerStatus `json:"status" db:"status"`
	ValidatedBy      string       `json:"validated_by" db:"validated_by"`
	OrderReference   *string      `json:"order_reference,omitempty" db:"order_reference"`
	PackerName       *string      `json:"packer_name,omitempty" db:"packer_name"`
	ShippingStatus   *string      `json:"shipping_status,omitempty" db:"shipping_status"`
	WaveOrderID      *int64       `json:"wave_order_id,omitempty" db:"wave_order_id"` // set on picked issues
	SourceDocumentID *int64       `json:"source_document_id,omitempty" db:"source_document_id"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
}

// SignedQuantity is the quantity as it counts toward on-hand stock.
func (d StockDocument) SignedQuantity() int {
	return d.Status.Sign() * d.Quantity
}

// StockBatch is the on-hand aggregate for one sku/barcode/location/expiry combination.
type StockBatch struct {
	SKU        string     `json:"sku"`
	Barcode    string     `json:"barcode"`
	Location   string     `json:"location"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
	OnHand     int        `json:"on_hand"`
}

// SameBatch reports whether the document belongs to the batch.
func (b StockBatch) SameBatch(sku, barcode, location string, expiry *time.Time) bool {
	if b.SKU != sku || b.Barcode != barcode || b.Location != location {
		return false
	}
	if b.ExpiryDate == nil || expiry == nil {
		return b.ExpiryDate == nil && expiry == nil
	}
	return b.ExpiryDate.Equal(*expiry)
}

// StockDocumentFilters defines the filters for listing ledger documents.
type StockDocumentFilters struct {
	OrderReference *string `form:"order_reference"`
	Status         *string `form:"status"`
	SKU            *string `form:"sku"`
	PendingPacking bool    `form:"pending_packing"`
	Page           int     `form:"page"`
	PageSize       int     `form:"page_size"`
}
