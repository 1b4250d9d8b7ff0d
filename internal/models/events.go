package models

import "time"

// Event types
const (
	EventTypeSaleCreated     = "SALE_CREATED"
	EventTypePaymentRecorded = "PAYMENT_RECORDED"
	EventTypeRefundRequested = "REFUND_REQUESTED"
	EventTypeRefundApproved  = "REFUND_APPROVED"
	EventTypeRefundDeclined  = "REFUND_DECLINED"
	EventTypeStockLow        = "STOCK_LOW"
)

// BaseEvent contains common fields for all events. Monetary fields on the
// concrete events are decimal strings.
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// SaleCreatedEvent published after a sale transaction commits
type SaleCreatedEvent struct {
	BaseEvent
	SaleID        int64          `json:"sale_id"`
	InvoiceNumber string         `json:"invoice_number"`
	StaffID       int64          `json:"staff_id"`
	CustomerName  string         `json:"customer_name"`
	Total         string         `json:"total"`
	Balance       string         `json:"balance"`
	PaymentStatus string         `json:"payment_status"`
	Items         []SaleItemData `json:"items"`
}

// PaymentRecordedEvent published after a payment commits
type PaymentRecordedEvent struct {
	BaseEvent
	SaleID        int64  `json:"sale_id"`
	PaymentID     int64  `json:"payment_id"`
	Amount        string `json:"amount"`
	Balance       string `json:"balance"`
	PaymentStatus string `json:"payment_status"`
	RecordedBy    int64  `json:"recorded_by"`
}

// RefundRequestedEvent published when a refund request is created
type RefundRequestedEvent struct {
	BaseEvent
	RequestID    int64  `json:"request_id"`
	CustomerName string `json:"customer_name"`
	Amount       string `json:"amount"`
	CreatedBy    int64  `json:"created_by"`
}

// RefundApprovedEvent published after the approval transaction commits
type RefundApprovedEvent struct {
	BaseEvent
	RequestID  int64  `json:"request_id"`
	RefundID   int64  `json:"refund_id"`
	SaleID     int64  `json:"sale_id"`
	Amount     string `json:"amount"`
	ApprovedBy int64  `json:"approved_by"`
}

// RefundDeclinedEvent published when a request is declined
type RefundDeclinedEvent struct {
	BaseEvent
	RequestID  int64 `json:"request_id"`
	DeclinedBy int64 `json:"declined_by"`
}

// StockLowEvent published when a sale drops a product to or below its
// reorder level
type StockLowEvent struct {
	BaseEvent
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
}

// SaleItemData represents line item data in events
type SaleItemData struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
}
