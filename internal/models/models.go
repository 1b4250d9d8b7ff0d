package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment statuses derived from balance vs total
const (
	PaymentStatusPaid    = "paid"
	PaymentStatusPartial = "partial"
	PaymentStatusUnpaid  = "unpaid"
)

// Payment methods
const (
	PaymentMethodCash     = "cash"
	PaymentMethodCard     = "card"
	PaymentMethodTransfer = "transfer"
	PaymentMethodRefund   = "refund"
)

// Refund request statuses (pending is the only non-terminal state)
const (
	RefundStatusPending  = "pending"
	RefundStatusApproved = "approved"
	RefundStatusDeclined = "declined"
)

// Stock movement types
const (
	MovementIn         = "in"
	MovementOut        = "out"
	MovementAdjustment = "adjustment"
)

// Derived product stock statuses
const (
	StockStatusIn  = "in_stock"
	StockStatusLow = "low_stock"
	StockStatusOut = "out_of_stock"
)

// Product represents a catalog entry. Quantity is mutated only through
// inventory ledger operations (sale deduction, refund restock, adjustment).
type Product struct {
	ID           int64           `db:"id" json:"id"`
	SKU          string          `db:"sku" json:"sku"`
	Name         string          `db:"name" json:"name"`
	Price        decimal.Decimal `db:"price" json:"price"`
	CostPrice    decimal.Decimal `db:"cost_price" json:"cost_price"`
	Quantity     int             `db:"quantity" json:"quantity"`
	ReorderLevel int             `db:"reorder_level" json:"reorder_level"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// StockStatus derives the display status from quantity vs reorder level.
func (p *Product) StockStatus() string {
	switch {
	case p.Quantity == 0:
		return StockStatusOut
	case p.Quantity <= p.ReorderLevel:
		return StockStatusLow
	default:
		return StockStatusIn
	}
}

// Sale is one completed transaction: header totals plus derived payment state.
type Sale struct {
	ID            int64           `db:"id" json:"id"`
	InvoiceNumber string          `db:"invoice_number" json:"invoice_number"`
	StaffID       int64           `db:"staff_id" json:"staff_id"`
	CustomerName  string          `db:"customer_name" json:"customer_name"`
	CustomerPhone string          `db:"customer_phone" json:"customer_phone"`
	Subtotal      decimal.Decimal `db:"subtotal" json:"subtotal"`
	Discount      decimal.Decimal `db:"discount" json:"discount"`
	Total         decimal.Decimal `db:"total" json:"total"`
	AmountPaid    decimal.Decimal `db:"amount_paid" json:"amount_paid"`
	Balance       decimal.Decimal `db:"balance" json:"balance"`
	PaymentStatus string          `db:"payment_status" json:"payment_status"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// IsDebtor reports whether the sale still has an outstanding balance.
func (s *Sale) IsDebtor() bool {
	return s.Balance.IsPositive()
}

// SaleItem is an immutable line item. ProductID is nullable because the
// product may be deleted after the sale; ProductName is the snapshot.
type SaleItem struct {
	ID          int64           `db:"id" json:"id"`
	SaleID      int64           `db:"sale_id" json:"sale_id"`
	ProductID   *int64          `db:"product_id" json:"product_id,omitempty"`
	ProductName string          `db:"product_name" json:"product_name"`
	Quantity    int             `db:"quantity" json:"quantity"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Discount    decimal.Decimal `db:"discount" json:"discount"`
	Total       decimal.Decimal `db:"total" json:"total"`
}

// Payment is an append-only ledger entry against a sale. Refunds are stored
// as negative amounts with method "refund"; the sum of all entries for a
// sale must equal Sale.AmountPaid at all times.
type Payment struct {
	ID            int64           `db:"id" json:"id"`
	SaleID        int64           `db:"sale_id" json:"sale_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	PaymentMethod string          `db:"payment_method" json:"payment_method"`
	Reference     string          `db:"reference" json:"reference,omitempty"`
	Notes         string          `db:"notes" json:"notes,omitempty"`
	CreatedBy     int64           `db:"created_by" json:"created_by"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// RefundRequest is a proposed refund moving through pending → approved|declined.
// RefundProcessed is a separate guard bit set only when the Refund artifact is
// written, so two concurrent approvals cannot both pass the status check.
type RefundRequest struct {
	ID              int64           `db:"id" json:"id"`
	SaleID          *int64          `db:"sale_id" json:"sale_id,omitempty"`
	SaleItemID      *int64          `db:"sale_item_id" json:"sale_item_id,omitempty"`
	CustomerName    string          `db:"customer_name" json:"customer_name"`
	CustomerPhone   string          `db:"customer_phone" json:"customer_phone"`
	Reason          string          `db:"reason" json:"reason"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	OriginalAmount  decimal.Decimal `db:"original_amount" json:"original_amount"`
	Status          string          `db:"status" json:"status"`
	RequestDate     time.Time       `db:"request_date" json:"request_date"`
	ApprovedBy      *int64          `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedDate    *time.Time      `db:"approved_date" json:"approved_date,omitempty"`
	CreatedBy       int64           `db:"created_by" json:"created_by"`
	RefundProcessed bool            `db:"refund_processed" json:"refund_processed"`
}

// CanEdit reports whether the request is still editable (pending only).
func (r *RefundRequest) CanEdit() bool {
	return r.Status == RefundStatusPending
}

// Refund is the executed artifact of an approved RefundRequest, created
// exactly once per request.
type Refund struct {
	ID              int64           `db:"id" json:"id"`
	SaleID          int64           `db:"sale_id" json:"sale_id"`
	RefundRequestID int64           `db:"refund_request_id" json:"refund_request_id"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	Reason          string          `db:"reason" json:"reason"`
	ProcessedBy     int64           `db:"processed_by" json:"processed_by"`
	ProcessedAt     time.Time       `db:"processed_at" json:"processed_at"`
}

// StockMovement is an append-only audit record of one inventory change.
// Quantity is signed: negative for "out", positive for "in"; adjustments
// carry whichever sign the correction needs.
type StockMovement struct {
	ID           int64     `db:"id" json:"id"`
	ProductID    int64     `db:"product_id" json:"product_id"`
	MovementType string    `db:"movement_type" json:"movement_type"`
	Quantity     int       `db:"quantity" json:"quantity"`
	Reference    string    `db:"reference" json:"reference,omitempty"`
	Notes        string    `db:"notes" json:"notes,omitempty"`
	CreatedBy    int64     `db:"created_by" json:"created_by"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// User is the read model the core needs for notification fan-out; the full
// account (credentials, profile) lives in the external auth layer.
type User struct {
	ID          int64  `db:"id" json:"id"`
	Username    string `db:"username" json:"username"`
	Role        string `db:"role" json:"role"`
	IsSuperuser bool   `db:"is_superuser" json:"is_superuser"`
}

// Reconcile is the single derivation of balance and payment status from a
// sale's total and net amount paid. Every mutator goes through it; balance
// and status are never recomputed independently.
func Reconcile(total, amountPaid decimal.Decimal) (balance decimal.Decimal, status string) {
	balance = MaxZero(total.Sub(amountPaid))
	switch {
	case !balance.IsPositive():
		status = PaymentStatusPaid
	case amountPaid.IsPositive():
		status = PaymentStatusPartial
	default:
		status = PaymentStatusUnpaid
	}
	return balance, status
}

// NetAmountPaid sums a sale's payment entries, refunds included as negatives,
// floored at zero. A sale whose amount_paid was reduced by refunds must be
// distinguishable from one that was simply underpaid.
func NetAmountPaid(payments []Payment) decimal.Decimal {
	net := decimal.Zero
	for _, p := range payments {
		net = net.Add(p.Amount)
	}
	return MaxZero(net)
}

// IsRealDebtor reports whether the customer actually still owes money,
// judged on the net of the payment ledger rather than the stored header.
func IsRealDebtor(sale *Sale, payments []Payment) bool {
	return NetAmountPaid(payments).LessThan(sale.Total)
}
