package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Domain errors. All of them are scoped to a single operation: any of these
// surfacing mid-transaction rolls the whole transaction back, and none of
// them is fatal at the process level.

// ValidationError is a client-correctable input failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a field-scoped validation failure.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// InsufficientStockError is raised before any write when a cart line asks for
// more units than the product has, and again inside the sale transaction if
// the conditional decrement loses a race.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("%s has insufficient stock: available %d, requested %d",
		e.ProductName, e.Available, e.Requested)
}

// NotFoundError marks an absent (or not owned) product, sale, refund request
// or cart. Never treated as success.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Resource, e.ID)
}

// ForbiddenError marks a role or ownership check failure, distinct from
// NotFoundError.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	return e.Reason
}

// AlreadyProcessedError marks a refund request that is no longer pending or
// whose refund_processed guard is already set. Terminal; callers must not
// retry.
type AlreadyProcessedError struct {
	RequestID int64
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("refund request %d has already been processed", e.RequestID)
}

// ExceedsBalanceError rejects a payment larger than the sale's outstanding
// balance.
type ExceedsBalanceError struct {
	Balance decimal.Decimal
}

func (e *ExceedsBalanceError) Error() string {
	return fmt.Sprintf("payment exceeds outstanding balance of %s", e.Balance.StringFixed(2))
}

// NoMatchingSaleError is returned when a refund request without a direct sale
// link cannot be resolved by customer name/phone matching.
type NoMatchingSaleError struct {
	CustomerName  string
	CustomerPhone string
}

func (e *NoMatchingSaleError) Error() string {
	return fmt.Sprintf("no sale with sufficient paid amount matches customer %q / %q",
		e.CustomerName, e.CustomerPhone)
}

// ConflictError marks a transient collision (invoice number, concurrent
// update) that is retried internally a bounded number of times before
// surfacing.
type ConflictError struct {
	Op string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict during %s, retries exhausted", e.Op)
}
