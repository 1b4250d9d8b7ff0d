package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pos-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateRefundRequest inserts a new pending request
func (s *Store) CreateRefundRequest(ctx context.Context, r *models.RefundRequest) error {
	query := `
		INSERT INTO refund_requests (sale_id, sale_item_id, customer_name, customer_phone,
		                             reason, amount, original_amount, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, request_date`

	return s.db.GetContext(ctx, r, query,
		r.SaleID, r.SaleItemID, r.CustomerName, r.CustomerPhone,
		r.Reason, r.Amount, r.OriginalAmount, r.Status, r.CreatedBy)
}

// GetRefundRequestByID retrieves a request by ID
func (s *Store) GetRefundRequestByID(ctx context.Context, id int64) (*models.RefundRequest, error) {
	var r models.RefundRequest
	err := s.db.GetContext(ctx, &r, "SELECT * FROM refund_requests WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "refund request", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRefundRequests lists requests newest first; when createdBy is non-nil
// only that creator's requests are returned (staff see their own, admins all)
func (s *Store) GetRefundRequests(ctx context.Context, createdBy *int64) ([]models.RefundRequest, error) {
	var requests []models.RefundRequest
	if createdBy != nil {
		err := s.db.SelectContext(ctx, &requests,
			"SELECT * FROM refund_requests WHERE created_by = $1 ORDER BY request_date DESC", *createdBy)
		return requests, err
	}
	err := s.db.SelectContext(ctx, &requests,
		"SELECT * FROM refund_requests ORDER BY request_date DESC")
	return requests, err
}

// UpdateRefundRequest edits the mutable fields of a still-pending request.
// The status guard in the WHERE clause keeps a concurrent approval from
// being overwritten.
func (s *Store) UpdateRefundRequest(ctx context.Context, r *models.RefundRequest) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE refund_requests
		SET customer_name = $1, customer_phone = $2, reason = $3, amount = $4,
		    sale_id = $5, sale_item_id = $6
		WHERE id = $7 AND status = $8`,
		r.CustomerName, r.CustomerPhone, r.Reason, r.Amount,
		r.SaleID, r.SaleItemID, r.ID, models.RefundStatusPending)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &models.AlreadyProcessedError{RequestID: r.ID}
	}
	return nil
}

// GetRefundsBySaleID lists executed refunds for a sale
func (s *Store) GetRefundsBySaleID(ctx context.Context, saleID int64) ([]models.Refund, error) {
	var refunds []models.Refund
	err := s.db.SelectContext(ctx, &refunds,
		"SELECT * FROM refunds WHERE sale_id = $1 ORDER BY processed_at DESC", saleID)
	return refunds, err
}

// ApproveRefundTx executes an approval as one transaction: flip the
// refund_processed guard, write the Refund artifact, append the negative
// payment, reconcile the sale, and restock when the refund is item-scoped.
// The conditional UPDATE is the compare-and-set that serializes concurrent
// approvals of the same request: exactly one caller sees rows affected.
// Approvals of different requests against the same sale serialize on the
// row lock, where the ceiling is re-checked so amount_paid never goes
// negative.
func (s *Store) ApproveRefundTx(ctx context.Context, req *models.RefundRequest, sale *models.Sale, item *models.SaleItem, adminID int64) (*models.Refund, *models.Sale, error) {
	refund := &models.Refund{
		SaleID:          sale.ID,
		RefundRequestID: req.ID,
		Amount:          req.Amount,
		Reason:          req.Reason,
		ProcessedBy:     adminID,
	}
	var reconciled models.Sale

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE refund_requests
			SET status = $1, refund_processed = TRUE, approved_by = $2,
			    approved_date = NOW(), sale_id = $3
			WHERE id = $4 AND status = $5 AND refund_processed = FALSE`,
			models.RefundStatusApproved, adminID, sale.ID,
			req.ID, models.RefundStatusPending)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return &models.AlreadyProcessedError{RequestID: req.ID}
		}

		// Re-check the ceiling against the locked row, not the caller's
		// stale read: a concurrent approval on the same sale may have
		// already drained amount_paid.
		err = tx.GetContext(ctx, &reconciled, "SELECT * FROM sales WHERE id = $1 FOR UPDATE", sale.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return &models.NotFoundError{Resource: "sale", ID: sale.ID}
		}
		if err != nil {
			return err
		}
		if req.Amount.GreaterThan(reconciled.AmountPaid) {
			return models.NewValidationError("amount",
				"exceeds the amount paid of "+reconciled.AmountPaid.StringFixed(2))
		}

		if err := tx.GetContext(ctx, refund, `
			INSERT INTO refunds (sale_id, refund_request_id, amount, reason, processed_by)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, processed_at`,
			refund.SaleID, refund.RefundRequestID, refund.Amount,
			refund.Reason, refund.ProcessedBy); err != nil {
			return fmt.Errorf("failed to insert refund: %w", err)
		}

		reference := fmt.Sprintf("REFUND-%d", req.ID)

		payment := &models.Payment{
			SaleID:        sale.ID,
			Amount:        req.Amount.Neg(),
			PaymentMethod: models.PaymentMethodRefund,
			Reference:     reference,
			Notes:         req.Reason,
			CreatedBy:     adminID,
		}
		if err := insertPaymentTx(ctx, tx, payment); err != nil {
			return err
		}

		reconciled.AmountPaid = reconciled.AmountPaid.Sub(req.Amount)
		reconciled.Balance, reconciled.PaymentStatus = models.Reconcile(reconciled.Total, reconciled.AmountPaid)
		if err := updateSaleLedgerTx(ctx, tx, &reconciled); err != nil {
			return err
		}

		if item != nil && item.ProductID != nil {
			if _, err := restockTx(ctx, tx, *item.ProductID, item.Quantity); err != nil {
				return err
			}
			movement := &models.StockMovement{
				ProductID:    *item.ProductID,
				MovementType: models.MovementIn,
				Quantity:     item.Quantity,
				Reference:    reference,
				Notes:        "Refund of " + item.ProductName,
				CreatedBy:    adminID,
			}
			if err := insertMovementTx(ctx, tx, movement); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return refund, &reconciled, nil
}

// DeclineRefundTx marks a pending request declined. No money or stock moves.
func (s *Store) DeclineRefundTx(ctx context.Context, requestID, adminID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE refund_requests
		SET status = $1, approved_by = $2, approved_date = NOW()
		WHERE id = $3 AND status = $4`,
		models.RefundStatusDeclined, adminID, requestID, models.RefundStatusPending)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &models.AlreadyProcessedError{RequestID: requestID}
	}
	return nil
}
