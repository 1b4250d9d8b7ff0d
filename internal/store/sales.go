package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pos-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateSaleTx commits a sale atomically: header, line items, stock
// deductions with movement rows, and the optional initial payment. Any
// failure (including a stock race detected mid-loop) rolls back every write.
// Returns the quantities remaining per product so the caller can raise
// low-stock signals after commit.
func (s *Store) CreateSaleTx(ctx context.Context, sale *models.Sale, items []models.SaleItem, payment *models.Payment) (map[int64]int, error) {
	remaining := make(map[int64]int, len(items))

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO sales (invoice_number, staff_id, customer_name, customer_phone,
			                   subtotal, discount, total, amount_paid, balance, payment_status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id, created_at`

		if err := tx.GetContext(ctx, sale, query,
			sale.InvoiceNumber, sale.StaffID, sale.CustomerName, sale.CustomerPhone,
			sale.Subtotal, sale.Discount, sale.Total, sale.AmountPaid,
			sale.Balance, sale.PaymentStatus); err != nil {
			return fmt.Errorf("failed to insert sale: %w", err)
		}

		for i := range items {
			item := &items[i]
			item.SaleID = sale.ID

			if err := tx.GetContext(ctx, &item.ID, `
				INSERT INTO sale_items (sale_id, product_id, product_name, quantity, price, discount, total)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING id`,
				item.SaleID, item.ProductID, item.ProductName, item.Quantity,
				item.Price, item.Discount, item.Total); err != nil {
				return fmt.Errorf("failed to insert sale item: %w", err)
			}

			if item.ProductID == nil {
				continue
			}

			left, err := deductStockTx(ctx, tx, *item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			remaining[*item.ProductID] = left

			movement := &models.StockMovement{
				ProductID:    *item.ProductID,
				MovementType: models.MovementOut,
				Quantity:     -item.Quantity,
				Reference:    sale.InvoiceNumber,
				Notes:        "Sale to " + sale.CustomerName,
				CreatedBy:    sale.StaffID,
			}
			if err := insertMovementTx(ctx, tx, movement); err != nil {
				return err
			}
		}

		if payment != nil {
			payment.SaleID = sale.ID
			if err := insertPaymentTx(ctx, tx, payment); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return remaining, nil
}

// insertPaymentTx appends one payment ledger row
func insertPaymentTx(ctx context.Context, tx *sqlx.Tx, p *models.Payment) error {
	query := `
		INSERT INTO payments (sale_id, amount, payment_method, reference, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return tx.GetContext(ctx, p, query,
		p.SaleID, p.Amount, p.PaymentMethod, p.Reference, p.Notes, p.CreatedBy)
}

// RecordPaymentTx appends a payment and reconciles the sale under a row lock.
// The FOR UPDATE serializes concurrent payments on the same sale so the
// running amount_paid never loses an update, and the balance ceiling is
// re-checked against the locked row, not the caller's stale read.
func (s *Store) RecordPaymentTx(ctx context.Context, saleID int64, payment *models.Payment) (*models.Sale, error) {
	var sale models.Sale

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &sale, "SELECT * FROM sales WHERE id = $1 FOR UPDATE", saleID)
		if errors.Is(err, sql.ErrNoRows) {
			return &models.NotFoundError{Resource: "sale", ID: saleID}
		}
		if err != nil {
			return err
		}

		if payment.Amount.GreaterThan(sale.Balance) {
			return &models.ExceedsBalanceError{Balance: sale.Balance}
		}

		payment.SaleID = saleID
		if err := insertPaymentTx(ctx, tx, payment); err != nil {
			return err
		}

		sale.AmountPaid = sale.AmountPaid.Add(payment.Amount)
		sale.Balance, sale.PaymentStatus = models.Reconcile(sale.Total, sale.AmountPaid)

		return updateSaleLedgerTx(ctx, tx, &sale)
	})
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// updateSaleLedgerTx persists the reconciled monetary state of a sale
func updateSaleLedgerTx(ctx context.Context, tx *sqlx.Tx, sale *models.Sale) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE sales
		SET amount_paid = $1, balance = $2, payment_status = $3
		WHERE id = $4`,
		sale.AmountPaid, sale.Balance, sale.PaymentStatus, sale.ID)
	return err
}

// GetSaleByID retrieves a sale by ID
func (s *Store) GetSaleByID(ctx context.Context, id int64) (*models.Sale, error) {
	var sale models.Sale
	err := s.db.GetContext(ctx, &sale, "SELECT * FROM sales WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "sale", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// GetSaleByInvoice retrieves a sale by invoice number
func (s *Store) GetSaleByInvoice(ctx context.Context, invoice string) (*models.Sale, error) {
	var sale models.Sale
	err := s.db.GetContext(ctx, &sale, "SELECT * FROM sales WHERE invoice_number = $1", invoice)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "sale"}
	}
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

// GetSales lists sales, newest first
func (s *Store) GetSales(ctx context.Context) ([]models.Sale, error) {
	var sales []models.Sale
	err := s.db.SelectContext(ctx, &sales, "SELECT * FROM sales ORDER BY created_at DESC")
	return sales, err
}

// GetSaleItems retrieves all line items for a sale
func (s *Store) GetSaleItems(ctx context.Context, saleID int64) ([]models.SaleItem, error) {
	var items []models.SaleItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM sale_items WHERE sale_id = $1 ORDER BY id", saleID)
	return items, err
}

// GetSaleItemByID retrieves one line item
func (s *Store) GetSaleItemByID(ctx context.Context, id int64) (*models.SaleItem, error) {
	var item models.SaleItem
	err := s.db.GetContext(ctx, &item, "SELECT * FROM sale_items WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "sale item", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetSalePayments retrieves the payment ledger for a sale, newest first
func (s *Store) GetSalePayments(ctx context.Context, saleID int64) ([]models.Payment, error) {
	var payments []models.Payment
	err := s.db.SelectContext(ctx, &payments,
		"SELECT * FROM payments WHERE sale_id = $1 ORDER BY created_at DESC, id DESC", saleID)
	return payments, err
}

// GetDebtors lists sales with an outstanding balance, newest first
func (s *Store) GetDebtors(ctx context.Context) ([]models.Sale, error) {
	var sales []models.Sale
	err := s.db.SelectContext(ctx, &sales,
		"SELECT * FROM sales WHERE balance > 0 ORDER BY created_at DESC")
	return sales, err
}

// FindSalesByCustomer returns candidate sales matching the customer by exact
// case-insensitive name or phone, most recent first. Best-effort resolver:
// two customers can share a name, so callers prefer an explicit sale link.
func (s *Store) FindSalesByCustomer(ctx context.Context, name, phone string) ([]models.Sale, error) {
	var sales []models.Sale
	err := s.db.SelectContext(ctx, &sales, `
		SELECT * FROM sales
		WHERE (LOWER(customer_name) = LOWER($1) AND $1 <> '')
		   OR (customer_phone = $2 AND $2 <> '')
		ORDER BY created_at DESC`,
		name, phone)
	return sales, err
}

// UpdateSaleCustomer edits the receipt's customer fields only
func (s *Store) UpdateSaleCustomer(ctx context.Context, saleID int64, name, phone string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sales SET customer_name = $1, customer_phone = $2 WHERE id = $3",
		name, phone, saleID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &models.NotFoundError{Resource: "sale", ID: saleID}
	}
	return nil
}

// DeleteSale removes a sale only while its payment ledger is empty. Once a
// payment exists the sale is part of the audit trail and deletion is refused.
func (s *Store) DeleteSale(ctx context.Context, saleID int64) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var paymentCount int
		if err := tx.GetContext(ctx, &paymentCount,
			"SELECT COUNT(*) FROM payments WHERE sale_id = $1", saleID); err != nil {
			return err
		}
		if paymentCount > 0 {
			return models.NewValidationError("sale", "sale with recorded payments cannot be deleted")
		}

		res, err := tx.ExecContext(ctx, "DELETE FROM sales WHERE id = $1", saleID)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return &models.NotFoundError{Resource: "sale", ID: saleID}
		}
		return nil
	})
}
