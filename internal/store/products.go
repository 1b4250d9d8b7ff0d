package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pos-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "product", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductBySKU retrieves a product by SKU
func (s *Store) GetProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE sku = $1", sku)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &models.NotFoundError{Resource: "product"}
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProducts retrieves all products, newest first
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY created_at DESC")
	return products, err
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// GetLowStockProducts lists products at or below their reorder level
func (s *Store) GetLowStockProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE quantity <= reorder_level ORDER BY quantity, name")
	return products, err
}

// CreateProduct inserts a product. A SKU collision surfaces as a unique
// violation; the catalog service regenerates and retries.
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (sku, name, price, cost_price, quantity, reorder_level)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, product, query,
		product.SKU, product.Name, product.Price, product.CostPrice,
		product.Quantity, product.ReorderLevel)
}

// UpdateProduct updates catalog fields. Quantity is deliberately absent:
// stock changes only through ledger operations.
func (s *Store) UpdateProduct(ctx context.Context, product *models.Product) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $1, price = $2, cost_price = $3, reorder_level = $4, updated_at = NOW()
		WHERE id = $5`,
		product.Name, product.Price, product.CostPrice, product.ReorderLevel, product.ID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &models.NotFoundError{Resource: "product", ID: product.ID}
	}
	return nil
}

// DeleteProduct removes a catalog entry. Sale items keep their snapshot via
// the nullable product reference.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &models.NotFoundError{Resource: "product", ID: id}
	}
	return nil
}

// GetStockMovements lists the movement history for a product, newest first
func (s *Store) GetStockMovements(ctx context.Context, productID int64) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	err := s.db.SelectContext(ctx, &movements,
		"SELECT * FROM stock_movements WHERE product_id = $1 ORDER BY created_at DESC", productID)
	return movements, err
}

// deductStockTx performs the atomic check-and-decrement. The WHERE clause is
// the race guard: two concurrent sales cannot both pass it when only one has
// sufficient stock.
func deductStockTx(ctx context.Context, tx *sqlx.Tx, productID int64, qty int) (int, error) {
	var remaining int
	err := tx.GetContext(ctx, &remaining, `
		UPDATE products
		SET quantity = quantity - $1, updated_at = NOW()
		WHERE id = $2 AND quantity >= $1
		RETURNING quantity`,
		qty, productID)
	if errors.Is(err, sql.ErrNoRows) {
		var p models.Product
		if err := tx.GetContext(ctx, &p, "SELECT * FROM products WHERE id = $1", productID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, &models.NotFoundError{Resource: "product", ID: productID}
			}
			return 0, err
		}
		return 0, &models.InsufficientStockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Available:   p.Quantity,
			Requested:   qty,
		}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to deduct stock: %w", err)
	}
	return remaining, nil
}

// restockTx increments product quantity
func restockTx(ctx context.Context, tx *sqlx.Tx, productID int64, qty int) (int, error) {
	var remaining int
	err := tx.GetContext(ctx, &remaining, `
		UPDATE products
		SET quantity = quantity + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING quantity`,
		qty, productID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &models.NotFoundError{Resource: "product", ID: productID}
	}
	if err != nil {
		return 0, fmt.Errorf("failed to restock: %w", err)
	}
	return remaining, nil
}

// insertMovementTx appends one stock movement row
func insertMovementTx(ctx context.Context, tx *sqlx.Tx, m *models.StockMovement) error {
	query := `
		INSERT INTO stock_movements (product_id, movement_type, quantity, reference, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return tx.GetContext(ctx, m, query,
		m.ProductID, m.MovementType, m.Quantity, m.Reference, m.Notes, m.CreatedBy)
}

// RestockTx atomically increments quantity and records a movement of type
// "in". Used by refund approval (within its own transaction) and directly
// for manual stock-in.
func (s *Store) RestockTx(ctx context.Context, productID int64, qty int, reference, notes string, actorID int64) (*models.StockMovement, error) {
	movement := &models.StockMovement{
		ProductID:    productID,
		MovementType: models.MovementIn,
		Quantity:     qty,
		Reference:    reference,
		Notes:        notes,
		CreatedBy:    actorID,
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := restockTx(ctx, tx, productID, qty); err != nil {
			return err
		}
		return insertMovementTx(ctx, tx, movement)
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

// AdjustStockTx applies a signed manual correction. Negative adjustments use
// the same conditional guard as sale deductions so quantity can never go
// below zero.
func (s *Store) AdjustStockTx(ctx context.Context, productID int64, delta int, notes string, actorID int64) (*models.StockMovement, error) {
	movement := &models.StockMovement{
		ProductID:    productID,
		MovementType: models.MovementAdjustment,
		Quantity:     delta,
		Reference:    "",
		Notes:        notes,
		CreatedBy:    actorID,
	}

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		if delta < 0 {
			_, err = deductStockTx(ctx, tx, productID, -delta)
		} else {
			_, err = restockTx(ctx, tx, productID, delta)
		}
		if err != nil {
			return err
		}
		return insertMovementTx(ctx, tx, movement)
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}
