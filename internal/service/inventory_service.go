package service

import (
	"context"

	"pos-service/internal/auth"
	"pos-service/internal/models"
	"pos-service/internal/util"

	"go.uber.org/zap"
)

// InventoryStore is the persistence surface the inventory ledger needs.
// Sale deductions do not appear here: they only ever run inside the sale
// transaction via the store's CreateSaleTx.
type InventoryStore interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetLowStockProducts(ctx context.Context) ([]models.Product, error)
	GetStockMovements(ctx context.Context, productID int64) ([]models.StockMovement, error)
	RestockTx(ctx context.Context, productID int64, qty int, reference, notes string, actorID int64) (*models.StockMovement, error)
	AdjustStockTx(ctx context.Context, productID int64, delta int, notes string, actorID int64) (*models.StockMovement, error)
}

// InventoryService owns product stock quantity. Every mutation appends
// exactly one StockMovement row; quantity is the only product field it
// touches.
type InventoryService struct {
	store  InventoryStore
	logger *zap.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(st InventoryStore) *InventoryService {
	return &InventoryService{
		store:  st,
		logger: util.NamedLogger("inventory"),
	}
}

// CheckAvailability is the read-only pre-check used before committing a
// sale. It does not reserve: the sale transaction re-checks under its
// conditional decrement.
func (i *InventoryService) CheckAvailability(ctx context.Context, productID int64, requested int) error {
	product, err := i.store.GetProductByID(ctx, productID)
	if err != nil {
		return err
	}
	if product.Quantity < requested {
		return &models.InsufficientStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Available:   product.Quantity,
			Requested:   requested,
		}
	}
	return nil
}

// Restock atomically increments quantity and records a movement of type
// "in" (supplier delivery, manual stock-in).
func (i *InventoryService) Restock(ctx context.Context, actor auth.Actor, productID int64, qty int, reference, notes string) (*models.StockMovement, error) {
	if !auth.Can(actor, auth.ActionInventoryAdjust) {
		return nil, &models.ForbiddenError{Reason: "not permitted to restock"}
	}
	if qty < 1 {
		return nil, models.NewValidationError("quantity", "must be at least 1")
	}

	movement, err := i.store.RestockTx(ctx, productID, qty, reference, notes, actor.ID)
	if err != nil {
		return nil, err
	}

	i.logger.Info("Stock in",
		zap.Int64("product_id", productID),
		zap.Int("quantity", qty),
		zap.String("reference", reference))
	return movement, nil
}

// Adjust applies a signed manual correction, recorded as a movement of type
// "adjustment". Negative corrections fail rather than drive quantity below
// zero.
func (i *InventoryService) Adjust(ctx context.Context, actor auth.Actor, productID int64, delta int, notes string) (*models.StockMovement, error) {
	if !auth.Can(actor, auth.ActionInventoryAdjust) {
		return nil, &models.ForbiddenError{Reason: "not permitted to adjust stock"}
	}
	if delta == 0 {
		return nil, models.NewValidationError("quantity", "adjustment must be non-zero")
	}

	movement, err := i.store.AdjustStockTx(ctx, productID, delta, notes, actor.ID)
	if err != nil {
		return nil, err
	}

	i.logger.Info("Stock adjusted",
		zap.Int64("product_id", productID),
		zap.Int("delta", delta))
	return movement, nil
}

// Movements returns the audit trail for a product, newest first.
func (i *InventoryService) Movements(ctx context.Context, productID int64) ([]models.StockMovement, error) {
	if _, err := i.store.GetProductByID(ctx, productID); err != nil {
		return nil, err
	}
	return i.store.GetStockMovements(ctx, productID)
}

// LowStock lists products at or below their reorder level.
func (i *InventoryService) LowStock(ctx context.Context) ([]models.Product, error) {
	return i.store.GetLowStockProducts(ctx)
}
