package service

import (
	"context"
	"fmt"
	"strings"

	"pos-service/internal/auth"
	"pos-service/internal/models"
	"pos-service/internal/store"
	"pos-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogStore is the persistence surface for product catalog management.
type CatalogStore interface {
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, product *models.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	GetProducts(ctx context.Context) ([]models.Product, error)
}

const maxSKURetries = 3

// CatalogService manages catalog entries. It never touches quantity after
// creation; stock changes go through the inventory ledger.
type CatalogService struct {
	store  CatalogStore
	logger *zap.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(st CatalogStore) *CatalogService {
	return &CatalogService{
		store:  st,
		logger: util.NamedLogger("catalog"),
	}
}

// ProductInput carries the writable catalog fields.
type ProductInput struct {
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	Quantity     int             `json:"quantity"`
	ReorderLevel int             `json:"reorder_level"`
}

func (in *ProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return models.NewValidationError("name", "required")
	}
	if in.Price.IsNegative() || in.CostPrice.IsNegative() {
		return models.NewValidationError("price", "must not be negative")
	}
	if in.Quantity < 0 {
		return models.NewValidationError("quantity", "must not be negative")
	}
	if in.ReorderLevel < 0 {
		return models.NewValidationError("reorder_level", "must not be negative")
	}
	return nil
}

// CreateProduct inserts a catalog entry with a generated SKU, regenerated
// on collision. Cost price is clamped to the selling price on write.
func (c *CatalogService) CreateProduct(ctx context.Context, actor auth.Actor, in ProductInput) (*models.Product, error) {
	if !auth.Can(actor, auth.ActionCatalogWrite) {
		return nil, &models.ForbiddenError{Reason: "not permitted to manage the catalog"}
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:         strings.TrimSpace(in.Name),
		Price:        models.Round2(in.Price),
		CostPrice:    clampCost(in.CostPrice, in.Price),
		Quantity:     in.Quantity,
		ReorderLevel: in.ReorderLevel,
	}

	for attempt := 0; ; attempt++ {
		product.SKU = newSKU()
		err := c.store.CreateProduct(ctx, product)
		if err == nil {
			break
		}
		if store.IsUniqueViolation(err) && attempt < maxSKURetries {
			continue
		}
		if store.IsUniqueViolation(err) {
			return nil, &models.ConflictError{Op: "product.create"}
		}
		return nil, err
	}

	c.logger.Info("Product created",
		zap.Int64("product_id", product.ID),
		zap.String("sku", product.SKU))
	return product, nil
}

// UpdateProduct edits catalog fields; quantity stays with the inventory
// ledger.
func (c *CatalogService) UpdateProduct(ctx context.Context, actor auth.Actor, productID int64, in ProductInput) (*models.Product, error) {
	if !auth.Can(actor, auth.ActionCatalogWrite) {
		return nil, &models.ForbiddenError{Reason: "not permitted to manage the catalog"}
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	product, err := c.store.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}

	product.Name = strings.TrimSpace(in.Name)
	product.Price = models.Round2(in.Price)
	product.CostPrice = clampCost(in.CostPrice, in.Price)
	product.ReorderLevel = in.ReorderLevel

	if err := c.store.UpdateProduct(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// DeleteProduct removes a catalog entry. Past sale items keep their name
// snapshot.
func (c *CatalogService) DeleteProduct(ctx context.Context, actor auth.Actor, productID int64) error {
	if !auth.Can(actor, auth.ActionCatalogWrite) {
		return &models.ForbiddenError{Reason: "not permitted to manage the catalog"}
	}
	return c.store.DeleteProduct(ctx, productID)
}

// GetProduct returns one product.
func (c *CatalogService) GetProduct(ctx context.Context, productID int64) (*models.Product, error) {
	return c.store.GetProductByID(ctx, productID)
}

// ListProducts lists the catalog, newest first.
func (c *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	return c.store.GetProducts(ctx)
}

// clampCost enforces cost ≤ price on write rather than rejecting, matching
// how the catalog treats a miskeyed cost.
func clampCost(cost, price decimal.Decimal) decimal.Decimal {
	cost = models.Round2(cost)
	price = models.Round2(price)
	if cost.GreaterThan(price) {
		return price
	}
	return cost
}

// newSKU generates a catalog SKU of the form PRD-XXXXXX.
func newSKU() string {
	return fmt.Sprintf("PRD-%s", strings.ToUpper(uuid.New().String()[:6]))
}
