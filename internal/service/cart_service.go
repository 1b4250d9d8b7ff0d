package service

import (
	"context"
	"encoding/json"

	"pos-service/internal/auth"
	"pos-service/internal/models"
	"pos-service/internal/util"

	"go.uber.org/zap"
)

// CartStore is the staging surface for in-progress carts: one pending cart
// per staff member plus named saved carts.
type CartStore interface {
	SavePendingCart(ctx context.Context, staffID int64, blob []byte) error
	LoadPendingCart(ctx context.Context, staffID int64) ([]byte, error)
	DeletePendingCart(ctx context.Context, staffID int64) error
	SaveNamedCart(ctx context.Context, staffID int64, name string, blob []byte) error
	LoadNamedCart(ctx context.Context, staffID int64, name string) ([]byte, error)
	ListNamedCarts(ctx context.Context, staffID int64) (map[string][]byte, error)
	DeleteNamedCart(ctx context.Context, staffID int64, name string) (bool, error)
}

// CartService stages carts for the POS client. The blob stays opaque to the
// core: it is only required to be valid JSON, and its line items are parsed
// nowhere but the sale ledger's materialized input.
type CartService struct {
	store  CartStore
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(st CartStore) *CartService {
	return &CartService{
		store:  st,
		logger: util.NamedLogger("cart"),
	}
}

// SavePending stores the actor's single in-progress cart, replacing any
// previous one.
func (c *CartService) SavePending(ctx context.Context, actor auth.Actor, blob json.RawMessage) error {
	if !json.Valid(blob) {
		return models.NewValidationError("cart", "not valid JSON")
	}
	return c.store.SavePendingCart(ctx, actor.ID, blob)
}

// LoadPending returns the actor's pending cart, or nil when none exists.
func (c *CartService) LoadPending(ctx context.Context, actor auth.Actor) (json.RawMessage, error) {
	return c.store.LoadPendingCart(ctx, actor.ID)
}

// DeletePending discards the actor's pending cart.
func (c *CartService) DeletePending(ctx context.Context, actor auth.Actor) error {
	return c.store.DeletePendingCart(ctx, actor.ID)
}

// SaveNamed stores a cart under a name for later recall.
func (c *CartService) SaveNamed(ctx context.Context, actor auth.Actor, name string, blob json.RawMessage) error {
	if name == "" {
		return models.NewValidationError("cart_name", "required")
	}
	if !json.Valid(blob) {
		return models.NewValidationError("cart", "not valid JSON")
	}
	return c.store.SaveNamedCart(ctx, actor.ID, name, blob)
}

// LoadNamed returns one saved cart by name.
func (c *CartService) LoadNamed(ctx context.Context, actor auth.Actor, name string) (json.RawMessage, error) {
	blob, err := c.store.LoadNamedCart(ctx, actor.ID, name)
	if err != nil {
		return nil, err
	}
	if blob == nil {
		return nil, &models.NotFoundError{Resource: "saved cart"}
	}
	return blob, nil
}

// ListNamed returns the actor's saved carts keyed by name.
func (c *CartService) ListNamed(ctx context.Context, actor auth.Actor) (map[string]json.RawMessage, error) {
	raw, err := c.store.ListNamedCarts(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	carts := make(map[string]json.RawMessage, len(raw))
	for name, blob := range raw {
		carts[name] = blob
	}
	return carts, nil
}

// DeleteNamed removes one saved cart; absent carts are a NotFound, never a
// silent success.
func (c *CartService) DeleteNamed(ctx context.Context, actor auth.Actor, name string) error {
	removed, err := c.store.DeleteNamedCart(ctx, actor.ID, name)
	if err != nil {
		return err
	}
	if !removed {
		return &models.NotFoundError{Resource: "saved cart"}
	}
	c.logger.Debug("Saved cart deleted",
		zap.Int64("staff_id", actor.ID),
		zap.String("cart_name", name))
	return nil
}
