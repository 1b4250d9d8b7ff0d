package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Client wraps Redis for the two side-channels the core pushes into:
// per-user notification feeds and staff cart staging. Both are best-effort
// collaborators; losing them never invalidates ledger state.
type Client struct {
	rdb *redis.Client
}

// Notification categories
const (
	CategoryDashboard = "dashboard"
	CategoryDebtors   = "debtors"
	CategoryRefunds   = "refunds"
	CategorySales     = "sales"
)

// Notification is one entry in a user's per-category feed.
type Notification struct {
	Message   string    `json:"message"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func notifKey(userID int64, category string) string {
	return fmt.Sprintf("notif:%d:%s", userID, category)
}

// PushNotification appends a notification to a user's category feed.
func (c *Client) PushNotification(ctx context.Context, userID int64, category, message string) error {
	n := Notification{Message: message, Category: category, CreatedAt: time.Now()}
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return c.rdb.RPush(ctx, notifKey(userID, category), payload).Err()
}

// UnreadCount returns the number of unread notifications in one category.
func (c *Client) UnreadCount(ctx context.Context, userID int64, category string) (int64, error) {
	return c.rdb.LLen(ctx, notifKey(userID, category)).Result()
}

// ListNotifications returns all unread notifications in one category.
func (c *Client) ListNotifications(ctx context.Context, userID int64, category string) ([]Notification, error) {
	raw, err := c.rdb.LRange(ctx, notifKey(userID, category), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	notifications := make([]Notification, 0, len(raw))
	for _, item := range raw {
		var n Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			continue
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

// ClearCategory empties a user's category feed (mark-read and the
// clear-debtors signal on full payment both land here).
func (c *Client) ClearCategory(ctx context.Context, userID int64, category string) error {
	return c.rdb.Del(ctx, notifKey(userID, category)).Err()
}

func pendingCartKey(staffID int64) string {
	return fmt.Sprintf("cart:pending:%d", staffID)
}

func savedCartKey(staffID int64) string {
	return fmt.Sprintf("cart:saved:%d", staffID)
}

// SavePendingCart stores the single in-progress cart for a staff member as
// an opaque JSON blob. Overwrites any previous pending cart.
func (c *Client) SavePendingCart(ctx context.Context, staffID int64, blob []byte) error {
	return c.rdb.Set(ctx, pendingCartKey(staffID), blob, 0).Err()
}

// LoadPendingCart retrieves the pending cart blob, or nil when none exists.
func (c *Client) LoadPendingCart(ctx context.Context, staffID int64) ([]byte, error) {
	blob, err := c.rdb.Get(ctx, pendingCartKey(staffID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return blob, err
}

// DeletePendingCart clears the pending cart after a committed sale.
func (c *Client) DeletePendingCart(ctx context.Context, staffID int64) error {
	return c.rdb.Del(ctx, pendingCartKey(staffID)).Err()
}

// SaveNamedCart stores a named saved cart in the staff member's hash.
func (c *Client) SaveNamedCart(ctx context.Context, staffID int64, name string, blob []byte) error {
	return c.rdb.HSet(ctx, savedCartKey(staffID), name, blob).Err()
}

// LoadNamedCart retrieves a saved cart by name, or nil when absent.
func (c *Client) LoadNamedCart(ctx context.Context, staffID int64, name string) ([]byte, error) {
	blob, err := c.rdb.HGet(ctx, savedCartKey(staffID), name).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return blob, err
}

// ListNamedCarts returns the staff member's saved carts keyed by name.
func (c *Client) ListNamedCarts(ctx context.Context, staffID int64) (map[string][]byte, error) {
	raw, err := c.rdb.HGetAll(ctx, savedCartKey(staffID)).Result()
	if err != nil {
		return nil, err
	}
	carts := make(map[string][]byte, len(raw))
	for name, blob := range raw {
		carts[name] = []byte(blob)
	}
	return carts, nil
}

// DeleteNamedCart removes one saved cart. Returns whether it existed.
func (c *Client) DeleteNamedCart(ctx context.Context, staffID int64, name string) (bool, error) {
	removed, err := c.rdb.HDel(ctx, savedCartKey(staffID), name).Result()
	return removed > 0, err
}
