package worker

import (
	"context"
	"fmt"

	"pos-service/internal/broker"
	"pos-service/internal/models"
	"pos-service/internal/redisclient"
	"pos-service/internal/util"

	"go.uber.org/zap"
)

// Notifier is the notification side-channel the worker pushes into.
type Notifier interface {
	PushNotification(ctx context.Context, userID int64, category, message string) error
	ClearCategory(ctx context.Context, userID int64, category string) error
}

// AdminDirectory lists the users that receive admin-wide broadcasts.
type AdminDirectory interface {
	GetAdminUsers(ctx context.Context) ([]models.User, error)
}

// NotificationWorker consumes ledger events and fans them out to user
// notification feeds. It sits behind the broker so a slow or failing
// side-channel never touches the ledger's write path.
type NotificationWorker struct {
	consumer *broker.Consumer
	handler  *broker.EventHandler
	notifier Notifier
	admins   AdminDirectory
	logger   *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer, notifier Notifier, admins AdminDirectory) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		handler:  broker.NewEventHandler(),
		notifier: notifier,
		admins:   admins,
		logger:   util.NamedLogger("notifications"),
	}

	w.handler.OnSaleCreated(w.handleSaleCreated)
	w.handler.OnPaymentRecorded(w.handlePaymentRecorded)
	w.handler.OnRefundRequested(w.handleRefundRequested)
	w.handler.OnRefundApproved(w.handleRefundApproved)
	w.handler.OnRefundDeclined(w.handleRefundDeclined)
	w.handler.OnStockLow(w.handleStockLow)

	return w
}

// Start starts consuming until the context is cancelled
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.handler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

// broadcastAdmins pushes one message to every admin's category feed.
func (w *NotificationWorker) broadcastAdmins(ctx context.Context, category, message string) error {
	admins, err := w.admins.GetAdminUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list admins: %w", err)
	}
	for _, admin := range admins {
		if err := w.notifier.PushNotification(ctx, admin.ID, category, message); err != nil {
			w.logger.Error("Failed to push notification",
				zap.Int64("user_id", admin.ID),
				zap.String("category", category),
				zap.Error(err))
		}
	}
	return nil
}

func (w *NotificationWorker) handleSaleCreated(ctx context.Context, event *models.SaleCreatedEvent) error {
	msg := fmt.Sprintf("Sale %s for %s completed (%s)",
		event.InvoiceNumber, event.Total, event.PaymentStatus)

	if err := w.notifier.PushNotification(ctx, event.StaffID, redisclient.CategorySales, msg); err != nil {
		w.logger.Error("Failed to notify staff", zap.Error(err))
	}
	return w.broadcastAdmins(ctx, redisclient.CategoryDashboard, msg)
}

func (w *NotificationWorker) handlePaymentRecorded(ctx context.Context, event *models.PaymentRecordedEvent) error {
	if event.PaymentStatus == models.PaymentStatusPaid {
		// Fully settled: the debtor entry disappears instead of piling on.
		admins, err := w.admins.GetAdminUsers(ctx)
		if err != nil {
			return fmt.Errorf("failed to list admins: %w", err)
		}
		for _, admin := range admins {
			if err := w.notifier.ClearCategory(ctx, admin.ID, redisclient.CategoryDebtors); err != nil {
				w.logger.Error("Failed to clear debtor notifications",
					zap.Int64("user_id", admin.ID), zap.Error(err))
			}
		}
		return nil
	}

	msg := fmt.Sprintf("Payment of %s received on sale %d, balance %s outstanding",
		event.Amount, event.SaleID, event.Balance)
	return w.broadcastAdmins(ctx, redisclient.CategoryDebtors, msg)
}

func (w *NotificationWorker) handleRefundRequested(ctx context.Context, event *models.RefundRequestedEvent) error {
	msg := fmt.Sprintf("Refund request #%d for %s (%s)",
		event.RequestID, event.Amount, event.CustomerName)

	if err := w.notifier.PushNotification(ctx, event.CreatedBy, redisclient.CategoryRefunds, msg); err != nil {
		w.logger.Error("Failed to notify requester", zap.Error(err))
	}
	return w.broadcastAdmins(ctx, redisclient.CategoryRefunds, msg)
}

func (w *NotificationWorker) handleRefundApproved(ctx context.Context, event *models.RefundApprovedEvent) error {
	if err := w.notifier.ClearCategory(ctx, event.ApprovedBy, redisclient.CategoryRefunds); err != nil {
		w.logger.Error("Failed to clear refund notifications",
			zap.Int64("user_id", event.ApprovedBy), zap.Error(err))
	}

	msg := fmt.Sprintf("Refund #%d of %s approved on sale %d",
		event.RefundID, event.Amount, event.SaleID)
	return w.broadcastAdmins(ctx, redisclient.CategoryDashboard, msg)
}

func (w *NotificationWorker) handleRefundDeclined(ctx context.Context, event *models.RefundDeclinedEvent) error {
	msg := fmt.Sprintf("Refund request #%d was declined", event.RequestID)
	return w.broadcastAdmins(ctx, redisclient.CategoryRefunds, msg)
}

func (w *NotificationWorker) handleStockLow(ctx context.Context, event *models.StockLowEvent) error {
	msg := fmt.Sprintf("%s is low on stock: %d left", event.ProductName, event.Quantity)
	return w.broadcastAdmins(ctx, redisclient.CategoryDashboard, msg)
}
