package service

import (
	"context"
	"time"

	"pos-service/internal/auth"
	"pos-service/internal/models"
	"pos-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentStore is the persistence surface the payment ledger needs.
type PaymentStore interface {
	RecordPaymentTx(ctx context.Context, saleID int64, payment *models.Payment) (*models.Sale, error)
	GetSaleByID(ctx context.Context, id int64) (*models.Sale, error)
	GetSalePayments(ctx context.Context, saleID int64) ([]models.Payment, error)
	GetDebtors(ctx context.Context) ([]models.Sale, error)
}

// PaymentService owns the append-only payment ledger against sales and the
// derived debtor view.
type PaymentService struct {
	store  PaymentStore
	events EventPublisher
	logger *zap.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(st PaymentStore, events EventPublisher) *PaymentService {
	return &PaymentService{
		store:  st,
		events: events,
		logger: util.NamedLogger("payment"),
	}
}

// RecordPayment appends a positive payment to a sale's ledger and
// reconciles the sale. A payment can never overpay: amounts above the
// outstanding balance are rejected inside the transaction against the
// locked row.
func (p *PaymentService) RecordPayment(ctx context.Context, actor auth.Actor, saleID int64, amount decimal.Decimal, method, reference, notes string) (*models.Sale, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.RecordPayment")
	defer span.End()

	if !auth.Can(actor, auth.ActionPaymentRecord) {
		return nil, &models.ForbiddenError{Reason: "not permitted to record payments"}
	}

	amount = models.Round2(amount)
	if !amount.IsPositive() {
		util.PaymentsRejectedTotal.WithLabelValues("invalid_amount").Inc()
		return nil, models.NewValidationError("amount", "must be greater than zero")
	}
	if method == "" {
		method = models.PaymentMethodCash
	}

	payment := &models.Payment{
		Amount:        amount,
		PaymentMethod: method,
		Reference:     reference,
		Notes:         notes,
		CreatedBy:     actor.ID,
	}

	sale, err := p.store.RecordPaymentTx(ctx, saleID, payment)
	if err != nil {
		if _, ok := err.(*models.ExceedsBalanceError); ok {
			util.PaymentsRejectedTotal.WithLabelValues("exceeds_balance").Inc()
		}
		return nil, err
	}

	util.PaymentsRecordedTotal.Inc()
	p.logger.Info("Payment recorded",
		zap.Int64("sale_id", sale.ID),
		zap.Int64("payment_id", payment.ID),
		zap.String("amount", amount.StringFixed(2)),
		zap.String("new_balance", sale.Balance.StringFixed(2)))

	event := &models.PaymentRecordedEvent{
		BaseEvent:     newBaseEvent(models.EventTypePaymentRecorded),
		SaleID:        sale.ID,
		PaymentID:     payment.ID,
		Amount:        amount.StringFixed(2),
		Balance:       sale.Balance.StringFixed(2),
		PaymentStatus: sale.PaymentStatus,
		RecordedBy:    actor.ID,
	}
	if err := p.events.PublishPaymentRecorded(ctx, event); err != nil {
		p.logger.Error("Failed to publish PaymentRecorded event", zap.Error(err))
	}

	return sale, nil
}

// PaymentHistory returns the full ledger for a sale, newest first.
func (p *PaymentService) PaymentHistory(ctx context.Context, saleID int64) (*models.Sale, []models.Payment, error) {
	sale, err := p.store.GetSaleByID(ctx, saleID)
	if err != nil {
		return nil, nil, err
	}
	payments, err := p.store.GetSalePayments(ctx, saleID)
	if err != nil {
		return nil, nil, err
	}
	return sale, payments, nil
}

// NetAmountPaid computes the refund-aware net paid for a sale from its
// ledger entries. This, not the stored header, is the authoritative revenue
// figure once refunds exist.
func (p *PaymentService) NetAmountPaid(ctx context.Context, saleID int64) (decimal.Decimal, error) {
	payments, err := p.store.GetSalePayments(ctx, saleID)
	if err != nil {
		return decimal.Zero, err
	}
	return models.NetAmountPaid(payments), nil
}

// IsRealDebtor distinguishes a sale whose amount_paid was reduced by refunds
// from one that was simply underpaid.
func (p *PaymentService) IsRealDebtor(ctx context.Context, saleID int64) (bool, error) {
	sale, err := p.store.GetSaleByID(ctx, saleID)
	if err != nil {
		return false, err
	}
	payments, err := p.store.GetSalePayments(ctx, saleID)
	if err != nil {
		return false, err
	}
	return models.IsRealDebtor(sale, payments), nil
}

// ListDebtors lists sales with an outstanding balance.
func (p *PaymentService) ListDebtors(ctx context.Context) ([]models.Sale, error) {
	return p.store.GetDebtors(ctx)
}

// newBaseEvent stamps a fresh event envelope.
func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}
