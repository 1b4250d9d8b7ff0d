package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"pos-service/internal/auth"
	"pos-service/internal/models"
	"pos-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RefundStore is the persistence surface the refund workflow needs.
type RefundStore interface {
	CreateRefundRequest(ctx context.Context, r *models.RefundRequest) error
	GetRefundRequestByID(ctx context.Context, id int64) (*models.RefundRequest, error)
	GetRefundRequests(ctx context.Context, createdBy *int64) ([]models.RefundRequest, error)
	UpdateRefundRequest(ctx context.Context, r *models.RefundRequest) error
	ApproveRefundTx(ctx context.Context, req *models.RefundRequest, sale *models.Sale, item *models.SaleItem, adminID int64) (*models.Refund, *models.Sale, error)
	DeclineRefundTx(ctx context.Context, requestID, adminID int64) error
	GetRefundsBySaleID(ctx context.Context, saleID int64) ([]models.Refund, error)
	GetSaleByID(ctx context.Context, id int64) (*models.Sale, error)
	GetSaleItemByID(ctx context.Context, id int64) (*models.SaleItem, error)
	FindSalesByCustomer(ctx context.Context, name, phone string) ([]models.Sale, error)
}

// RefundService runs the request/approval state machine:
// pending → approved | declined, both terminal. Approval is the only path
// that moves money or stock, and it does both in one transaction.
type RefundService struct {
	store  RefundStore
	events EventPublisher
	logger *zap.Logger
}

// NewRefundService creates a new refund service
func NewRefundService(st RefundStore, events EventPublisher) *RefundService {
	return &RefundService{
		store:  st,
		events: events,
		logger: util.NamedLogger("refund"),
	}
}

// CreateRefundInput carries a proposed refund. SaleID and SaleItemID are
// optional; when both are absent the sale is resolved by customer matching.
type CreateRefundInput struct {
	SaleID        *int64          `json:"sale_id,omitempty"`
	SaleItemID    *int64          `json:"sale_item_id,omitempty"`
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	Reason        string          `json:"reason"`
	Amount        decimal.Decimal `json:"amount"`
}

// CreateRequest validates the requested amount against its ceiling (item
// total, sale amount paid, or the best-matching sale) and files a pending
// request with the ceiling snapshotted as original_amount.
func (r *RefundService) CreateRequest(ctx context.Context, actor auth.Actor, in CreateRefundInput) (*models.RefundRequest, error) {
	ctx, span := util.StartSpan(ctx, "RefundService.CreateRequest")
	defer span.End()

	if !auth.Can(actor, auth.ActionRefundCreate) {
		return nil, &models.ForbiddenError{Reason: "not permitted to request refunds"}
	}

	amount := models.Round2(in.Amount)
	if !amount.IsPositive() {
		return nil, models.NewValidationError("amount", "must be greater than zero")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, models.NewValidationError("reason", "required")
	}

	request := &models.RefundRequest{
		SaleID:        in.SaleID,
		SaleItemID:    in.SaleItemID,
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerPhone: strings.TrimSpace(in.CustomerPhone),
		Reason:        reason,
		Amount:        amount,
		Status:        models.RefundStatusPending,
		CreatedBy:     actor.ID,
	}

	switch {
	case in.SaleItemID != nil:
		item, err := r.store.GetSaleItemByID(ctx, *in.SaleItemID)
		if err != nil {
			return nil, err
		}
		if amount.GreaterThan(item.Total) {
			return nil, models.NewValidationError("amount",
				"exceeds the item total of "+item.Total.StringFixed(2))
		}
		request.OriginalAmount = item.Total
		request.SaleID = &item.SaleID

	case in.SaleID != nil:
		sale, err := r.store.GetSaleByID(ctx, *in.SaleID)
		if err != nil {
			return nil, err
		}
		if amount.GreaterThan(sale.AmountPaid) {
			return nil, models.NewValidationError("amount",
				"exceeds the amount paid of "+sale.AmountPaid.StringFixed(2))
		}
		request.OriginalAmount = sale.AmountPaid

	default:
		sale, err := r.resolveSaleByCustomer(ctx, request.CustomerName, request.CustomerPhone, amount)
		if err != nil {
			return nil, err
		}
		request.SaleID = &sale.ID
		request.OriginalAmount = sale.AmountPaid
	}

	if err := r.store.CreateRefundRequest(ctx, request); err != nil {
		return nil, err
	}

	util.RefundRequestsTotal.Inc()
	r.logger.Info("Refund request created",
		zap.Int64("request_id", request.ID),
		zap.String("amount", amount.StringFixed(2)),
		zap.Int64("created_by", actor.ID))

	event := &models.RefundRequestedEvent{
		BaseEvent:    newBaseEvent(models.EventTypeRefundRequested),
		RequestID:    request.ID,
		CustomerName: request.CustomerName,
		Amount:       amount.StringFixed(2),
		CreatedBy:    actor.ID,
	}
	if err := r.events.PublishRefundRequested(ctx, event); err != nil {
		r.logger.Error("Failed to publish RefundRequested event", zap.Error(err))
	}

	return request, nil
}

// EditRequestInput carries the editable fields of a pending request.
type EditRequestInput struct {
	CustomerName  string          `json:"customer_name"`
	CustomerPhone string          `json:"customer_phone"`
	Reason        string          `json:"reason"`
	Amount        decimal.Decimal `json:"amount"`
}

// EditRequest updates a request while it is still pending. Only the creator
// or an admin may edit.
func (r *RefundService) EditRequest(ctx context.Context, actor auth.Actor, requestID int64, in EditRequestInput) (*models.RefundRequest, error) {
	request, err := r.store.GetRefundRequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !auth.CanEditRefund(actor, request) {
		if !request.CanEdit() {
			return nil, &models.AlreadyProcessedError{RequestID: requestID}
		}
		return nil, &models.ForbiddenError{Reason: "only the creator or an admin may edit a refund request"}
	}

	amount := models.Round2(in.Amount)
	if !amount.IsPositive() {
		return nil, models.NewValidationError("amount", "must be greater than zero")
	}

	request.CustomerName = strings.TrimSpace(in.CustomerName)
	request.CustomerPhone = strings.TrimSpace(in.CustomerPhone)
	request.Reason = strings.TrimSpace(in.Reason)
	request.Amount = amount

	if err := r.store.UpdateRefundRequest(ctx, request); err != nil {
		return nil, err
	}
	return request, nil
}

// Approve executes an approved refund: one Refund artifact, one negative
// payment, a reconciled sale and, for item-scoped requests, the restock.
// The refund_processed guard in the store serializes concurrent approvals;
// the second caller gets AlreadyProcessed.
func (r *RefundService) Approve(ctx context.Context, actor auth.Actor, requestID int64) (*models.Refund, *models.Sale, error) {
	ctx, span := util.StartSpan(ctx, "RefundService.Approve")
	defer span.End()

	start := time.Now()
	defer func() {
		util.RefundApprovalLatency.Observe(time.Since(start).Seconds())
	}()

	if !auth.Can(actor, auth.ActionRefundApprove) {
		return nil, nil, &models.ForbiddenError{Reason: "only admins may approve refunds"}
	}

	request, err := r.store.GetRefundRequestByID(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}
	if request.Status != models.RefundStatusPending || request.RefundProcessed {
		return nil, nil, &models.AlreadyProcessedError{RequestID: requestID}
	}

	var sale *models.Sale
	if request.SaleID != nil {
		sale, err = r.store.GetSaleByID(ctx, *request.SaleID)
		if err != nil {
			return nil, nil, err
		}
		if request.Amount.GreaterThan(sale.AmountPaid) {
			return nil, nil, models.NewValidationError("amount",
				"exceeds the amount paid of "+sale.AmountPaid.StringFixed(2))
		}
	} else {
		sale, err = r.resolveSaleByCustomer(ctx, request.CustomerName, request.CustomerPhone, request.Amount)
		if err != nil {
			return nil, nil, err
		}
	}

	var item *models.SaleItem
	if request.SaleItemID != nil {
		item, err = r.store.GetSaleItemByID(ctx, *request.SaleItemID)
		if err != nil {
			return nil, nil, err
		}
	}

	refund, reconciled, err := r.store.ApproveRefundTx(ctx, request, sale, item, actor.ID)
	if err != nil {
		return nil, nil, err
	}

	util.RefundsApprovedTotal.Inc()
	r.logger.Info("Refund approved",
		zap.Int64("request_id", requestID),
		zap.Int64("refund_id", refund.ID),
		zap.Int64("sale_id", sale.ID),
		zap.String("amount", refund.Amount.StringFixed(2)),
		zap.Int64("approved_by", actor.ID))

	event := &models.RefundApprovedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeRefundApproved),
		RequestID:  requestID,
		RefundID:   refund.ID,
		SaleID:     sale.ID,
		Amount:     refund.Amount.StringFixed(2),
		ApprovedBy: actor.ID,
	}
	if err := r.events.PublishRefundApproved(ctx, event); err != nil {
		r.logger.Error("Failed to publish RefundApproved event", zap.Error(err))
	}

	return refund, reconciled, nil
}

// Decline marks a pending request declined. Terminal; no money or stock
// moves.
func (r *RefundService) Decline(ctx context.Context, actor auth.Actor, requestID int64) error {
	if !auth.Can(actor, auth.ActionRefundDecline) {
		return &models.ForbiddenError{Reason: "only admins may decline refunds"}
	}

	if err := r.store.DeclineRefundTx(ctx, requestID, actor.ID); err != nil {
		var already *models.AlreadyProcessedError
		if errors.As(err, &already) {
			// Distinguish "gone" from "settled" for the caller.
			if _, getErr := r.store.GetRefundRequestByID(ctx, requestID); getErr != nil {
				return getErr
			}
		}
		return err
	}

	util.RefundsDeclinedTotal.Inc()
	r.logger.Info("Refund request declined",
		zap.Int64("request_id", requestID),
		zap.Int64("declined_by", actor.ID))

	event := &models.RefundDeclinedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeRefundDeclined),
		RequestID:  requestID,
		DeclinedBy: actor.ID,
	}
	if err := r.events.PublishRefundDeclined(ctx, event); err != nil {
		r.logger.Error("Failed to publish RefundDeclined event", zap.Error(err))
	}

	return nil
}

// ListRequests returns refund requests visible to the actor: admins see all,
// staff see their own.
func (r *RefundService) ListRequests(ctx context.Context, actor auth.Actor) ([]models.RefundRequest, error) {
	if actor.IsAdmin() {
		return r.store.GetRefundRequests(ctx, nil)
	}
	return r.store.GetRefundRequests(ctx, &actor.ID)
}

// GetRequest returns one refund request.
func (r *RefundService) GetRequest(ctx context.Context, requestID int64) (*models.RefundRequest, error) {
	return r.store.GetRefundRequestByID(ctx, requestID)
}

// RefundsForSale lists the executed refunds against a sale.
func (r *RefundService) RefundsForSale(ctx context.Context, saleID int64) ([]models.Refund, error) {
	if _, err := r.store.GetSaleByID(ctx, saleID); err != nil {
		return nil, err
	}
	return r.store.GetRefundsBySaleID(ctx, saleID)
}

// resolveSaleByCustomer is the best-effort fallback when a request carries
// no sale link: exact case-insensitive match on name or phone, most recent
// sale whose paid amount covers the refund. Inherently ambiguous, so callers
// should supply an explicit sale reference whenever they have one.
func (r *RefundService) resolveSaleByCustomer(ctx context.Context, name, phone string, amount decimal.Decimal) (*models.Sale, error) {
	if name == "" && phone == "" {
		return nil, models.NewValidationError("customer", "customer name or phone required to resolve the sale")
	}

	candidates, err := r.store.FindSalesByCustomer(ctx, name, phone)
	if err != nil {
		return nil, err
	}
	for i := range candidates {
		if candidates[i].AmountPaid.GreaterThanOrEqual(amount) {
			return &candidates[i], nil
		}
	}
	return nil, &models.NoMatchingSaleError{CustomerName: name, CustomerPhone: phone}
}
