package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"pos-service/internal/models"
	"pos-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher publishes the ledger's domain events, keyed so all events
// of one sale land on one partition in submission order.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishSaleCreated publishes SaleCreated event
func (ep *EventPublisher) PublishSaleCreated(ctx context.Context, event *models.SaleCreatedEvent) error {
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("sale-%d", event.SaleID), event)
}

// PublishPaymentRecorded publishes PaymentRecorded event
func (ep *EventPublisher) PublishPaymentRecorded(ctx context.Context, event *models.PaymentRecordedEvent) error {
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("sale-%d", event.SaleID), event)
}

// PublishRefundRequested publishes RefundRequested event
func (ep *EventPublisher) PublishRefundRequested(ctx context.Context, event *models.RefundRequestedEvent) error {
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("refund-%d", event.RequestID), event)
}

// PublishRefundApproved publishes RefundApproved event
func (ep *EventPublisher) PublishRefundApproved(ctx context.Context, event *models.RefundApprovedEvent) error {
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("sale-%d", event.SaleID), event)
}

// PublishRefundDeclined publishes RefundDeclined event
func (ep *EventPublisher) PublishRefundDeclined(ctx context.Context, event *models.RefundDeclinedEvent) error {
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("refund-%d", event.RequestID), event)
}

// PublishStockLow publishes StockLow event
func (ep *EventPublisher) PublishStockLow(ctx context.Context, event *models.StockLowEvent) error {
	return ep.producer.PublishEvent(ctx, fmt.Sprintf("product-%d", event.ProductID), event)
}

// EventHandler routes consumed messages to registered callbacks.
type EventHandler struct {
	logger *zap.Logger

	onSaleCreated     func(context.Context, *models.SaleCreatedEvent) error
	onPaymentRecorded func(context.Context, *models.PaymentRecordedEvent) error
	onRefundRequested func(context.Context, *models.RefundRequestedEvent) error
	onRefundApproved  func(context.Context, *models.RefundApprovedEvent) error
	onRefundDeclined  func(context.Context, *models.RefundDeclinedEvent) error
	onStockLow        func(context.Context, *models.StockLowEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.NamedLogger("events")}
}

// OnSaleCreated registers a handler for SaleCreated events
func (eh *EventHandler) OnSaleCreated(handler func(context.Context, *models.SaleCreatedEvent) error) {
	eh.onSaleCreated = handler
}

// OnPaymentRecorded registers a handler for PaymentRecorded events
func (eh *EventHandler) OnPaymentRecorded(handler func(context.Context, *models.PaymentRecordedEvent) error) {
	eh.onPaymentRecorded = handler
}

// OnRefundRequested registers a handler for RefundRequested events
func (eh *EventHandler) OnRefundRequested(handler func(context.Context, *models.RefundRequestedEvent) error) {
	eh.onRefundRequested = handler
}

// OnRefundApproved registers a handler for RefundApproved events
func (eh *EventHandler) OnRefundApproved(handler func(context.Context, *models.RefundApprovedEvent) error) {
	eh.onRefundApproved = handler
}

// OnRefundDeclined registers a handler for RefundDeclined events
func (eh *EventHandler) OnRefundDeclined(handler func(context.Context, *models.RefundDeclinedEvent) error) {
	eh.onRefundDeclined = handler
}

// OnStockLow registers a handler for StockLow events
func (eh *EventHandler) OnStockLow(handler func(context.Context, *models.StockLowEvent) error) {
	eh.onStockLow = handler
}

// HandleMessage routes messages to the appropriate handler
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeSaleCreated:
		if eh.onSaleCreated != nil {
			var event models.SaleCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal SaleCreated event: %w", err)
			}
			return eh.onSaleCreated(ctx, &event)
		}

	case models.EventTypePaymentRecorded:
		if eh.onPaymentRecorded != nil {
			var event models.PaymentRecordedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentRecorded event: %w", err)
			}
			return eh.onPaymentRecorded(ctx, &event)
		}

	case models.EventTypeRefundRequested:
		if eh.onRefundRequested != nil {
			var event models.RefundRequestedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal RefundRequested event: %w", err)
			}
			return eh.onRefundRequested(ctx, &event)
		}

	case models.EventTypeRefundApproved:
		if eh.onRefundApproved != nil {
			var event models.RefundApprovedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal RefundApproved event: %w", err)
			}
			return eh.onRefundApproved(ctx, &event)
		}

	case models.EventTypeRefundDeclined:
		if eh.onRefundDeclined != nil {
			var event models.RefundDeclinedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal RefundDeclined event: %w", err)
			}
			return eh.onRefundDeclined(ctx, &event)
		}

	case models.EventTypeStockLow:
		if eh.onStockLow != nil {
			var event models.StockLowEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal StockLow event: %w", err)
			}
			return eh.onStockLow(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
