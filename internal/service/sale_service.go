package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pos-service/internal/auth"
	"pos-service/internal/models"
	"pos-service/internal/store"
	"pos-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SaleStore is the persistence surface the sale ledger needs.
type SaleStore interface {
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
	CreateSaleTx(ctx context.Context, sale *models.Sale, items []models.SaleItem, payment *models.Payment) (map[int64]int, error)
	GetSaleByID(ctx context.Context, id int64) (*models.Sale, error)
	GetSales(ctx context.Context) ([]models.Sale, error)
	GetSaleItems(ctx context.Context, saleID int64) ([]models.SaleItem, error)
	GetSalePayments(ctx context.Context, saleID int64) ([]models.Payment, error)
	UpdateSaleCustomer(ctx context.Context, saleID int64, name, phone string) error
	DeleteSale(ctx context.Context, saleID int64) error
}

// CartStager clears consumed carts after a sale commits.
type CartStager interface {
	DeletePendingCart(ctx context.Context, staffID int64) error
	DeleteNamedCart(ctx context.Context, staffID int64, name string) (bool, error)
}

// EventPublisher pushes domain events onto the bus. Publishing is
// fire-and-forget: a broker failure is logged, never surfaced.
type EventPublisher interface {
	PublishSaleCreated(ctx context.Context, event *models.SaleCreatedEvent) error
	PublishPaymentRecorded(ctx context.Context, event *models.PaymentRecordedEvent) error
	PublishRefundRequested(ctx context.Context, event *models.RefundRequestedEvent) error
	PublishRefundApproved(ctx context.Context, event *models.RefundApprovedEvent) error
	PublishRefundDeclined(ctx context.Context, event *models.RefundDeclinedEvent) error
	PublishStockLow(ctx context.Context, event *models.StockLowEvent) error
}

// SaleService owns the sale ledger: it turns a cart into a committed sale
// with correct decimal totals, stock deductions and the optional initial
// payment, all inside one transaction.
type SaleService struct {
	store             SaleStore
	carts             CartStager
	events            EventPublisher
	logger            *zap.Logger
	invoicePrefix     string
	maxInvoiceRetries int
	walkInCustomer    string
}

// NewSaleService creates a new sale service
func NewSaleService(st SaleStore, carts CartStager, events EventPublisher, invoicePrefix string, maxInvoiceRetries int, walkInCustomer string) *SaleService {
	return &SaleService{
		store:             st,
		carts:             carts,
		events:            events,
		logger:            util.NamedLogger("sale"),
		invoicePrefix:     invoicePrefix,
		maxInvoiceRetries: maxInvoiceRetries,
		walkInCustomer:    walkInCustomer,
	}
}

// CartLine is one resolved line of a submitted cart.
type CartLine struct {
	ProductID int64           `json:"product_id" binding:"required"`
	Quantity  int             `json:"quantity" binding:"required,min=1"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
}

// CreateSaleInput is the materialized cart handed to the ledger. The cart
// staging collaborator has already resolved it to line items.
type CreateSaleInput struct {
	Lines         []CartLine       `json:"items"`
	CustomerName  string           `json:"customer_name"`
	CustomerPhone string           `json:"customer_phone"`
	AmountPaid    decimal.Decimal  `json:"amount_paid"`
	PaymentMethod string           `json:"payment_method"`
	SaleDiscount  *decimal.Decimal `json:"sale_discount,omitempty"`
	SavedCartName string           `json:"saved_cart_name,omitempty"`
}

// CreateSale validates the cart, computes totals in fixed-point decimal and
// commits everything atomically. Any stock or validation failure leaves no
// writes behind.
func (s *SaleService) CreateSale(ctx context.Context, actor auth.Actor, in CreateSaleInput) (*models.Sale, error) {
	ctx, span := util.StartSpan(ctx, "SaleService.CreateSale")
	defer span.End()

	start := time.Now()
	defer func() {
		util.SaleCommitLatency.Observe(time.Since(start).Seconds())
	}()

	if !auth.Can(actor, auth.ActionSaleCreate) {
		return nil, &models.ForbiddenError{Reason: "not permitted to create sales"}
	}

	if len(in.Lines) == 0 {
		util.SalesFailedTotal.WithLabelValues("empty_cart").Inc()
		return nil, models.NewValidationError("items", "cart is empty")
	}
	for _, line := range in.Lines {
		if line.Quantity < 1 {
			return nil, models.NewValidationError("quantity", "must be at least 1")
		}
		if line.UnitPrice.IsNegative() || line.Discount.IsNegative() {
			return nil, models.NewValidationError("amount", "must not be negative")
		}
	}

	products, err := s.productsForLines(ctx, in.Lines)
	if err != nil {
		util.SalesFailedTotal.WithLabelValues("invalid_items").Inc()
		return nil, err
	}

	// Read-only pre-check; the transaction re-checks under the conditional
	// decrement, so a race here can only turn into a clean abort later.
	for _, line := range in.Lines {
		product := products[line.ProductID]
		if product.Quantity < line.Quantity {
			util.SalesFailedTotal.WithLabelValues("insufficient_stock").Inc()
			util.StockDeductionsFailedTotal.Inc()
			return nil, &models.InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Available:   product.Quantity,
				Requested:   line.Quantity,
			}
		}
	}

	subtotal := decimal.Zero
	itemDiscountTotal := decimal.Zero
	items := make([]models.SaleItem, 0, len(in.Lines))
	for _, line := range in.Lines {
		product := products[line.ProductID]
		lineTotal := models.Round2(models.MulQty(line.UnitPrice, line.Quantity).Sub(line.Discount))
		subtotal = subtotal.Add(models.MulQty(line.UnitPrice, line.Quantity))
		itemDiscountTotal = itemDiscountTotal.Add(line.Discount)

		productID := line.ProductID
		items = append(items, models.SaleItem{
			ProductID:   &productID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			Price:       line.UnitPrice,
			Discount:    line.Discount,
			Total:       lineTotal,
		})
	}

	subtotal = models.Round2(subtotal)
	discount := itemDiscountTotal
	if in.SaleDiscount != nil {
		discount = *in.SaleDiscount
	}
	discount = models.Round2(discount)
	if discount.IsNegative() {
		return nil, models.NewValidationError("discount", "must not be negative")
	}
	if discount.GreaterThan(subtotal) {
		util.SalesFailedTotal.WithLabelValues("invalid_discount").Inc()
		return nil, models.NewValidationError("discount", "must not exceed the subtotal")
	}
	total := subtotal.Sub(discount)

	amountPaid := models.Round2(in.AmountPaid)
	if amountPaid.IsNegative() {
		return nil, models.NewValidationError("amount_paid", "must not be negative")
	}
	balance, status := models.Reconcile(total, amountPaid)

	customerName := strings.TrimSpace(in.CustomerName)
	customerPhone := strings.TrimSpace(in.CustomerPhone)
	if amountPaid.LessThan(total) {
		// Installment sales must be attributable to a person.
		if customerName == "" {
			util.SalesFailedTotal.WithLabelValues("missing_customer").Inc()
			return nil, models.NewValidationError("customer_name", "required for installment payment")
		}
		if customerPhone == "" {
			util.SalesFailedTotal.WithLabelValues("missing_customer").Inc()
			return nil, models.NewValidationError("customer_phone", "required for installment payment")
		}
	} else if customerName == "" {
		customerName = s.walkInCustomer
	}

	var payment *models.Payment
	if amountPaid.IsPositive() {
		method := in.PaymentMethod
		if method == "" {
			method = models.PaymentMethodCash
		}
		payment = &models.Payment{
			Amount:        amountPaid,
			PaymentMethod: method,
			CreatedBy:     actor.ID,
		}
	}

	sale := &models.Sale{
		StaffID:       actor.ID,
		CustomerName:  customerName,
		CustomerPhone: customerPhone,
		Subtotal:      subtotal,
		Discount:      discount,
		Total:         total,
		AmountPaid:    amountPaid,
		Balance:       balance,
		PaymentStatus: status,
	}

	var remaining map[int64]int
	for attempt := 0; ; attempt++ {
		sale.InvoiceNumber = s.newInvoiceNumber()
		remaining, err = s.store.CreateSaleTx(ctx, sale, items, payment)
		if err == nil {
			break
		}
		if store.IsUniqueViolation(err) && attempt < s.maxInvoiceRetries {
			s.logger.Warn("Invoice number collision, regenerating",
				zap.String("invoice_number", sale.InvoiceNumber))
			continue
		}
		if store.IsUniqueViolation(err) {
			util.SalesFailedTotal.WithLabelValues("invoice_conflict").Inc()
			return nil, &models.ConflictError{Op: "sale.create"}
		}
		util.SalesFailedTotal.WithLabelValues("tx_failed").Inc()
		return nil, err
	}

	util.SalesCreatedTotal.Inc()
	s.logger.Info("Sale committed",
		zap.Int64("sale_id", sale.ID),
		zap.String("invoice_number", sale.InvoiceNumber),
		zap.String("total", sale.Total.StringFixed(2)),
		zap.String("payment_status", sale.PaymentStatus))

	s.afterCommit(ctx, actor, sale, items, products, remaining, in.SavedCartName)

	return sale, nil
}

// afterCommit runs the post-commit side effects: cart cleanup and event
// publication. All best-effort; the sale is already durable.
func (s *SaleService) afterCommit(ctx context.Context, actor auth.Actor, sale *models.Sale, items []models.SaleItem, products map[int64]*models.Product, remaining map[int64]int, savedCartName string) {
	if err := s.carts.DeletePendingCart(ctx, actor.ID); err != nil {
		s.logger.Warn("Failed to clear pending cart", zap.Int64("staff_id", actor.ID), zap.Error(err))
	}
	if savedCartName != "" {
		if _, err := s.carts.DeleteNamedCart(ctx, actor.ID, savedCartName); err != nil {
			s.logger.Warn("Failed to delete saved cart",
				zap.Int64("staff_id", actor.ID),
				zap.String("cart_name", savedCartName),
				zap.Error(err))
		}
	}

	eventItems := make([]models.SaleItemData, 0, len(items))
	for _, item := range items {
		var productID int64
		if item.ProductID != nil {
			productID = *item.ProductID
		}
		eventItems = append(eventItems, models.SaleItemData{
			ProductID:   productID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.Price.StringFixed(2),
		})
	}

	event := &models.SaleCreatedEvent{
		BaseEvent:     newBaseEvent(models.EventTypeSaleCreated),
		SaleID:        sale.ID,
		InvoiceNumber: sale.InvoiceNumber,
		StaffID:       sale.StaffID,
		CustomerName:  sale.CustomerName,
		Total:         sale.Total.StringFixed(2),
		Balance:       sale.Balance.StringFixed(2),
		PaymentStatus: sale.PaymentStatus,
		Items:         eventItems,
	}
	if err := s.events.PublishSaleCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish SaleCreated event", zap.Error(err))
	}

	for productID, left := range remaining {
		product := products[productID]
		if product == nil || left > product.ReorderLevel {
			continue
		}
		low := &models.StockLowEvent{
			BaseEvent:   newBaseEvent(models.EventTypeStockLow),
			ProductID:   productID,
			ProductName: product.Name,
			Quantity:    left,
		}
		if err := s.events.PublishStockLow(ctx, low); err != nil {
			s.logger.Error("Failed to publish StockLow event", zap.Error(err))
		}
	}
}

// productsForLines loads every referenced product and verifies existence.
func (s *SaleService) productsForLines(ctx context.Context, lines []CartLine) (map[int64]*models.Product, error) {
	ids := make([]int64, len(lines))
	for i, line := range lines {
		ids[i] = line.ProductID
	}

	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	productMap := make(map[int64]*models.Product, len(products))
	for i := range products {
		productMap[products[i].ID] = &products[i]
	}
	for _, line := range lines {
		if productMap[line.ProductID] == nil {
			return nil, &models.NotFoundError{Resource: "product", ID: line.ProductID}
		}
	}
	return productMap, nil
}

// newInvoiceNumber builds a globally unique invoice number. The random
// suffix plus the unique index (with collision retry) keeps numbers from
// ever being reused.
func (s *SaleService) newInvoiceNumber() string {
	suffix := strings.ToUpper(uuid.New().String()[:6])
	return fmt.Sprintf("%s-%s-%s", s.invoicePrefix, time.Now().Format("20060102"), suffix)
}

// GetSale returns a sale with its items and payment ledger.
func (s *SaleService) GetSale(ctx context.Context, saleID int64) (*models.Sale, []models.SaleItem, []models.Payment, error) {
	sale, err := s.store.GetSaleByID(ctx, saleID)
	if err != nil {
		return nil, nil, nil, err
	}
	items, err := s.store.GetSaleItems(ctx, saleID)
	if err != nil {
		return nil, nil, nil, err
	}
	payments, err := s.store.GetSalePayments(ctx, saleID)
	if err != nil {
		return nil, nil, nil, err
	}
	return sale, items, payments, nil
}

// ListSales lists all sales, newest first.
func (s *SaleService) ListSales(ctx context.Context) ([]models.Sale, error) {
	return s.store.GetSales(ctx)
}

// UpdateReceiptCustomer edits the customer fields on an existing receipt.
func (s *SaleService) UpdateReceiptCustomer(ctx context.Context, actor auth.Actor, saleID int64, name, phone string) error {
	if !auth.Can(actor, auth.ActionSaleCreate) {
		return &models.ForbiddenError{Reason: "not permitted to edit receipts"}
	}
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)
	if name == "" {
		return models.NewValidationError("customer_name", "required")
	}
	if phone == "" {
		return models.NewValidationError("customer_phone", "required")
	}
	return s.store.UpdateSaleCustomer(ctx, saleID, name, phone)
}

// DeleteSale removes a sale; refused once any payment exists so the ledger
// audit trail survives.
func (s *SaleService) DeleteSale(ctx context.Context, actor auth.Actor, saleID int64) error {
	if !auth.Can(actor, auth.ActionSaleDelete) {
		return &models.ForbiddenError{Reason: "not permitted to delete sales"}
	}
	return s.store.DeleteSale(ctx, saleID)
}
