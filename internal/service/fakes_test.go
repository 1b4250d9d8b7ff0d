package service

import (
	"context"
	"sync"

	"pos-service/internal/models"

	"github.com/lib/pq"
)

// fakeStore is an in-memory stand-in for the SQL store. Its Tx methods keep
// the same observable contract: all-or-nothing writes, balance ceiling checks
// against current state, and the compare-and-set approval guard.
type fakeStore struct {
	mu sync.Mutex

	products  map[int64]*models.Product
	sales     map[int64]*models.Sale
	items     map[int64]*models.SaleItem
	payments  []models.Payment
	requests  map[int64]*models.RefundRequest
	refunds   []models.Refund
	movements []models.StockMovement

	nextID   int64
	invoices map[string]bool

	// forcedCollisions makes the next N sale inserts fail as duplicates.
	forcedCollisions int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products: make(map[int64]*models.Product),
		sales:    make(map[int64]*models.Sale),
		items:    make(map[int64]*models.SaleItem),
		requests: make(map[int64]*models.RefundRequest),
		invoices: make(map[string]bool),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) addProduct(p models.Product) *models.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == 0 {
		p.ID = f.id()
	}
	f.products[p.ID] = &p
	return &p
}

func uniqueViolation() error {
	return &pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"}
}

// SaleStore

func (f *fakeStore) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateSaleTx(ctx context.Context, sale *models.Sale, items []models.SaleItem, payment *models.Payment) (map[int64]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.forcedCollisions > 0 {
		f.forcedCollisions--
		return nil, uniqueViolation()
	}
	if f.invoices[sale.InvoiceNumber] {
		return nil, uniqueViolation()
	}

	// Validate every deduction before applying any, so a mid-cart stock
	// failure leaves no writes behind.
	for i := range items {
		if items[i].ProductID == nil {
			continue
		}
		product, ok := f.products[*items[i].ProductID]
		if !ok {
			return nil, &models.NotFoundError{Resource: "product", ID: *items[i].ProductID}
		}
		if product.Quantity < items[i].Quantity {
			return nil, &models.InsufficientStockError{
				ProductID:   product.ID,
				ProductName: product.Name,
				Available:   product.Quantity,
				Requested:   items[i].Quantity,
			}
		}
	}

	sale.ID = f.id()
	f.invoices[sale.InvoiceNumber] = true
	saleCopy := *sale
	f.sales[sale.ID] = &saleCopy

	remaining := make(map[int64]int, len(items))
	for i := range items {
		item := items[i]
		item.ID = f.id()
		item.SaleID = sale.ID
		f.items[item.ID] = &item

		if item.ProductID == nil {
			continue
		}
		product := f.products[*item.ProductID]
		product.Quantity -= item.Quantity
		remaining[product.ID] = product.Quantity

		f.movements = append(f.movements, models.StockMovement{
			ID:           f.id(),
			ProductID:    product.ID,
			MovementType: models.MovementOut,
			Quantity:     -item.Quantity,
			Reference:    sale.InvoiceNumber,
			CreatedBy:    sale.StaffID,
		})
	}

	if payment != nil {
		payment.ID = f.id()
		payment.SaleID = sale.ID
		f.payments = append(f.payments, *payment)
	}
	return remaining, nil
}

func (f *fakeStore) GetSaleByID(ctx context.Context, id int64) (*models.Sale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sale, ok := f.sales[id]
	if !ok {
		return nil, &models.NotFoundError{Resource: "sale", ID: id}
	}
	saleCopy := *sale
	return &saleCopy, nil
}

func (f *fakeStore) GetSales(ctx context.Context) ([]models.Sale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Sale
	for _, sale := range f.sales {
		out = append(out, *sale)
	}
	return out, nil
}

func (f *fakeStore) GetSaleItems(ctx context.Context, saleID int64) ([]models.SaleItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SaleItem
	for _, item := range f.items {
		if item.SaleID == saleID {
			out = append(out, *item)
		}
	}
	return out, nil
}

func (f *fakeStore) GetSalePayments(ctx context.Context, saleID int64) ([]models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Payment
	for _, p := range f.payments {
		if p.SaleID == saleID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateSaleCustomer(ctx context.Context, saleID int64, name, phone string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sale, ok := f.sales[saleID]
	if !ok {
		return &models.NotFoundError{Resource: "sale", ID: saleID}
	}
	sale.CustomerName = name
	sale.CustomerPhone = phone
	return nil
}

func (f *fakeStore) DeleteSale(ctx context.Context, saleID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sales[saleID]; !ok {
		return &models.NotFoundError{Resource: "sale", ID: saleID}
	}
	for _, p := range f.payments {
		if p.SaleID == saleID {
			return models.NewValidationError("sale", "sale with recorded payments cannot be deleted")
		}
	}
	delete(f.sales, saleID)
	return nil
}

// PaymentStore

func (f *fakeStore) RecordPaymentTx(ctx context.Context, saleID int64, payment *models.Payment) (*models.Sale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sale, ok := f.sales[saleID]
	if !ok {
		return nil, &models.NotFoundError{Resource: "sale", ID: saleID}
	}
	if payment.Amount.GreaterThan(sale.Balance) {
		return nil, &models.ExceedsBalanceError{Balance: sale.Balance}
	}

	payment.ID = f.id()
	payment.SaleID = saleID
	f.payments = append(f.payments, *payment)

	sale.AmountPaid = sale.AmountPaid.Add(payment.Amount)
	sale.Balance, sale.PaymentStatus = models.Reconcile(sale.Total, sale.AmountPaid)

	saleCopy := *sale
	return &saleCopy, nil
}

func (f *fakeStore) GetDebtors(ctx context.Context) ([]models.Sale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Sale
	for _, sale := range f.sales {
		if sale.Balance.IsPositive() {
			out = append(out, *sale)
		}
	}
	return out, nil
}

// RefundStore

func (f *fakeStore) CreateRefundRequest(ctx context.Context, r *models.RefundRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r.ID = f.id()
	reqCopy := *r
	f.requests[r.ID] = &reqCopy
	return nil
}

func (f *fakeStore) GetRefundsBySaleID(ctx context.Context, saleID int64) ([]models.Refund, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Refund
	for _, r := range f.refunds {
		if r.SaleID == saleID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) GetRefundRequestByID(ctx context.Context, id int64) (*models.RefundRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok {
		return nil, &models.NotFoundError{Resource: "refund request", ID: id}
	}
	reqCopy := *r
	return &reqCopy, nil
}

func (f *fakeStore) GetRefundRequests(ctx context.Context, createdBy *int64) ([]models.RefundRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.RefundRequest
	for _, r := range f.requests {
		if createdBy == nil || r.CreatedBy == *createdBy {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateRefundRequest(ctx context.Context, r *models.RefundRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.requests[r.ID]
	if !ok || stored.Status != models.RefundStatusPending {
		return &models.AlreadyProcessedError{RequestID: r.ID}
	}
	reqCopy := *r
	f.requests[r.ID] = &reqCopy
	return nil
}

func (f *fakeStore) ApproveRefundTx(ctx context.Context, req *models.RefundRequest, sale *models.Sale, item *models.SaleItem, adminID int64) (*models.Refund, *models.Sale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stored, ok := f.requests[req.ID]
	if !ok || stored.Status != models.RefundStatusPending || stored.RefundProcessed {
		return nil, nil, &models.AlreadyProcessedError{RequestID: req.ID}
	}
	if req.Amount.GreaterThan(f.sales[sale.ID].AmountPaid) {
		return nil, nil, models.NewValidationError("amount",
			"exceeds the amount paid of "+f.sales[sale.ID].AmountPaid.StringFixed(2))
	}
	stored.Status = models.RefundStatusApproved
	stored.RefundProcessed = true
	stored.ApprovedBy = &adminID
	saleID := sale.ID
	stored.SaleID = &saleID

	refund := &models.Refund{
		ID:              f.id(),
		SaleID:          sale.ID,
		RefundRequestID: req.ID,
		Amount:          req.Amount,
		Reason:          req.Reason,
		ProcessedBy:     adminID,
	}
	f.refunds = append(f.refunds, *refund)

	f.payments = append(f.payments, models.Payment{
		ID:            f.id(),
		SaleID:        sale.ID,
		Amount:        req.Amount.Neg(),
		PaymentMethod: models.PaymentMethodRefund,
		CreatedBy:     adminID,
	})

	live := f.sales[sale.ID]
	live.AmountPaid = live.AmountPaid.Sub(req.Amount)
	live.Balance, live.PaymentStatus = models.Reconcile(live.Total, live.AmountPaid)

	if item != nil && item.ProductID != nil {
		product := f.products[*item.ProductID]
		product.Quantity += item.Quantity
		f.movements = append(f.movements, models.StockMovement{
			ID:           f.id(),
			ProductID:    product.ID,
			MovementType: models.MovementIn,
			Quantity:     item.Quantity,
			CreatedBy:    adminID,
		})
	}

	saleCopy := *live
	return refund, &saleCopy, nil
}

func (f *fakeStore) DeclineRefundTx(ctx context.Context, requestID, adminID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.requests[requestID]
	if !ok || stored.Status != models.RefundStatusPending {
		return &models.AlreadyProcessedError{RequestID: requestID}
	}
	stored.Status = models.RefundStatusDeclined
	stored.ApprovedBy = &adminID
	return nil
}

func (f *fakeStore) GetSaleItemByID(ctx context.Context, id int64) (*models.SaleItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return nil, &models.NotFoundError{Resource: "sale item", ID: id}
	}
	itemCopy := *item
	return &itemCopy, nil
}

func (f *fakeStore) FindSalesByCustomer(ctx context.Context, name, phone string) ([]models.Sale, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Sale
	for _, sale := range f.sales {
		if (name != "" && sale.CustomerName == name) ||
			(phone != "" && sale.CustomerPhone == phone) {
			out = append(out, *sale)
		}
	}
	return out, nil
}

// InventoryStore

func (f *fakeStore) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, &models.NotFoundError{Resource: "product", ID: id}
	}
	pCopy := *p
	return &pCopy, nil
}

func (f *fakeStore) GetLowStockProducts(ctx context.Context) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Product
	for _, p := range f.products {
		if p.Quantity <= p.ReorderLevel {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) GetStockMovements(ctx context.Context, productID int64) ([]models.StockMovement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.StockMovement
	for _, m := range f.movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) RestockTx(ctx context.Context, productID int64, qty int, reference, notes string, actorID int64) (*models.StockMovement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok {
		return nil, &models.NotFoundError{Resource: "product", ID: productID}
	}
	p.Quantity += qty
	movement := models.StockMovement{
		ID:           f.id(),
		ProductID:    productID,
		MovementType: models.MovementIn,
		Quantity:     qty,
		Reference:    reference,
		Notes:        notes,
		CreatedBy:    actorID,
	}
	f.movements = append(f.movements, movement)
	return &movement, nil
}

func (f *fakeStore) AdjustStockTx(ctx context.Context, productID int64, delta int, notes string, actorID int64) (*models.StockMovement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok {
		return nil, &models.NotFoundError{Resource: "product", ID: productID}
	}
	if p.Quantity+delta < 0 {
		return nil, &models.InsufficientStockError{
			ProductID:   p.ID,
			ProductName: p.Name,
			Available:   p.Quantity,
			Requested:   -delta,
		}
	}
	p.Quantity += delta
	movement := models.StockMovement{
		ID:           f.id(),
		ProductID:    productID,
		MovementType: models.MovementAdjustment,
		Quantity:     delta,
		Notes:        notes,
		CreatedBy:    actorID,
	}
	f.movements = append(f.movements, movement)
	return &movement, nil
}

// CatalogStore

func (f *fakeStore) CreateProduct(ctx context.Context, product *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.SKU == product.SKU {
			return uniqueViolation()
		}
	}
	product.ID = f.id()
	pCopy := *product
	f.products[product.ID] = &pCopy
	return nil
}

func (f *fakeStore) UpdateProduct(ctx context.Context, product *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[product.ID]; !ok {
		return &models.NotFoundError{Resource: "product", ID: product.ID}
	}
	pCopy := *product
	f.products[product.ID] = &pCopy
	return nil
}

func (f *fakeStore) DeleteProduct(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.products[id]; !ok {
		return &models.NotFoundError{Resource: "product", ID: id}
	}
	delete(f.products, id)
	return nil
}

func (f *fakeStore) GetProducts(ctx context.Context) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Product
	for _, p := range f.products {
		out = append(out, *p)
	}
	return out, nil
}

// fakeCarts records cart deletions triggered by committed sales.
type fakeCarts struct {
	pendingDeleted []int64
	namedDeleted   []string
}

func (f *fakeCarts) DeletePendingCart(ctx context.Context, staffID int64) error {
	f.pendingDeleted = append(f.pendingDeleted, staffID)
	return nil
}

func (f *fakeCarts) DeleteNamedCart(ctx context.Context, staffID int64, name string) (bool, error) {
	f.namedDeleted = append(f.namedDeleted, name)
	return true, nil
}

// fakeEvents captures published domain events.
type fakeEvents struct {
	saleCreated     []*models.SaleCreatedEvent
	paymentRecorded []*models.PaymentRecordedEvent
	refundRequested []*models.RefundRequestedEvent
	refundApproved  []*models.RefundApprovedEvent
	refundDeclined  []*models.RefundDeclinedEvent
	stockLow        []*models.StockLowEvent
}

func (f *fakeEvents) PublishSaleCreated(ctx context.Context, e *models.SaleCreatedEvent) error {
	f.saleCreated = append(f.saleCreated, e)
	return nil
}

func (f *fakeEvents) PublishPaymentRecorded(ctx context.Context, e *models.PaymentRecordedEvent) error {
	f.paymentRecorded = append(f.paymentRecorded, e)
	return nil
}

func (f *fakeEvents) PublishRefundRequested(ctx context.Context, e *models.RefundRequestedEvent) error {
	f.refundRequested = append(f.refundRequested, e)
	return nil
}

func (f *fakeEvents) PublishRefundApproved(ctx context.Context, e *models.RefundApprovedEvent) error {
	f.refundApproved = append(f.refundApproved, e)
	return nil
}

func (f *fakeEvents) PublishRefundDeclined(ctx context.Context, e *models.RefundDeclinedEvent) error {
	f.refundDeclined = append(f.refundDeclined, e)
	return nil
}

func (f *fakeEvents) PublishStockLow(ctx context.Context, e *models.StockLowEvent) error {
	f.stockLow = append(f.stockLow, e)
	return nil
}
