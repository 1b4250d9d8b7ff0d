package service

import (
	"context"
	"testing"

	"pos-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedInstallmentSale commits an 80.00 sale with 30.00 paid up front.
func seedInstallmentSale(t *testing.T, st *fakeStore) *models.Sale {
	t.Helper()
	product := st.addProduct(models.Product{Name: "Rice 5kg", Price: dec("80.00"), Quantity: 20})
	svc, _, _ := newTestSaleService(st)

	sale, err := svc.CreateSale(context.Background(), staffActor, CreateSaleInput{
		Lines:         []CartLine{{ProductID: product.ID, Quantity: 1, UnitPrice: dec("80.00")}},
		AmountPaid:    dec("30.00"),
		CustomerName:  "Akosua Mensah",
		CustomerPhone: "0244123456",
	})
	require.NoError(t, err)
	return sale
}

func TestRecordPaymentReconciles(t *testing.T) {
	st := newFakeStore()
	sale := seedInstallmentSale(t, st)
	events := &fakeEvents{}
	svc := NewPaymentService(st, events)

	updated, err := svc.RecordPayment(context.Background(), staffActor, sale.ID, dec("20.00"), "", "", "")
	require.NoError(t, err)
	assert.True(t, updated.AmountPaid.Equal(dec("50.00")))
	assert.True(t, updated.Balance.Equal(dec("30.00")))
	assert.Equal(t, models.PaymentStatusPartial, updated.PaymentStatus)

	// Empty method defaults to cash.
	payments, err := st.GetSalePayments(context.Background(), sale.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, models.PaymentMethodCash, payments[1].PaymentMethod)

	require.Len(t, events.paymentRecorded, 1)
	assert.Equal(t, "30.00", events.paymentRecorded[0].Balance)

	// Settling the remainder flips status to paid.
	updated, err = svc.RecordPayment(context.Background(), staffActor, sale.ID, dec("30.00"), models.PaymentMethodTransfer, "MOMO-123", "")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, updated.PaymentStatus)
	assert.True(t, updated.Balance.IsZero())
}

func TestRecordPaymentExceedsBalance(t *testing.T) {
	st := newFakeStore()
	sale := seedInstallmentSale(t, st)
	svc := NewPaymentService(st, &fakeEvents{})

	_, err := svc.RecordPayment(context.Background(), staffActor, sale.ID, dec("50.01"), "", "", "")
	var exceeds *models.ExceedsBalanceError
	require.ErrorAs(t, err, &exceeds)
	assert.True(t, exceeds.Balance.Equal(dec("50.00")))

	// The rejected payment left no ledger entry.
	payments, err := st.GetSalePayments(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestRecordPaymentInvalidAmounts(t *testing.T) {
	st := newFakeStore()
	sale := seedInstallmentSale(t, st)
	svc := NewPaymentService(st, &fakeEvents{})

	_, err := svc.RecordPayment(context.Background(), staffActor, sale.ID, dec("0"), "", "", "")
	var validation *models.ValidationError
	require.ErrorAs(t, err, &validation)

	_, err = svc.RecordPayment(context.Background(), staffActor, sale.ID, dec("-5.00"), "", "", "")
	require.ErrorAs(t, err, &validation)
}

func TestRecordPaymentUnknownSale(t *testing.T) {
	st := newFakeStore()
	svc := NewPaymentService(st, &fakeEvents{})

	_, err := svc.RecordPayment(context.Background(), staffActor, 404, dec("10.00"), "", "", "")
	var notFound *models.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestListDebtors(t *testing.T) {
	st := newFakeStore()
	sale := seedInstallmentSale(t, st)
	svc := NewPaymentService(st, &fakeEvents{})

	debtors, err := svc.ListDebtors(context.Background())
	require.NoError(t, err)
	require.Len(t, debtors, 1)
	assert.Equal(t, sale.ID, debtors[0].ID)

	// Settle the balance; the debtor list empties.
	_, err = svc.RecordPayment(context.Background(), staffActor, sale.ID, dec("50.00"), "", "", "")
	require.NoError(t, err)

	debtors, err = svc.ListDebtors(context.Background())
	require.NoError(t, err)
	assert.Empty(t, debtors)
}

func TestNetAmountPaidAfterRefund(t *testing.T) {
	st := newFakeStore()
	sale := seedInstallmentSale(t, st)
	paySvc := NewPaymentService(st, &fakeEvents{})

	_, err := paySvc.RecordPayment(context.Background(), staffActor, sale.ID, dec("50.00"), "", "", "")
	require.NoError(t, err)

	refundSvc := NewRefundService(st, &fakeEvents{})
	saleID := sale.ID
	request, err := refundSvc.CreateRequest(context.Background(), staffActor, CreateRefundInput{
		SaleID: &saleID,
		Reason: "damaged packaging",
		Amount: dec("30.00"),
	})
	require.NoError(t, err)
	_, _, err = refundSvc.Approve(context.Background(), adminActor, request.ID)
	require.NoError(t, err)

	net, err := paySvc.NetAmountPaid(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.True(t, net.Equal(dec("50.00")))

	// Net below total marks a real debtor even though the header once read paid.
	real, err := paySvc.IsRealDebtor(context.Background(), sale.ID)
	require.NoError(t, err)
	assert.True(t, real)
}
