package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestReconcile(t *testing.T) {
	balance, status := Reconcile(dec("1000.00"), dec("1000.00"))
	assert.True(t, balance.IsZero())
	assert.Equal(t, PaymentStatusPaid, status)

	balance, status = Reconcile(dec("1000.00"), dec("400.00"))
	assert.True(t, balance.Equal(dec("600.00")))
	assert.Equal(t, PaymentStatusPartial, status)

	balance, status = Reconcile(dec("1000.00"), decimal.Zero)
	assert.True(t, balance.Equal(dec("1000.00")))
	assert.Equal(t, PaymentStatusUnpaid, status)
}

func TestReconcileOverpaymentClampsToZero(t *testing.T) {
	balance, status := Reconcile(dec("100.00"), dec("150.00"))
	assert.True(t, balance.IsZero())
	assert.Equal(t, PaymentStatusPaid, status)
}

func TestNetAmountPaid(t *testing.T) {
	payments := []Payment{
		{Amount: dec("1000.00"), PaymentMethod: PaymentMethodCash},
		{Amount: dec("-300.00"), PaymentMethod: PaymentMethodRefund},
	}
	assert.True(t, NetAmountPaid(payments).Equal(dec("700.00")))

	// A fully refunded sale nets to zero, never negative.
	payments = append(payments, Payment{Amount: dec("-800.00"), PaymentMethod: PaymentMethodRefund})
	assert.True(t, NetAmountPaid(payments).IsZero())

	assert.True(t, NetAmountPaid(nil).IsZero())
}

func TestIsRealDebtor(t *testing.T) {
	sale := &Sale{Total: dec("1000.00")}

	underpaid := []Payment{{Amount: dec("400.00")}}
	assert.True(t, IsRealDebtor(sale, underpaid))

	settled := []Payment{{Amount: dec("1000.00")}}
	assert.False(t, IsRealDebtor(sale, settled))

	refunded := []Payment{
		{Amount: dec("1000.00")},
		{Amount: dec("-300.00"), PaymentMethod: PaymentMethodRefund},
	}
	assert.True(t, IsRealDebtor(sale, refunded))
}

func TestRound2(t *testing.T) {
	assert.Equal(t, "10.56", Round2(dec("10.555")).StringFixed(2))
	assert.Equal(t, "10.55", Round2(dec("10.554")).StringFixed(2))
	assert.Equal(t, "10.00", Round2(dec("10")).StringFixed(2))
}

func TestMaxZero(t *testing.T) {
	assert.True(t, MaxZero(dec("-5.00")).IsZero())
	assert.True(t, MaxZero(dec("5.00")).Equal(dec("5.00")))
	assert.True(t, MaxZero(decimal.Zero).IsZero())
}

func TestParseAmount(t *testing.T) {
	amount, err := ParseAmount("12.345")
	require.NoError(t, err)
	assert.Equal(t, "12.35", amount.StringFixed(2))

	_, err = ParseAmount("-1.00")
	assert.Error(t, err)

	_, err = ParseAmount("abc")
	assert.Error(t, err)
}

func TestMulQty(t *testing.T) {
	// 3 x 0.10 is exactly 0.30 in fixed point, no float drift.
	assert.Equal(t, "0.30", MulQty(dec("0.10"), 3).StringFixed(2))
	assert.Equal(t, "29.97", MulQty(dec("9.99"), 3).StringFixed(2))
}

func TestProductStockStatus(t *testing.T) {
	p := &Product{Quantity: 0, ReorderLevel: 5}
	assert.Equal(t, StockStatusOut, p.StockStatus())

	p.Quantity = 3
	assert.Equal(t, StockStatusLow, p.StockStatus())

	p.Quantity = 5
	assert.Equal(t, StockStatusLow, p.StockStatus())

	p.Quantity = 6
	assert.Equal(t, StockStatusIn, p.StockStatus())
}

func TestSaleIsDebtor(t *testing.T) {
	sale := &Sale{Balance: dec("0.00")}
	assert.False(t, sale.IsDebtor())

	sale.Balance = dec("0.01")
	assert.True(t, sale.IsDebtor())
}

func TestRefundRequestCanEdit(t *testing.T) {
	r := &RefundRequest{Status: RefundStatusPending}
	assert.True(t, r.CanEdit())

	r.Status = RefundStatusApproved
	assert.False(t, r.CanEdit())

	r.Status = RefundStatusDeclined
	assert.False(t, r.CanEdit())
}
