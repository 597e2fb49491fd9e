package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStockStatus(t *testing.T) {
	assert.Equal(t, StockOutOfStock, StockStatus(0, DefaultLowStockThreshold))
	assert.Equal(t, StockOutOfStock, StockStatus(-3, DefaultLowStockThreshold))
	assert.Equal(t, StockLow, StockStatus(1, DefaultLowStockThreshold))
	assert.Equal(t, StockLow, StockStatus(10, DefaultLowStockThreshold))
	assert.Equal(t, StockInStock, StockStatus(11, DefaultLowStockThreshold))
}

func TestValidPaymentMethod(t *testing.T) {
	for _, m := range []string{PaymentCash, PaymentCard, PaymentBankTransfer} {
		assert.True(t, ValidPaymentMethod(m), m)
	}
	assert.False(t, ValidPaymentMethod("Cash"))
	assert.False(t, ValidPaymentMethod("cheque"))
}

func TestDateOnly(t *testing.T) {
	assert.Equal(t, "2027-01-31", DateOnly("2027-01-31T00:00:00Z"))
	assert.Equal(t, "2027-01-31", DateOnly("2027-01-31"))
	assert.Equal(t, "", DateOnly(""))
}
