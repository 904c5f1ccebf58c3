package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNewMoney(t *testing.T) {
	amount := decimal.NewFromFloat(100.50)
	money := NewMoney(amount, "CHF")

	assert.Equal(t, amount, money.Amount)
	assert.Equal(t, "CHF", money.Currency)
}

func TestWithinCent(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"1000.00", "1000.009", true},
		{"1000.00", "999.991", true},
		{"1000.00", "1000.01", false},
		{"1000.00", "999.99", false},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, WithinCent(decimal.RequireFromString(tt.a), decimal.RequireFromString(tt.b)))
		})
	}
}
