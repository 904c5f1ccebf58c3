package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBankTransaction_Direction(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		incoming bool
		kind     InvoiceKind
	}{
		{name: "credit settles receivable", amount: "1000.00", incoming: true, kind: KindReceivable},
		{name: "debit settles payable", amount: "-250.40", incoming: false, kind: KindPayable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := BankTransaction{Amount: decimal.RequireFromString(tt.amount)}
			assert.Equal(t, tt.incoming, tx.IsIncoming())
			assert.Equal(t, !tt.incoming, tx.IsOutgoing())
			assert.Equal(t, tt.kind, tx.CandidateKind())
			assert.True(t, tx.AbsAmount().IsPositive())
		})
	}
}

func TestBankTransaction_Text(t *testing.T) {
	tx := BankTransaction{Description: "Payment INV-1 ", Reference: "", CounterpartyName: "Acme SA"}
	assert.Equal(t, "Payment INV-1 Acme SA", tx.Text())
}

func TestReconciliationStatus(t *testing.T) {
	assert.True(t, StatusAutoMatched.IsMatched())
	assert.True(t, StatusManualMatched.IsMatched())
	assert.False(t, StatusSuggested.IsMatched())
	assert.False(t, StatusUnmatched.IsMatched())
	assert.False(t, ReconciliationStatus("bogus").Valid())
}

func TestInvoice_RemainingAndStatus(t *testing.T) {
	inv := Invoice{Amount: decimal.NewFromInt(1000), PaidAmount: decimal.NewFromInt(400)}
	assert.Equal(t, "600", inv.Remaining().String())

	inv.PaidAmount = decimal.NewFromInt(1200)
	assert.True(t, inv.Remaining().IsZero())

	assert.True(t, InvoiceOverdue.IsOpen())
	assert.True(t, InvoicePartial.IsOpen())
	assert.False(t, InvoicePaid.IsOpen())
	assert.False(t, InvoiceDraft.IsOpen())
	assert.False(t, InvoiceCancelled.IsOpen())
}

func TestLedgerEntry_Balanced(t *testing.T) {
	entry := LedgerEntry{Lines: []LedgerLine{
		{Debit: decimal.RequireFromString("1000.00")},
		{Debit: decimal.RequireFromString("81.00")},
		{Credit: decimal.RequireFromString("1081.00")},
	}}
	assert.True(t, entry.Balanced())

	entry.Lines[1].Debit = decimal.RequireFromString("80.99")
	assert.False(t, entry.Balanced())
}

func TestNormalizedInvoice_CounterpartyKey(t *testing.T) {
	assert.Equal(t, "sup-1", NormalizedInvoice{CounterpartyID: "sup-1", CounterpartyName: "Swisscom"}.CounterpartyKey())
	assert.Equal(t, "Swisscom", NormalizedInvoice{CounterpartyName: "Swisscom"}.CounterpartyKey())
	assert.True(t, NormalizedInvoice{}.GrossAmount().IsZero())
}
