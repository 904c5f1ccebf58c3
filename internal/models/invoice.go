package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceKind distinguishes client invoices from supplier invoices.
type InvoiceKind string

const (
	KindReceivable InvoiceKind = "receivable"
	KindPayable    InvoiceKind = "payable"
)

// Valid reports whether k is a known kind.
func (k InvoiceKind) Valid() bool {
	return k == KindReceivable || k == KindPayable
}

// InvoiceStatus is the settlement state of an invoice.
type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceSent      InvoiceStatus = "sent"
	InvoicePending   InvoiceStatus = "pending"
	InvoicePartial   InvoiceStatus = "partial"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// OpenInvoiceStatuses lists the statuses eligible for matching.
var OpenInvoiceStatuses = []InvoiceStatus{InvoiceSent, InvoicePending, InvoiceOverdue, InvoicePartial}

// IsOpen reports whether an invoice in this status still expects payment.
func (s InvoiceStatus) IsOpen() bool {
	for _, open := range OpenInvoiceStatuses {
		if s == open {
			return true
		}
	}
	return false
}

// Invoice is a receivable or payable. Amount never changes once issued.
type Invoice struct {
	ID               string          `json:"id"`
	CompanyID        string          `json:"company_id"`
	Number           string          `json:"number"`
	Kind             InvoiceKind     `json:"kind"`
	CounterpartyID   string          `json:"counterparty_id,omitempty"`
	CounterpartyName string          `json:"counterparty_name"`
	Amount           decimal.Decimal `json:"amount"`
	PaidAmount       decimal.Decimal `json:"paid_amount"`
	Currency         string          `json:"currency"`
	IssueDate        time.Time       `json:"issue_date"`
	DueDate          time.Time       `json:"due_date"`
	Status           InvoiceStatus   `json:"status"`
	PaymentReference string          `json:"payment_reference,omitempty"`
}

// Remaining returns the amount still to be paid, never negative.
func (i Invoice) Remaining() decimal.Decimal {
	r := i.Amount.Sub(i.PaidAmount)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}

// InvoiceRef identifies an invoice across both kinds.
type InvoiceRef struct {
	ID   string      `json:"id"`
	Kind InvoiceKind `json:"kind"`
}
