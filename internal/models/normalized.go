package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// NormalizedInvoice is the explicit input of classification and posting.
// Optional amounts are nil when the source record did not carry them.
type NormalizedInvoice struct {
	SourceDocumentID string           `json:"source_document_id"`
	CompanyID        string           `json:"company_id,omitempty"`
	InvoiceNumber    string           `json:"invoice_number,omitempty"`
	CounterpartyID   string           `json:"counterparty_id,omitempty"`
	CounterpartyName string           `json:"counterparty_name,omitempty"`
	Description      string           `json:"description,omitempty"`
	Category         string           `json:"category,omitempty"`
	Currency         string           `json:"currency,omitempty"`
	Date             time.Time        `json:"date"`
	DueDate          time.Time        `json:"due_date"`
	Gross            *decimal.Decimal `json:"gross,omitempty"`
	Net              *decimal.Decimal `json:"net,omitempty"`
	VATAmount        *decimal.Decimal `json:"vat_amount,omitempty"`
	VATRate          *decimal.Decimal `json:"vat_rate,omitempty"`
	Confidence       *float64         `json:"confidence,omitempty"`
}

// CounterpartyKey returns the key used for learned overrides: the
// counterparty id when known, else its name.
func (n NormalizedInvoice) CounterpartyKey() string {
	if n.CounterpartyID != "" {
		return n.CounterpartyID
	}
	return n.CounterpartyName
}

// SearchText joins the fields scanned by keyword rules.
func (n NormalizedInvoice) SearchText() string {
	return n.CounterpartyName + " " + n.Description + " " + n.Category
}

// GrossAmount returns the gross amount or zero.
func (n NormalizedInvoice) GrossAmount() decimal.Decimal {
	if n.Gross == nil {
		return decimal.Zero
	}
	return *n.Gross
}

// DecimalPtr is a helper for optional amounts.
func DecimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
