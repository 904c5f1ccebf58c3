package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationStatus is the lifecycle state of a bank transaction.
type ReconciliationStatus string

const (
	StatusUnmatched     ReconciliationStatus = "unmatched"
	StatusSuggested     ReconciliationStatus = "suggested"
	StatusAutoMatched   ReconciliationStatus = "auto_matched"
	StatusManualMatched ReconciliationStatus = "manual_matched"
)

// IsMatched reports whether the transaction is linked to an invoice.
func (s ReconciliationStatus) IsMatched() bool {
	return s == StatusAutoMatched || s == StatusManualMatched
}

// Valid reports whether s is a known status.
func (s ReconciliationStatus) Valid() bool {
	switch s {
	case StatusUnmatched, StatusSuggested, StatusAutoMatched, StatusManualMatched:
		return true
	}
	return false
}

// BankTransaction is a normalized bank statement line owned by the repository.
type BankTransaction struct {
	ID               string               `json:"id"`
	CompanyID        string               `json:"company_id"`
	Date             time.Time            `json:"date"`
	Amount           decimal.Decimal      `json:"amount"`
	Currency         string               `json:"currency"`
	Description      string               `json:"description"`
	Reference        string               `json:"reference,omitempty"`
	CounterpartyName string               `json:"counterparty_name,omitempty"`
	Status           ReconciliationStatus `json:"status"`
	MatchedInvoiceID string               `json:"matched_invoice_id,omitempty"`
	MatchedKind      InvoiceKind          `json:"matched_invoice_kind,omitempty"`
	Confidence       float64              `json:"confidence,omitempty"`
	ReconciledAt     *time.Time           `json:"reconciled_at,omitempty"`
}

// IsIncoming returns true for money received (credit on the account).
func (t BankTransaction) IsIncoming() bool {
	return t.Amount.IsPositive()
}

// IsOutgoing returns true for money paid out (debit on the account).
func (t BankTransaction) IsOutgoing() bool {
	return t.Amount.IsNegative()
}

// AbsAmount returns the unsigned transaction amount.
func (t BankTransaction) AbsAmount() decimal.Decimal {
	return t.Amount.Abs()
}

// CandidateKind returns the invoice kind this transaction may settle.
// Positive amounts settle receivables, negative amounts settle payables.
func (t BankTransaction) CandidateKind() InvoiceKind {
	if t.IsOutgoing() {
		return KindPayable
	}
	return KindReceivable
}

// Text joins the free-text fields used for reference matching.
func (t BankTransaction) Text() string {
	parts := make([]string, 0, 3)
	for _, s := range []string{t.Description, t.Reference, t.CounterpartyName} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// ReconciliationUpdate carries the fields written by a status transition.
// An empty InvoiceID clears the invoice link.
type ReconciliationUpdate struct {
	Status       ReconciliationStatus
	InvoiceID    string
	InvoiceKind  InvoiceKind
	Confidence   float64
	ReconciledAt *time.Time
}
