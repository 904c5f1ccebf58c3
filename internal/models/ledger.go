package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryStatus of a journal entry.
type EntryStatus string

const (
	EntryDraft  EntryStatus = "draft"
	EntryPosted EntryStatus = "posted"
)

// LedgerLine is one debit or credit line of a journal entry.
type LedgerLine struct {
	LineNumber    int              `json:"line_number" csv:"line_number"`
	AccountNumber string           `json:"account_number" csv:"account_number"`
	AccountName   string           `json:"account_name" csv:"account_name"`
	Debit         decimal.Decimal  `json:"debit" csv:"debit"`
	Credit        decimal.Decimal  `json:"credit" csv:"credit"`
	Description   string           `json:"description" csv:"description"`
	VATRate       *decimal.Decimal `json:"vat_rate,omitempty" csv:"-"`
	VATCode       string           `json:"vat_code,omitempty" csv:"vat_code"`
}

// LedgerEntry is a balanced journal entry derived from one source document.
// The sum of debits always equals the sum of credits.
type LedgerEntry struct {
	ID               string          `json:"id"`
	CompanyID        string          `json:"company_id,omitempty"`
	SourceDocumentID string          `json:"source_document_id"`
	EntryDate        time.Time       `json:"entry_date"`
	PostingDate      *time.Time      `json:"posting_date,omitempty"`
	Reference        string          `json:"reference"`
	Description      string          `json:"description"`
	Currency         string          `json:"currency"`
	TotalDebit       decimal.Decimal `json:"total_debit"`
	TotalCredit      decimal.Decimal `json:"total_credit"`
	VATAmount        decimal.Decimal `json:"vat_amount"`
	Status           EntryStatus     `json:"status"`
	Lines            []LedgerLine    `json:"lines"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Totals sums the debit and credit columns of lines.
func Totals(lines []LedgerLine) (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, l := range lines {
		debit = debit.Add(l.Debit)
		credit = credit.Add(l.Credit)
	}
	return debit, credit
}

// Balanced reports whether debits equal credits to two decimals.
func (e LedgerEntry) Balanced() bool {
	d, c := Totals(e.Lines)
	return d.Round(2).Equal(c.Round(2))
}
