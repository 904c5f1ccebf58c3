// Package ledger turns normalized supplier invoices into balanced journal
// entries and persists them once per source document.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"fjacquet/recon-ledger/internal/accounts"
	"fjacquet/recon-ledger/internal/classifier"
	"fjacquet/recon-ledger/internal/models"
	"fjacquet/recon-ledger/internal/reconerror"
	"fjacquet/recon-ledger/internal/tax"

	"github.com/shopspring/decimal"
)

const (
	referencePrefix  = "DOC-"
	unknownSupplier  = "Fournisseur"
	referenceIDChars = 8
)

// Override replaces parts of the computed posting. Empty fields keep the
// computed value.
type Override struct {
	DebitAccount  string `json:"debit_account,omitempty" yaml:"debit_account"`
	CreditAccount string `json:"credit_account,omitempty" yaml:"credit_account"`
	Label         string `json:"label,omitempty" yaml:"label"`
	VATDeductible *bool  `json:"vat_deductible,omitempty" yaml:"vat_deductible"`
}

// IsZero reports whether o changes nothing.
func (o *Override) IsZero() bool {
	return o == nil || (o.DebitAccount == "" && o.CreditAccount == "" && o.Label == "" && o.VATDeductible == nil)
}

func (o *Override) apply(cl classifier.Classification) classifier.Classification {
	if o.IsZero() {
		return cl
	}
	if o.DebitAccount != "" && o.DebitAccount != cl.Account {
		cl.Account = o.DebitAccount
		cl.Label = accounts.AccountName(o.DebitAccount)
		cl.Category = ""
	}
	if o.Label != "" {
		cl.Label = o.Label
	}
	if o.VATDeductible != nil {
		cl.VATDeductible = *o.VATDeductible
	}
	cl.Strategy = "manual"
	cl.Fallback = false
	return cl
}

// Draft is an unsaved entry together with the decisions that produced it.
type Draft struct {
	Entry          models.LedgerEntry        `json:"entry"`
	Classification classifier.Classification `json:"classification"`
	Split          tax.Split                 `json:"split"`
}

// Reference returns the invoice number, else DOC- followed by the first
// characters of the source document id.
func Reference(inv models.NormalizedInvoice) string {
	if n := strings.TrimSpace(inv.InvoiceNumber); n != "" {
		return n
	}
	id := inv.SourceDocumentID
	if len(id) > referenceIDChars {
		id = id[:referenceIDChars]
	}
	return referencePrefix + strings.ToUpper(id)
}

// build classifies and splits inv and lays out the lines. The expense line
// carries gross minus the VAT line so debits always equal the credit.
func (s *Service) build(ctx context.Context, inv models.NormalizedInvoice, override *Override) (Draft, error) {
	if inv.Date.IsZero() {
		return Draft{}, reconerror.NewValidationError("date", "invoice date is missing")
	}

	cl, err := s.classifier.Classify(ctx, inv)
	if err != nil {
		return Draft{}, fmt.Errorf("classify %s: %w", inv.SourceDocumentID, err)
	}
	cl = override.apply(cl)

	split, err := s.splitter.Split(tax.InputFromInvoice(inv), cl.VATDeductible)
	if err != nil {
		return Draft{}, err
	}

	credit := s.payablesAccount
	if override != nil && override.CreditAccount != "" {
		credit = override.CreditAccount
	}

	supplier := strings.TrimSpace(inv.CounterpartyName)
	if supplier == "" {
		supplier = unknownSupplier
	}
	reference := Reference(inv)
	currency := strings.ToUpper(strings.TrimSpace(inv.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}

	vatLine := decimal.Zero
	if cl.VATDeductible && split.VAT.IsPositive() {
		vatLine = split.VAT
	}
	expense := split.Gross.Sub(vatLine)

	lines := []models.LedgerLine{{
		AccountNumber: cl.Account,
		AccountName:   accountLabel(cl),
		Debit:         expense,
		Credit:        decimal.Zero,
		Description:   cl.Label,
	}}
	if vatLine.IsPositive() {
		rate := split.Rate
		lines = append(lines, models.LedgerLine{
			AccountNumber: s.vatAccount,
			AccountName:   accounts.AccountName(s.vatAccount),
			Debit:         vatLine,
			Credit:        decimal.Zero,
			Description:   fmt.Sprintf("TVA %s%% sur %s", rate.String(), cl.Label),
			VATRate:       &rate,
			VATCode:       accounts.VATCode(rate),
		})
	}
	lines = append(lines, models.LedgerLine{
		AccountNumber: credit,
		AccountName:   accounts.AccountName(credit),
		Debit:         decimal.Zero,
		Credit:        split.Gross,
		Description:   supplier + " - " + reference,
	})
	for i := range lines {
		lines[i].LineNumber = i + 1
	}

	debit, creditTotal := models.Totals(lines)
	entry := models.LedgerEntry{
		CompanyID:        inv.CompanyID,
		SourceDocumentID: inv.SourceDocumentID,
		EntryDate:        inv.Date,
		Reference:        reference,
		Description:      cl.Label + " - " + supplier,
		Currency:         currency,
		TotalDebit:       debit,
		TotalCredit:      creditTotal,
		VATAmount:        vatLine,
		Status:           models.EntryDraft,
		Lines:            lines,
	}
	if !entry.Balanced() {
		return Draft{}, fmt.Errorf("entry for %s is unbalanced: debit %s, credit %s",
			inv.SourceDocumentID, debit.StringFixed(2), creditTotal.StringFixed(2))
	}
	return Draft{Entry: entry, Classification: cl, Split: split}, nil
}

func accountLabel(cl classifier.Classification) string {
	if cl.Label != "" {
		return cl.Label
	}
	return accounts.AccountName(cl.Account)
}
