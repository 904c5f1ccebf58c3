package reconciliation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"fjacquet/recon-ledger/internal/dateutils"
	"fjacquet/recon-ledger/internal/models"
	"fjacquet/recon-ledger/internal/reconerror"

	"github.com/shopspring/decimal"
)

// PendingSuggestions returns the suggestions awaiting review for company,
// best score first.
func (o *Orchestrator) PendingSuggestions(ctx context.Context, companyID string) ([]models.Suggestion, error) {
	out, err := o.store.Suggestions().ListByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("list suggestions of %s: %w", companyID, err)
	}
	sortSuggestions(out)
	return out, nil
}

// Report summarizes the reconciliation state of a period.
type Report struct {
	CompanyID          string          `json:"company_id"`
	From               time.Time       `json:"from"`
	To                 time.Time       `json:"to"`
	Total              int             `json:"total"`
	Automatic          int             `json:"automatic"`
	Manual             int             `json:"manual"`
	Pending            int             `json:"pending"`
	Unreconciled       int             `json:"unreconciled"`
	ReconciliationRate float64         `json:"reconciliation_rate"`
	AutomationRate     float64         `json:"automation_rate"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	ReconciledAmount   decimal.Decimal `json:"reconciled_amount"`
	UnreconciledAmount decimal.Decimal `json:"unreconciled_amount"`
}

// ReconciliationReport counts the transactions of company dated within
// [from, to]. Zero bounds are open.
func (o *Orchestrator) ReconciliationReport(ctx context.Context, companyID string, from, to time.Time) (Report, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return Report{}, reconerror.NewValidationError("period", "end before start")
	}
	txs, err := o.store.Transactions().ListByCompany(ctx, companyID, from, to)
	if err != nil {
		return Report{}, fmt.Errorf("list transactions of %s: %w", companyID, err)
	}

	r := Report{
		CompanyID:          companyID,
		From:               from,
		To:                 to,
		TotalAmount:        decimal.Zero,
		ReconciledAmount:   decimal.Zero,
		UnreconciledAmount: decimal.Zero,
	}
	for _, tx := range txs {
		r.Total++
		amount := tx.AbsAmount()
		r.TotalAmount = r.TotalAmount.Add(amount)
		switch tx.Status {
		case models.StatusAutoMatched:
			r.Automatic++
		case models.StatusManualMatched:
			r.Manual++
		case models.StatusSuggested:
			r.Pending++
		default:
			r.Unreconciled++
		}
		if tx.Status.IsMatched() {
			r.ReconciledAmount = r.ReconciledAmount.Add(amount)
		} else {
			r.UnreconciledAmount = r.UnreconciledAmount.Add(amount)
		}
	}

	reconciled := r.Automatic + r.Manual
	if r.Total > 0 {
		r.ReconciliationRate = ratio(reconciled, r.Total)
	}
	if reconciled > 0 {
		r.AutomationRate = ratio(r.Automatic, reconciled)
	}
	return r, nil
}

func ratio(part, whole int) float64 {
	v, _ := decimal.NewFromInt(int64(part)).Div(decimal.NewFromInt(int64(whole))).Round(4).Float64()
	return v
}

// Aging bucket names.
const (
	BucketCurrent = "current"
	Bucket1To30   = "1_30"
	Bucket31To60  = "31_60"
	Bucket61To90  = "61_90"
	BucketOver90  = "over_90"
)

// BucketNames lists the aging buckets in order.
var BucketNames = []string{BucketCurrent, Bucket1To30, Bucket31To60, Bucket61To90, BucketOver90}

// AgingBucket totals the open invoices of one bucket.
type AgingBucket struct {
	Name   string          `json:"name" csv:"bucket"`
	Count  int             `json:"count" csv:"count"`
	Amount decimal.Decimal `json:"amount" csv:"amount"`
}

// AgingItem is one open invoice.
type AgingItem struct {
	InvoiceID    string          `json:"invoice_id" csv:"invoice_id"`
	Number       string          `json:"number" csv:"number"`
	Counterparty string          `json:"counterparty" csv:"counterparty"`
	DueDate      time.Time       `json:"due_date" csv:"-"`
	DaysOverdue  int             `json:"days_overdue" csv:"days_overdue"`
	Remaining    decimal.Decimal `json:"remaining" csv:"remaining"`
	Currency     string          `json:"currency" csv:"currency"`
	Bucket       string          `json:"bucket" csv:"bucket"`
}

// AgingReport buckets the remaining amounts of open invoices by days past
// due.
type AgingReport struct {
	CompanyID string             `json:"company_id"`
	Kind      models.InvoiceKind `json:"kind"`
	AsOf      time.Time          `json:"as_of"`
	Buckets   []AgingBucket      `json:"buckets"`
	Items     []AgingItem        `json:"items"`
	Total     decimal.Decimal    `json:"total"`
}

// BucketFor returns the bucket of an invoice that is daysOverdue days past
// due.
func BucketFor(daysOverdue int) string {
	switch {
	case daysOverdue <= 0:
		return BucketCurrent
	case daysOverdue <= 30:
		return Bucket1To30
	case daysOverdue <= 60:
		return Bucket31To60
	case daysOverdue <= 90:
		return Bucket61To90
	default:
		return BucketOver90
	}
}

// Aging reports the open invoices of company and kind as of asOf. A zero
// asOf uses today.
func (o *Orchestrator) Aging(ctx context.Context, companyID string, kind models.InvoiceKind, asOf time.Time) (AgingReport, error) {
	if !kind.Valid() {
		return AgingReport{}, reconerror.NewValidationError("kind", fmt.Sprintf("unknown kind %q", kind))
	}
	if asOf.IsZero() {
		asOf = o.clock.Now()
	}
	asOf = dateutils.StartOfDay(asOf)

	invs, err := o.store.Invoices().ListByCompany(ctx, companyID, kind)
	if err != nil {
		return AgingReport{}, fmt.Errorf("list %s invoices of %s: %w", kind, companyID, err)
	}

	report := AgingReport{CompanyID: companyID, Kind: kind, AsOf: asOf, Total: decimal.Zero}
	index := make(map[string]int, len(BucketNames))
	for i, name := range BucketNames {
		report.Buckets = append(report.Buckets, AgingBucket{Name: name, Amount: decimal.Zero})
		index[name] = i
	}

	for _, inv := range invs {
		remaining := inv.Remaining()
		if !inv.Status.IsOpen() || !remaining.IsPositive() {
			continue
		}
		due := inv.DueDate
		if due.IsZero() {
			due = inv.IssueDate
		}
		days := dateutils.DaysSince(due, asOf)
		name := BucketFor(days)

		b := &report.Buckets[index[name]]
		b.Count++
		b.Amount = b.Amount.Add(remaining)
		report.Total = report.Total.Add(remaining)
		report.Items = append(report.Items, AgingItem{
			InvoiceID:    inv.ID,
			Number:       inv.Number,
			Counterparty: inv.CounterpartyName,
			DueDate:      due,
			DaysOverdue:  max(days, 0),
			Remaining:    remaining,
			Currency:     inv.Currency,
			Bucket:       name,
		})
	}
	return report, nil
}

func sortSuggestions(s []models.Suggestion) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Score != s[j].Score {
			return s[i].Score > s[j].Score
		}
		return s[i].TransactionID < s[j].TransactionID
	})
}
