// Package scoring computes the confidence that a bank transaction settles
// an invoice.
package scoring

import (
	"time"

	"fjacquet/recon-ledger/internal/dateutils"
	"fjacquet/recon-ledger/internal/models"
	"fjacquet/recon-ledger/internal/reference"
	"fjacquet/recon-ledger/internal/textutils"

	"github.com/shopspring/decimal"
)

// Point values. The score is the sum divided by MaxPoints.
const (
	MaxPoints = 20

	AmountExact  = 10
	AmountNear   = 8
	AmountClose  = 5
	DateSameDay  = 5
	DateWeek     = 3
	DateMonth    = 1
	TextExact    = 5
	TextPartyHit = 3
)

var (
	nearRatio  = decimal.NewFromFloat(0.05)
	closeRatio = decimal.NewFromFloat(0.10)
)

// Breakdown is the per-signal detail of a score.
type Breakdown struct {
	AmountPoints int     `json:"amount_points"`
	DatePoints   int     `json:"date_points"`
	TextPoints   int     `json:"text_points"`
	Score        float64 `json:"score"`
}

// Total returns the summed points.
func (b Breakdown) Total() int {
	return b.AmountPoints + b.DatePoints + b.TextPoints
}

// Score returns the confidence in [0,1] that tx pays inv.
func Score(tx models.BankTransaction, inv models.Invoice) float64 {
	return Explain(tx, inv).Score
}

// Explain scores tx against inv and reports each signal.
func Explain(tx models.BankTransaction, inv models.Invoice) Breakdown {
	b := Breakdown{
		AmountPoints: amountPoints(tx.AbsAmount(), inv),
		DatePoints:   datePoints(tx.Date, inv),
		TextPoints:   textPoints(tx, inv),
	}
	b.Score = float64(b.Total()) / MaxPoints
	return b
}

// Eligible reports whether inv belongs to the candidate pool of tx: the
// transaction sign selects receivables or payables, currencies must agree
// and the invoice must be open.
func Eligible(tx models.BankTransaction, inv models.Invoice) bool {
	if tx.Amount.IsZero() || inv.Kind != tx.CandidateKind() {
		return false
	}
	if tx.Currency != "" && inv.Currency != "" && tx.Currency != inv.Currency {
		return false
	}
	return inv.Status.IsOpen()
}

func amountPoints(paid decimal.Decimal, inv models.Invoice) int {
	best := amountTier(paid, inv.Amount)
	if inv.PaidAmount.IsPositive() {
		if p := amountTier(paid, inv.Remaining()); p > best {
			best = p
		}
	}
	return best
}

func amountTier(paid, expected decimal.Decimal) int {
	if models.WithinCent(paid, expected) {
		return AmountExact
	}
	if !expected.IsPositive() {
		return 0
	}
	ratio := paid.Sub(expected).Abs().Div(expected)
	switch {
	case ratio.LessThanOrEqual(nearRatio):
		return AmountNear
	case ratio.LessThanOrEqual(closeRatio):
		return AmountClose
	default:
		return 0
	}
}

func datePoints(txDate time.Time, inv models.Invoice) int {
	days := -1
	for _, d := range []time.Time{inv.DueDate, inv.IssueDate} {
		if d.IsZero() || txDate.IsZero() {
			continue
		}
		if n := dateutils.DaysBetween(txDate, d); days < 0 || n < days {
			days = n
		}
	}
	switch {
	case days < 0:
		return 0
	case days <= 1:
		return DateSameDay
	case days <= 7:
		return DateWeek
	case days <= 30:
		return DateMonth
	default:
		return 0
	}
}

func textPoints(tx models.BankTransaction, inv models.Invoice) int {
	text := tx.Text()
	if inv.Number != "" && textutils.ContainsFolded(text, inv.Number) {
		return TextExact
	}
	if inv.PaymentReference != "" {
		want := reference.Clean(inv.PaymentReference)
		for _, ref := range reference.FindReferences(text) {
			if ref == want {
				return TextExact
			}
		}
	}
	if token := textutils.FirstSignificantToken(inv.CounterpartyName); token != "" {
		for _, w := range textutils.Words(text) {
			if w == token {
				return TextPartyHit
			}
		}
	}
	return 0
}
