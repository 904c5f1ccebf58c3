package reconciliation

import (
	"context"
	"testing"
	"time"

	"fjacquet/recon-ledger/internal/models"
	"fjacquet/recon-ledger/internal/reconerror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconciliationReport(t *testing.T) {
	f := newFixture(t, nil, nil)
	exactPair(f, t)
	nearPair(f, t)
	f.insertTx(t, models.BankTransaction{ID: "tx-3", Date: day(2024, 1, 25), Amount: dec("-80")})
	f.insertTx(t, models.BankTransaction{ID: "tx-old", Date: day(2023, 11, 2), Amount: dec("5")})
	f.insertInvoice(t, models.Invoice{
		ID: "inv-m", Number: "INV-M", Kind: models.KindReceivable, Amount: dec("10"),
		IssueDate: day(2023, 10, 1), DueDate: day(2023, 10, 31),
	})
	ctx := context.Background()

	_, err := f.orch.ReconcileBatch(ctx, company, BatchOptions{})
	require.NoError(t, err)
	_, err = f.orch.Confirm(ctx, "tx-old", models.InvoiceRef{ID: "inv-m", Kind: models.KindReceivable})
	require.NoError(t, err)

	r, err := f.orch.ReconciliationReport(ctx, company, day(2024, 1, 1), day(2024, 1, 31))
	require.NoError(t, err)
	assert.Equal(t, 3, r.Total)
	assert.Equal(t, 1, r.Automatic)
	assert.Equal(t, 0, r.Manual)
	assert.Equal(t, 1, r.Pending)
	assert.Equal(t, 1, r.Unreconciled)
	assert.InDelta(t, 0.3333, r.ReconciliationRate, 1e-9)
	assert.Equal(t, 1.0, r.AutomationRate)
	assert.True(t, dec("2030").Equal(r.TotalAmount))
	assert.True(t, dec("1000").Equal(r.ReconciledAmount))
	assert.True(t, dec("1030").Equal(r.UnreconciledAmount))

	all, err := f.orch.ReconciliationReport(ctx, company, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 4, all.Total)
	assert.Equal(t, 1, all.Manual)
	assert.Equal(t, 0.5, all.AutomationRate)
}

func TestReconciliationReport_Empty(t *testing.T) {
	f := newFixture(t, nil, nil)

	r, err := f.orch.ReconciliationReport(context.Background(), company, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Zero(t, r.Total)
	assert.Zero(t, r.ReconciliationRate)
	assert.Zero(t, r.AutomationRate)
}

func TestReconciliationReport_InvertedPeriod(t *testing.T) {
	f := newFixture(t, nil, nil)

	_, err := f.orch.ReconciliationReport(context.Background(), company, day(2024, 2, 1), day(2024, 1, 1))
	assert.True(t, reconerror.IsValidation(err))
}

func TestBucketFor(t *testing.T) {
	tests := []struct {
		days int
		want string
	}{
		{-10, BucketCurrent},
		{0, BucketCurrent},
		{1, Bucket1To30},
		{30, Bucket1To30},
		{31, Bucket31To60},
		{60, Bucket31To60},
		{61, Bucket61To90},
		{90, Bucket61To90},
		{91, BucketOver90},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, BucketFor(tt.days))
		})
	}
}

func TestAging(t *testing.T) {
	f := newFixture(t, nil, nil)
	asOf := day(2024, 4, 30)
	add := func(id string, due time.Time, amount, paid string, status models.InvoiceStatus) {
		f.insertInvoice(t, models.Invoice{
			ID: id, Number: id, Kind: models.KindPayable, Amount: dec(amount), PaidAmount: dec(paid),
			Status: status, IssueDate: due.AddDate(0, 0, -30), DueDate: due,
		})
	}
	add("not-due", day(2024, 5, 15), "100", "0", models.InvoicePending)
	add("late-10", day(2024, 4, 20), "200", "50", models.InvoicePartial)
	add("late-45", day(2024, 3, 16), "300", "0", models.InvoiceOverdue)
	add("late-75", day(2024, 2, 15), "400", "0", models.InvoiceSent)
	add("late-200", day(2023, 10, 13), "500", "0", models.InvoiceSent)
	add("paid", day(2024, 1, 1), "999", "999", models.InvoicePaid)
	add("cancelled", day(2024, 1, 1), "999", "0", models.InvoiceCancelled)
	f.insertInvoice(t, models.Invoice{
		ID: "receivable", Kind: models.KindReceivable, Amount: dec("1"), Status: models.InvoiceSent, DueDate: day(2024, 1, 1),
	})

	report, err := f.orch.Aging(context.Background(), company, models.KindPayable, asOf)
	require.NoError(t, err)

	require.Len(t, report.Buckets, len(BucketNames))
	want := map[string]string{
		BucketCurrent: "100",
		Bucket1To30:   "150",
		Bucket31To60:  "300",
		Bucket61To90:  "400",
		BucketOver90:  "500",
	}
	for _, b := range report.Buckets {
		assert.Equal(t, 1, b.Count, b.Name)
		assert.True(t, dec(want[b.Name]).Equal(b.Amount), "%s: %s", b.Name, b.Amount)
	}
	assert.True(t, dec("1450").Equal(report.Total))
	assert.Len(t, report.Items, 5)

	for _, item := range report.Items {
		if item.InvoiceID == "late-10" {
			assert.Equal(t, 10, item.DaysOverdue)
		}
		if item.InvoiceID == "not-due" {
			assert.Zero(t, item.DaysOverdue)
		}
	}
}

func TestAging_DefaultsToToday(t *testing.T) {
	f := newFixture(t, nil, nil)

	report, err := f.orch.Aging(context.Background(), company, models.KindReceivable, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, day(2024, 2, 1), report.AsOf)
	assert.True(t, report.Total.IsZero())
}

func TestAging_UnknownKind(t *testing.T) {
	f := newFixture(t, nil, nil)

	_, err := f.orch.Aging(context.Background(), company, "other", time.Time{})
	assert.True(t, reconerror.IsValidation(err))
}
