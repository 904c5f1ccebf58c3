package reconciliation

import (
	"context"
	"sync"
	"testing"
	"time"

	"fjacquet/recon-ledger/internal/cache"
	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/metrics"
	"fjacquet/recon-ledger/internal/models"
	"fjacquet/recon-ledger/internal/reconerror"
	"fjacquet/recon-ledger/internal/repository"
	"fjacquet/recon-ledger/internal/retry"
	"fjacquet/recon-ledger/internal/store"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const company = "acme"

var now = time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	orch    *Orchestrator
	store   *store.MemoryStore
	metrics *metrics.Metrics
	logger  *logging.MockLogger
}

func newFixture(t *testing.T, st repository.Store, mem *store.MemoryStore, opts ...Option) fixture {
	t.Helper()
	if mem == nil {
		mem = store.NewMemoryStore(nil)
	}
	if st == nil {
		st = mem
	}
	logger := logging.NewMockLogger()
	m := metrics.New(nil)
	var mu sync.Mutex
	ids := 0
	base := []Option{
		WithLogger(logger),
		WithClock(cache.NewFakeClock(now)),
		WithIDs(func() string {
			mu.Lock()
			defer mu.Unlock()
			ids++
			return "pay-" + string(rune('a'+ids-1))
		}),
		WithRetry(retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 1}),
		WithMetrics(m),
	}
	orch, err := New(st, append(base, opts...)...)
	require.NoError(t, err)
	return fixture{orch: orch, store: mem, metrics: m, logger: logger}
}

func (f fixture) insertTx(t *testing.T, tx models.BankTransaction) {
	t.Helper()
	if tx.CompanyID == "" {
		tx.CompanyID = company
	}
	if tx.Currency == "" {
		tx.Currency = "CHF"
	}
	require.NoError(t, f.store.Transactions().Insert(context.Background(), tx))
}

func (f fixture) insertInvoice(t *testing.T, inv models.Invoice) {
	t.Helper()
	if inv.CompanyID == "" {
		inv.CompanyID = company
	}
	if inv.Currency == "" {
		inv.Currency = "CHF"
	}
	if inv.Status == "" {
		inv.Status = models.InvoiceSent
	}
	require.NoError(t, f.store.Invoices().Insert(context.Background(), inv))
}

// exactPair is a transaction that pays INV-2024-0007 exactly.
func exactPair(f fixture, t *testing.T) {
	f.insertTx(t, models.BankTransaction{
		ID:          "tx-1",
		Date:        day(2024, 1, 15),
		Amount:      dec("1000.00"),
		Description: "Paiement facture INV-2024-0007 merci",
	})
	f.insertInvoice(t, models.Invoice{
		ID:               "inv-7",
		Number:           "INV-2024-0007",
		Kind:             models.KindReceivable,
		CounterpartyName: "Initech SA",
		Amount:           dec("1000.00"),
		IssueDate:        day(2023, 12, 17),
		DueDate:          day(2024, 1, 16),
	})
}

// nearPair is 5% short, two days late and carries no text signal.
func nearPair(f fixture, t *testing.T) {
	f.insertTx(t, models.BankTransaction{
		ID:          "tx-2",
		Date:        day(2024, 1, 22),
		Amount:      dec("950.00"),
		Description: "Virement",
	})
	f.insertInvoice(t, models.Invoice{
		ID:               "inv-10",
		Number:           "INV-2024-0010",
		Kind:             models.KindReceivable,
		CounterpartyName: "Globex Corp",
		Amount:           dec("1000.00"),
		IssueDate:        day(2023, 12, 20),
		DueDate:          day(2024, 1, 20),
	})
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"auto above one", []Option{WithThresholds(1.2, 0.5)}},
		{"negative suggest", []Option{WithThresholds(0.8, -0.1)}},
		{"suggest above auto", []Option{WithThresholds(0.6, 0.7)}},
		{"zero limit", []Option{WithBatchLimit(0)}},
		{"limit too large", []Option{WithBatchLimit(101)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(store.NewMemoryStore(nil), tt.opts...)
			assert.True(t, reconerror.IsValidation(err))
		})
	}

	o, err := New(store.NewMemoryStore(nil))
	require.NoError(t, err)
	auto, suggest := o.Thresholds()
	assert.Equal(t, DefaultAutoThreshold, auto)
	assert.Equal(t, DefaultSuggestThreshold, suggest)
}

func TestReconcileBatch_ExactMatchAutoMatches(t *testing.T) {
	f := newFixture(t, nil, nil)
	exactPair(f, t)
	ctx := context.Background()

	summary, err := f.orch.ReconcileBatch(ctx, company, BatchOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.AutoMatched)
	require.Len(t, summary.Details, 1)
	item := summary.Details[0]
	assert.Equal(t, OutcomeAutoMatched, item.Outcome)
	assert.Equal(t, 1.0, item.Score)
	assert.Equal(t, 20, item.Breakdown.Total())

	tx, err := f.store.Transactions().Get(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAutoMatched, tx.Status)
	assert.Equal(t, "inv-7", tx.MatchedInvoiceID)
	require.NotNil(t, tx.ReconciledAt)
	assert.Equal(t, now, *tx.ReconciledAt)

	inv, err := f.store.Invoices().Get(ctx, "inv-7", models.KindReceivable)
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, inv.Status)
	assert.True(t, dec("1000").Equal(inv.PaidAmount))

	payments := f.store.AllPayments()
	require.Len(t, payments, 1)
	assert.Equal(t, models.ReconciliationAuto, payments[0].ReconciliationType)
	assert.Equal(t, models.PaymentMethodBankTransfer, payments[0].Method)
	assert.Equal(t, day(2024, 1, 15), payments[0].PaymentDate)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BatchItems.WithLabelValues("auto_matched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Confirmations.WithLabelValues("auto")))
}

func TestReconcileBatch_NearMatchIsSuggested(t *testing.T) {
	f := newFixture(t, nil, nil)
	nearPair(f, t)
	ctx := context.Background()

	summary, err := f.orch.ReconcileBatch(ctx, company, BatchOptions{})
	require.NoError(t, err)

	require.Len(t, summary.Details, 1)
	item := summary.Details[0]
	assert.Equal(t, OutcomeSuggested, item.Outcome)
	assert.InDelta(t, 0.55, item.Score, 1e-9)
	assert.Equal(t, 8, item.Breakdown.AmountPoints)
	assert.Equal(t, 3, item.Breakdown.DatePoints)
	assert.Equal(t, 0, item.Breakdown.TextPoints)

	tx, err := f.store.Transactions().Get(ctx, "tx-2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuggested, tx.Status)
	assert.Empty(t, tx.MatchedInvoiceID)

	pending, err := f.orch.PendingSuggestions(ctx, company)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "inv-10", pending[0].InvoiceID)
	assert.Equal(t, "INV-2024-0010", pending[0].InvoiceNumber)
	assert.Empty(t, f.store.AllPayments())
}

func TestReconcileBatch_Outcomes(t *testing.T) {
	f := newFixture(t, nil, nil)
	exactPair(f, t)
	// Same payment twice: the invoice leaves the pool after the first match.
	f.insertTx(t, models.BankTransaction{
		ID:          "tx-dup",
		Date:        day(2024, 1, 16),
		Amount:      dec("1000.00"),
		Description: "INV-2024-0007",
	})
	// Outgoing payment without any payable.
	f.insertTx(t, models.BankTransaction{ID: "tx-out", Date: day(2024, 1, 17), Amount: dec("-42.00")})
	// Receivable pool exists but nothing comes close.
	f.insertInvoice(t, models.Invoice{
		ID: "inv-far", Number: "INV-2024-0099", Kind: models.KindReceivable,
		CounterpartyName: "Umbrella", Amount: dec("5000"), IssueDate: day(2023, 6, 1), DueDate: day(2023, 7, 1),
	})
	f.insertTx(t, models.BankTransaction{ID: "tx-none", Date: day(2024, 1, 18), Amount: dec("12.30")})

	summary, err := f.orch.ReconcileBatch(context.Background(), company, BatchOptions{})
	require.NoError(t, err)

	got := map[string]Outcome{}
	for _, d := range summary.Details {
		got[d.TransactionID] = d.Outcome
	}
	assert.Equal(t, map[string]Outcome{
		"tx-1":    OutcomeAutoMatched,
		"tx-dup":  OutcomeNoMatch,
		"tx-out":  OutcomeNoInvoicesAvailable,
		"tx-none": OutcomeNoMatch,
	}, got)
	assert.Equal(t, 4, summary.Processed)
	assert.Equal(t, 1, summary.AutoMatched)
	assert.Equal(t, 3, summary.NoMatch)
	assert.Len(t, f.store.AllPayments(), 1)
}

func TestReconcileBatch_InvoiceTakenOnlyOnce(t *testing.T) {
	f := newFixture(t, nil, nil)
	exactPair(f, t)
	f.insertTx(t, models.BankTransaction{
		ID:          "tx-dup",
		Date:        day(2024, 1, 16),
		Amount:      dec("1000.00"),
		Description: "INV-2024-0007",
	})

	summary, err := f.orch.ReconcileBatch(context.Background(), company, BatchOptions{})
	require.NoError(t, err)

	require.Len(t, summary.Details, 2)
	assert.Equal(t, OutcomeAutoMatched, summary.Details[0].Outcome)
	assert.Equal(t, OutcomeNoInvoicesAvailable, summary.Details[1].Outcome)
	assert.Len(t, f.store.AllPayments(), 1)
}

func TestReconcileBatch_DryRun(t *testing.T) {
	f := newFixture(t, nil, nil)
	exactPair(f, t)
	nearPair(f, t)
	ctx := context.Background()

	summary, err := f.orch.ReconcileBatch(ctx, company, BatchOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, summary.DryRun)
	assert.Equal(t, 1, summary.AutoMatched)
	assert.Equal(t, 1, summary.Suggested)

	for _, id := range []string{"tx-1", "tx-2"} {
		tx, err := f.store.Transactions().Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusUnmatched, tx.Status)
	}
	assert.Empty(t, f.store.AllPayments())
	pending, err := f.orch.PendingSuggestions(ctx, company)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReconcileBatch_CancelledContext(t *testing.T) {
	f := newFixture(t, nil, nil)
	exactPair(f, t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := f.orch.ReconcileBatch(ctx, company, BatchOptions{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, summary.Processed)

	tx, err := f.store.Transactions().Get(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnmatched, tx.Status)
}

func TestReconcileBatch_RequiresCompany(t *testing.T) {
	f := newFixture(t, nil, nil)
	_, err := f.orch.ReconcileBatch(context.Background(), " ", BatchOptions{})
	assert.True(t, reconerror.IsValidation(err))
}

func TestReconcileBatch_BatchLimit(t *testing.T) {
	f := newFixture(t, nil, nil, WithBatchLimit(2))
	for i, d := range []int{3, 1, 2} {
		f.insertTx(t, models.BankTransaction{
			ID:     "tx-" + string(rune('a'+i)),
			Date:   day(2024, 1, d),
			Amount: dec("10"),
		})
	}

	summary, err := f.orch.ReconcileBatch(context.Background(), company, BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
}

func TestConfirm_TwiceFailsAlreadyReconciled(t *testing.T) {
	f := newFixture(t, nil, nil)
	nearPair(f, t)
	ctx := context.Background()
	_, err := f.orch.ReconcileBatch(ctx, company, BatchOptions{})
	require.NoError(t, err)

	ref := models.InvoiceRef{ID: "inv-10", Kind: models.KindReceivable}
	res, err := f.orch.Confirm(ctx, "tx-2", ref)
	require.NoError(t, err)
	assert.Equal(t, models.StatusManualMatched, res.Status)
	assert.Equal(t, models.InvoicePartial, res.InvoiceStatus)
	require.NotNil(t, res.PaidAmount)
	assert.True(t, dec("950").Equal(*res.PaidAmount))

	_, err = f.orch.Confirm(ctx, "tx-2", ref)
	require.ErrorIs(t, err, reconerror.ErrAlreadyReconciled)

	assert.Len(t, f.store.AllPayments(), 1)
	pending, err := f.orch.PendingSuggestions(ctx, company)
	require.NoError(t, err)
	assert.Empty(t, pending, "confirm removes the suggestion")

	tx, err := f.store.Transactions().Get(ctx, "tx-2")
	require.NoError(t, err)
	assert.InDelta(t, 0.55, tx.Confidence, 1e-9, "manual confirm keeps the suggested score")
}

func TestConfirm_Concurrent(t *testing.T) {
	f := newFixture(t, nil, nil)
	exactPair(f, t)
	ref := models.InvoiceRef{ID: "inv-7", Kind: models.KindReceivable}

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.orch.Confirm(context.Background(), "tx-1", ref)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, reconerror.ErrAlreadyReconciled)
	}
	assert.Equal(t, 1, ok)
	assert.Len(t, f.store.AllPayments(), 1)
	assert.Zero(t, f.orch.locks.size())
}

func TestConfirm_Validation(t *testing.T) {
	f := newFixture(t, nil, nil)
	exactPair(f, t)
	f.insertInvoice(t, models.Invoice{
		ID: "bill-1", Number: "B-1", Kind: models.KindPayable, Amount: dec("1000"),
		IssueDate: day(2024, 1, 1), DueDate: day(2024, 1, 31),
	})
	f.insertInvoice(t, models.Invoice{
		ID: "inv-paid", Number: "INV-P", Kind: models.KindReceivable, Amount: dec("1000"),
		PaidAmount: dec("1000"), Status: models.InvoicePaid, IssueDate: day(2024, 1, 1), DueDate: day(2024, 1, 31),
	})
	f.insertInvoice(t, models.Invoice{
		ID: "inv-eur", Number: "INV-E", Kind: models.KindReceivable, Amount: dec("1000"), Currency: "EUR",
		IssueDate: day(2024, 1, 1), DueDate: day(2024, 1, 31),
	})
	ctx := context.Background()

	tests := []struct {
		name  string
		txID  string
		ref   models.InvoiceRef
		check func(t *testing.T, err error)
	}{
		{"missing transaction id", "", models.InvoiceRef{ID: "inv-7", Kind: models.KindReceivable}, validation},
		{"missing invoice id", "tx-1", models.InvoiceRef{Kind: models.KindReceivable}, validation},
		{"unknown kind", "tx-1", models.InvoiceRef{ID: "inv-7", Kind: "credit_note"}, validation},
		{"wrong sign", "tx-1", models.InvoiceRef{ID: "bill-1", Kind: models.KindPayable}, validation},
		{"unknown transaction", "tx-404", models.InvoiceRef{ID: "inv-7", Kind: models.KindReceivable}, is(reconerror.ErrNotFound)},
		{"unknown invoice", "tx-1", models.InvoiceRef{ID: "inv-404", Kind: models.KindReceivable}, is(reconerror.ErrNotFound)},
		{"invoice already paid", "tx-1", models.InvoiceRef{ID: "inv-paid", Kind: models.KindReceivable}, is(reconerror.ErrInvalidState)},
		{"currency mismatch", "tx-1", models.InvoiceRef{ID: "inv-eur", Kind: models.KindReceivable}, validation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orch.Confirm(ctx, tt.txID, tt.ref)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
	assert.Empty(t, f.store.AllPayments())

	eur, err := f.store.Invoices().Get(ctx, "inv-eur", models.KindReceivable)
	require.NoError(t, err)
	assert.True(t, eur.PaidAmount.IsZero())
	assert.Equal(t, models.InvoiceSent, eur.Status)
}

func validation(t *testing.T, err error) {
	assert.True(t, reconerror.IsValidation(err), "got %v", err)
}

func is(target error) func(t *testing.T, err error) {
	return func(t *testing.T, err error) {
		assert.ErrorIs(t, err, target)
	}
}

func TestUndo_ThenRematch(t *testing.T) {
	f := newFixture(t, nil, nil)
	exactPair(f, t)
	ctx := context.Background()

	first, err := f.orch.ReconcileBatch(ctx, company, BatchOptions{})
	require.NoError(t, err)

	res, err := f.orch.Undo(ctx, "tx-1", "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnmatched, res.Status)
	assert.Equal(t, models.InvoicePending, res.InvoiceStatus)
	assert.True(t, res.PaidAmount.IsZero())

	tx, err := f.store.Transactions().Get(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnmatched, tx.Status)
	assert.Empty(t, tx.MatchedInvoiceID)
	assert.Nil(t, tx.ReconciledAt)

	payments := f.store.AllPayments()
	require.Len(t, payments, 1)
	assert.Equal(t, models.PaymentCancelled, payments[0].Status)
	assert.Equal(t, defaultUndoReason, payments[0].CancelReason)

	second, err := f.orch.ReconcileBatch(ctx, company, BatchOptions{})
	require.NoError(t, err)
	require.Len(t, second.Details, 1)
	assert.Equal(t, first.Details[0].Outcome, second.Details[0].Outcome)
	assert.Equal(t, first.Details[0].InvoiceID, second.Details[0].InvoiceID)
	assert.Equal(t, first.Details[0].Score, second.Details[0].Score)

	inv, err := f.store.Invoices().Get(ctx, "inv-7", models.KindReceivable)
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, inv.Status)
	assert.Len(t, f.store.AllPayments(), 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Undos))
}

func TestUndo_PartialPaymentStaysPartial(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	f.insertInvoice(t, models.Invoice{
		ID: "inv-1", Number: "INV-1", Kind: models.KindReceivable, Amount: dec("1000"),
		IssueDate: day(2024, 1, 1), DueDate: day(2024, 1, 31),
	})
	f.insertTx(t, models.BankTransaction{ID: "tx-a", Date: day(2024, 1, 10), Amount: dec("300")})
	f.insertTx(t, models.BankTransaction{ID: "tx-b", Date: day(2024, 1, 20), Amount: dec("700")})
	ref := models.InvoiceRef{ID: "inv-1", Kind: models.KindReceivable}

	res, err := f.orch.Confirm(ctx, "tx-a", ref)
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePartial, res.InvoiceStatus)
	res, err = f.orch.Confirm(ctx, "tx-b", ref)
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, res.InvoiceStatus)

	res, err = f.orch.Undo(ctx, "tx-a", "wrong invoice")
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePartial, res.InvoiceStatus)
	assert.True(t, dec("700").Equal(*res.PaidAmount))
}

func TestUndo_NotReconciled(t *testing.T) {
	f := newFixture(t, nil, nil)
	exactPair(f, t)

	_, err := f.orch.Undo(context.Background(), "tx-1", "")
	assert.ErrorIs(t, err, reconerror.ErrInvalidState)
}

func TestReject(t *testing.T) {
	f := newFixture(t, nil, nil)
	nearPair(f, t)
	ctx := context.Background()
	_, err := f.orch.ReconcileBatch(ctx, company, BatchOptions{})
	require.NoError(t, err)

	res, err := f.orch.Reject(ctx, "tx-2", "not this client")
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnmatched, res.Status)

	tx, err := f.store.Transactions().Get(ctx, "tx-2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnmatched, tx.Status)
	pending, err := f.orch.PendingSuggestions(ctx, company)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = f.orch.Reject(ctx, "tx-2", "")
	assert.ErrorIs(t, err, reconerror.ErrInvalidState)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Rejections))
}

// conflictStore fails the first compare-and-set calls with ErrConflict.
type conflictStore struct {
	repository.Store
	remaining *int
}

func (s conflictStore) Transactions() repository.TransactionRepository {
	return conflictTransactions{TransactionRepository: s.Store.Transactions(), remaining: s.remaining}
}

func (s conflictStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	return s.Store.WithinTx(ctx, func(ctx context.Context, tx repository.Store) error {
		return fn(ctx, conflictStore{Store: tx, remaining: s.remaining})
	})
}

type conflictTransactions struct {
	repository.TransactionRepository
	remaining *int
}

func (r conflictTransactions) UpdateReconciliation(ctx context.Context, id string, expected models.ReconciliationStatus, u models.ReconciliationUpdate) error {
	if *r.remaining > 0 {
		*r.remaining--
		return reconerror.ErrConflict
	}
	return r.TransactionRepository.UpdateReconciliation(ctx, id, expected, u)
}

func TestConfirm_ConflictRetry(t *testing.T) {
	tests := []struct {
		name      string
		conflicts int
		wantErr   error
		payments  int
	}{
		{"one conflict is retried", 1, nil, 1},
		{"second conflict surfaces", 2, reconerror.ErrConcurrentModification, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := store.NewMemoryStore(nil)
			remaining := tt.conflicts
			f := newFixture(t, conflictStore{Store: mem, remaining: &remaining}, mem)
			exactPair(f, t)

			_, err := f.orch.Confirm(context.Background(), "tx-1", models.InvoiceRef{ID: "inv-7", Kind: models.KindReceivable})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Len(t, mem.AllPayments(), tt.payments)
			assert.True(t, f.logger.HasEntry("WARN", "Confirm conflicted with a concurrent update"))
		})
	}
}

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	assert.Equal(t, 2, k.size())
	unlockA()
	unlockB()
	assert.Zero(t, k.size())
}
