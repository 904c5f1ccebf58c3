package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"fjacquet/recon-ledger/internal/accounts"
	"fjacquet/recon-ledger/internal/cache"
	"fjacquet/recon-ledger/internal/classifier"
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

var now = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc     *Service
	store   *store.MemoryStore
	metrics *metrics.Metrics
	logger  *logging.MockLogger
}

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 1}
}

func newFixture(t *testing.T, st repository.Store, opts ...Option) fixture {
	t.Helper()
	mem := store.NewMemoryStore(nil)
	if st == nil {
		st = mem
	}
	logger := logging.NewMockLogger()
	m := metrics.New(nil)
	cl := classifier.New(accounts.DefaultChart(), mem.Overrides(), classifier.WithLogger(logger))
	ids := 0
	base := []Option{
		WithLogger(logger),
		WithClock(cache.NewFakeClock(now)),
		WithIDs(func() string { ids++; return "entry-" + string(rune('0'+ids)) }),
		WithRetry(fastRetry()),
		WithMetrics(m),
	}
	return fixture{
		svc:     NewService(st, cl, nil, append(base, opts...)...),
		store:   mem,
		metrics: m,
		logger:  logger,
	}
}

func telecomInvoice() models.NormalizedInvoice {
	return models.NormalizedInvoice{
		SourceDocumentID: "3f2a9c1e-77aa-4b8e-9d01-000000000001",
		CompanyID:        "acme",
		InvoiceNumber:    "SC-2024-118",
		CounterpartyName: "Swisscom (Schweiz) AG",
		Description:      "Abonnement entreprise",
		Currency:         "CHF",
		Date:             time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
		Gross:            models.DecimalPtr("1081.00"),
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestPreviewEntry_TelecomNormalRate(t *testing.T) {
	f := newFixture(t, nil)

	p, err := f.svc.PreviewEntry(context.Background(), telecomInvoice(), nil)
	require.NoError(t, err)

	require.Len(t, p.Lines, 3)
	assert.Equal(t, "4420", p.Lines[0].AccountNumber)
	assert.True(t, dec("1000.00").Equal(p.Lines[0].Debit))
	assert.Equal(t, accounts.VATInput, p.Lines[1].AccountNumber)
	assert.True(t, dec("81.00").Equal(p.Lines[1].Debit))
	assert.Equal(t, "N81", p.Lines[1].VATCode)
	require.NotNil(t, p.Lines[1].VATRate)
	assert.True(t, accounts.RateNormal.Equal(*p.Lines[1].VATRate))
	assert.Equal(t, "TVA 8.1% sur Télécommunications", p.Lines[1].Description)
	assert.Equal(t, accounts.Payables, p.Lines[2].AccountNumber)
	assert.True(t, dec("1081.00").Equal(p.Lines[2].Credit))
	assert.Equal(t, "Swisscom (Schweiz) AG - SC-2024-118", p.Lines[2].Description)

	assert.True(t, p.Balanced)
	assert.True(t, dec("1081.00").Equal(p.TotalDebit))
	assert.True(t, p.TotalDebit.Equal(p.TotalCredit))
	assert.Equal(t, "telecom", p.Classification.Category)
	assert.Equal(t, classifier.StrategyKeyword, p.Classification.Strategy)
	assert.NotEmpty(t, p.Alternatives)
	for i, l := range p.Lines {
		assert.Equal(t, i+1, l.LineNumber)
	}

	exists, err := f.store.Ledger().Exists(context.Background(), telecomInvoice().SourceDocumentID)
	require.NoError(t, err)
	assert.False(t, exists, "preview must not store")
}

func TestPreviewEntry_NotDeductible(t *testing.T) {
	f := newFixture(t, nil)
	inv := telecomInvoice()
	inv.CounterpartyName = "Régie du Centre SA"
	inv.Description = "Loyer mars"
	inv.Gross = models.DecimalPtr("2400")

	p, err := f.svc.PreviewEntry(context.Background(), inv, nil)
	require.NoError(t, err)

	require.Len(t, p.Lines, 2)
	assert.Equal(t, "6000", p.Lines[0].AccountNumber)
	assert.True(t, dec("2400").Equal(p.Lines[0].Debit))
	assert.True(t, dec("2400").Equal(p.Lines[1].Credit))
	assert.True(t, p.Split.VAT.IsZero())
	assert.True(t, p.Balanced)
}

func TestPreviewEntry_Override(t *testing.T) {
	f := newFixture(t, nil)
	no := false

	p, err := f.svc.PreviewEntry(context.Background(), telecomInvoice(), &Override{
		DebitAccount:  "4410",
		CreditAccount: "2010",
		Label:         "Abonnement cloud",
		VATDeductible: &no,
	})
	require.NoError(t, err)

	require.Len(t, p.Lines, 2)
	assert.Equal(t, "4410", p.Lines[0].AccountNumber)
	assert.Equal(t, "Abonnement cloud", p.Lines[0].Description)
	assert.Equal(t, "2010", p.Lines[1].AccountNumber)
	assert.Equal(t, "manual", p.Classification.Strategy)
	assert.True(t, p.Balanced)
}

func TestPreviewEntry_Validation(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*models.NormalizedInvoice)
		field string
	}{
		{"missing date", func(i *models.NormalizedInvoice) { i.Date = time.Time{} }, "date"},
		{"missing amount", func(i *models.NormalizedInvoice) { i.Gross = nil }, "gross"},
		{"negative amount", func(i *models.NormalizedInvoice) { i.Gross = models.DecimalPtr("-5") }, "gross"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			inv := telecomInvoice()
			tt.mod(&inv)

			_, err := f.svc.PreviewEntry(context.Background(), inv, nil)
			var ve *reconerror.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestPreviewEntry_AlwaysBalanced(t *testing.T) {
	tests := []struct {
		name string
		inv  models.NormalizedInvoice
	}{
		{"gross only", models.NormalizedInvoice{Gross: models.DecimalPtr("99.99")}},
		{"odd cents", models.NormalizedInvoice{Gross: models.DecimalPtr("0.01")}},
		{"explicit reduced rate", models.NormalizedInvoice{Gross: models.DecimalPtr("123.45"), VATRate: models.DecimalPtr("2.6")}},
		{"net and vat", models.NormalizedInvoice{Net: models.DecimalPtr("100"), VATAmount: models.DecimalPtr("8.10")}},
		{"drifting vat", models.NormalizedInvoice{Gross: models.DecimalPtr("108.10"), VATAmount: models.DecimalPtr("9.99")}},
		{"net above gross", models.NormalizedInvoice{Gross: models.DecimalPtr("100"), Net: models.DecimalPtr("120")}},
		{"hotel", models.NormalizedInvoice{Gross: models.DecimalPtr("311.40"), Description: "Hotel Bellevue nuitee"}},
		{"exempt", models.NormalizedInvoice{Gross: models.DecimalPtr("450"), Description: "Cabinet dentiste"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			inv := tt.inv
			inv.SourceDocumentID = "doc"
			inv.Date = now

			p, err := f.svc.PreviewEntry(context.Background(), inv, nil)
			require.NoError(t, err)
			assert.True(t, p.Balanced)
			assert.True(t, p.TotalDebit.Equal(p.TotalCredit), "%s != %s", p.TotalDebit, p.TotalCredit)
			assert.True(t, p.Split.Gross.Equal(p.TotalCredit))
		})
	}
}

func TestPostEntry_CreatesOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	entry, err := f.svc.PostEntry(ctx, telecomInvoice(), PostOptions{})
	require.NoError(t, err)
	assert.Equal(t, "entry-1", entry.ID)
	assert.Equal(t, models.EntryDraft, entry.Status)
	assert.Nil(t, entry.PostingDate)
	assert.Equal(t, now, entry.CreatedAt)
	assert.Equal(t, "SC-2024-118", entry.Reference)
	assert.True(t, dec("81").Equal(entry.VATAmount))

	stored, err := f.svc.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 3)

	_, err = f.svc.PostEntry(ctx, telecomInvoice(), PostOptions{})
	require.ErrorIs(t, err, reconerror.ErrDuplicateLedgerEntry)

	list, err := f.svc.List(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LedgerPosted.WithLabelValues("draft")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LedgerFailures.WithLabelValues("duplicate")))
	assert.True(t, f.logger.HasEntry("WARN", "Ledger posting failed"))
}

func TestPostEntry_AutoPost(t *testing.T) {
	f := newFixture(t, nil)

	entry, err := f.svc.PostEntry(context.Background(), telecomInvoice(), PostOptions{AutoPost: true})
	require.NoError(t, err)
	assert.Equal(t, models.EntryPosted, entry.Status)
	require.NotNil(t, entry.PostingDate)
	assert.Equal(t, now, *entry.PostingDate)
}

func TestPostEntry_RequiresSourceDocument(t *testing.T) {
	f := newFixture(t, nil)
	inv := telecomInvoice()
	inv.SourceDocumentID = " "

	_, err := f.svc.PostEntry(context.Background(), inv, PostOptions{})
	assert.True(t, reconerror.IsValidation(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.LedgerFailures.WithLabelValues("validation")))
}

type flakyLedger struct {
	repository.LedgerRepository
	failures int
	calls    int
}

func (l *flakyLedger) Create(ctx context.Context, e models.LedgerEntry) error {
	l.calls++
	if l.calls <= l.failures {
		return reconerror.Transient("insert ledger entry", errors.New("connection reset"))
	}
	return l.LedgerRepository.Create(ctx, e)
}

type flakyStore struct {
	*store.MemoryStore
	ledger *flakyLedger
}

func (s flakyStore) Ledger() repository.LedgerRepository { return s.ledger }

func TestPostEntry_RetriesTransientErrors(t *testing.T) {
	tests := []struct {
		name     string
		failures int
		wantErr  bool
	}{
		{"recovers", 2, false},
		{"gives up", 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := store.NewMemoryStore(nil)
			ledger := &flakyLedger{LedgerRepository: mem.Ledger(), failures: tt.failures}
			f := newFixture(t, flakyStore{MemoryStore: mem, ledger: ledger})

			_, err := f.svc.PostEntry(context.Background(), telecomInvoice(), PostOptions{})
			assert.Equal(t, 3, ledger.calls)
			if tt.wantErr {
				assert.True(t, reconerror.IsTransient(err))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestPostBatch(t *testing.T) {
	f := newFixture(t, nil)
	low := 0.4
	high := 0.95

	good := telecomInvoice()
	good.Confidence = &high
	skipped := telecomInvoice()
	skipped.SourceDocumentID = "doc-low"
	skipped.Confidence = &low
	broken := telecomInvoice()
	broken.SourceDocumentID = "doc-broken"
	broken.Date = time.Time{}

	res, err := f.svc.PostBatch(context.Background(),
		[]models.NormalizedInvoice{good, skipped, broken},
		BatchOptions{AutoPost: true, MinConfidence: 0.7})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 1, res.Success)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Errors)
	require.Len(t, res.Items, 3)
	assert.Equal(t, ItemPosted, res.Items[0].Status)
	assert.NotEmpty(t, res.Items[0].EntryID)
	assert.Equal(t, ItemSkipped, res.Items[1].Status)
	assert.Equal(t, ItemError, res.Items[2].Status)
	assert.Contains(t, res.Items[2].Error, "date")
}

func TestPostBatch_Cancelled(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.svc.PostBatch(ctx, []models.NormalizedInvoice{telecomInvoice()}, BatchOptions{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, res.Processed)
}

func TestReference(t *testing.T) {
	tests := []struct {
		name string
		inv  models.NormalizedInvoice
		want string
	}{
		{"invoice number", models.NormalizedInvoice{InvoiceNumber: " F-77 ", SourceDocumentID: "abc"}, "F-77"},
		{"long source id", models.NormalizedInvoice{SourceDocumentID: "3f2a9c1e-77aa"}, "DOC-3F2A9C1E"},
		{"short source id", models.NormalizedInvoice{SourceDocumentID: "ab1"}, "DOC-AB1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reference(tt.inv))
		})
	}
}
