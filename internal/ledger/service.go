package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fjacquet/recon-ledger/internal/accounts"
	"fjacquet/recon-ledger/internal/cache"
	"fjacquet/recon-ledger/internal/classifier"
	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/metrics"
	"fjacquet/recon-ledger/internal/models"
	"fjacquet/recon-ledger/internal/reconerror"
	"fjacquet/recon-ledger/internal/repository"
	"fjacquet/recon-ledger/internal/retry"
	"fjacquet/recon-ledger/internal/tax"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used for invoices that carry none.
const DefaultCurrency = "CHF"

// Service previews and posts ledger entries.
type Service struct {
	store           repository.Store
	classifier      *classifier.Classifier
	splitter        *tax.Splitter
	vatAccount      string
	payablesAccount string
	defaultCurrency string
	clock           cache.Clock
	newID           func() string
	retry           retry.Policy
	metrics         *metrics.Metrics
	logger          logging.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithAccounts sets the VAT input and payables accounts.
func WithAccounts(vat, payables string) Option {
	return func(s *Service) {
		if vat != "" {
			s.vatAccount = vat
		}
		if payables != "" {
			s.payablesAccount = payables
		}
	}
}

// WithDefaultCurrency sets the currency of invoices that carry none.
func WithDefaultCurrency(currency string) Option {
	return func(s *Service) {
		if currency != "" {
			s.defaultCurrency = strings.ToUpper(currency)
		}
	}
}

// WithClock sets the clock used for creation and posting dates.
func WithClock(clock cache.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// WithIDs sets the entry id generator.
func WithIDs(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// WithRetry sets the retry policy of store calls.
func WithRetry(p retry.Policy) Option {
	return func(s *Service) { s.retry = p }
}

// WithMetrics records postings on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService creates a ledger service on st. A nil splitter uses the
// default tolerance.
func NewService(st repository.Store, cl *classifier.Classifier, splitter *tax.Splitter, opts ...Option) *Service {
	s := &Service{
		store:           st,
		classifier:      cl,
		vatAccount:      accounts.VATInput,
		payablesAccount: accounts.Payables,
		defaultCurrency: DefaultCurrency,
		clock:           cache.SystemClock{},
		newID:           uuid.NewString,
		retry:           retry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDefault(s.logger)
	if splitter == nil {
		splitter = tax.NewSplitter(s.logger, decimal.Zero)
	}
	s.splitter = splitter
	return s
}

// Preview is the result of PreviewEntry.
type Preview struct {
	Lines          []models.LedgerLine       `json:"lines"`
	TotalDebit     decimal.Decimal           `json:"total_debit"`
	TotalCredit    decimal.Decimal           `json:"total_credit"`
	Balanced       bool                      `json:"balanced"`
	Reference      string                    `json:"reference"`
	Currency       string                    `json:"currency"`
	Classification classifier.Classification `json:"classification"`
	Split          tax.Split                 `json:"split"`
	Alternatives   []accounts.Entry          `json:"alternatives,omitempty"`
}

// PreviewEntry computes the lines of inv without storing anything.
func (s *Service) PreviewEntry(ctx context.Context, inv models.NormalizedInvoice, override *Override) (Preview, error) {
	draft, err := s.build(ctx, inv, override)
	if err != nil {
		return Preview{}, err
	}
	return Preview{
		Lines:          draft.Entry.Lines,
		TotalDebit:     draft.Entry.TotalDebit,
		TotalCredit:    draft.Entry.TotalCredit,
		Balanced:       draft.Entry.Balanced(),
		Reference:      draft.Entry.Reference,
		Currency:       draft.Entry.Currency,
		Classification: draft.Classification,
		Split:          draft.Split,
		Alternatives:   s.classifier.AlternativeAccounts(draft.Classification),
	}, nil
}

// PostOptions controls PostEntry.
type PostOptions struct {
	Override *Override
	// AutoPost creates the entry as posted instead of draft.
	AutoPost bool
}

// PostEntry builds and stores the entry of inv. A second call for the same
// source document fails with reconerror.ErrDuplicateLedgerEntry.
func (s *Service) PostEntry(ctx context.Context, inv models.NormalizedInvoice, opts PostOptions) (models.LedgerEntry, error) {
	entry, err := s.post(ctx, inv, opts)
	if err != nil {
		s.metrics.LedgerFailure(failureReason(err))
		s.logger.WithError(err).Warn("Ledger posting failed",
			logging.F(logging.FieldSourceDoc, inv.SourceDocumentID))
		return models.LedgerEntry{}, err
	}
	s.metrics.LedgerEntry(string(entry.Status))
	s.logger.Info("Ledger entry created",
		logging.F(logging.FieldSourceDoc, entry.SourceDocumentID),
		logging.F("entry_id", entry.ID),
		logging.F(logging.FieldAccount, entry.Lines[0].AccountNumber),
		logging.F(logging.FieldStatus, string(entry.Status)),
		logging.F("total", entry.TotalDebit.StringFixed(2)))
	return entry, nil
}

func (s *Service) post(ctx context.Context, inv models.NormalizedInvoice, opts PostOptions) (models.LedgerEntry, error) {
	if strings.TrimSpace(inv.SourceDocumentID) == "" {
		return models.LedgerEntry{}, reconerror.NewValidationError("source_document_id", "required")
	}

	exists, err := retry.Value(ctx, s.retry, s.logger, "ledger.exists", func(ctx context.Context) (bool, error) {
		return s.store.Ledger().Exists(ctx, inv.SourceDocumentID)
	})
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("check ledger entry for %s: %w", inv.SourceDocumentID, err)
	}
	if exists {
		return models.LedgerEntry{}, fmt.Errorf("%s: %w", inv.SourceDocumentID, reconerror.ErrDuplicateLedgerEntry)
	}

	draft, err := s.build(ctx, inv, opts.Override)
	if err != nil {
		return models.LedgerEntry{}, err
	}

	entry := draft.Entry
	now := s.clock.Now().UTC()
	entry.ID = s.newID()
	entry.CreatedAt = now
	if opts.AutoPost {
		entry.Status = models.EntryPosted
		entry.PostingDate = &now
	}

	err = retry.Do(ctx, s.retry, s.logger, "ledger.create", func(ctx context.Context) error {
		return s.store.Ledger().Create(ctx, entry)
	})
	if err != nil {
		return models.LedgerEntry{}, fmt.Errorf("create ledger entry for %s: %w", inv.SourceDocumentID, err)
	}
	return entry, nil
}

// BatchOptions controls PostBatch.
type BatchOptions struct {
	AutoPost bool
	// MinConfidence skips documents whose OCR confidence is known and lower.
	MinConfidence float64
}

// Batch item statuses.
const (
	ItemPosted  = "posted"
	ItemSkipped = "skipped"
	ItemError   = "error"
)

// BatchItem is the outcome of one document.
type BatchItem struct {
	SourceDocumentID string `json:"source_document_id" csv:"source_document_id"`
	Status           string `json:"status" csv:"status"`
	EntryID          string `json:"entry_id,omitempty" csv:"entry_id"`
	Error            string `json:"error,omitempty" csv:"error"`
}

// BatchResult summarizes PostBatch.
type BatchResult struct {
	Processed int         `json:"processed"`
	Success   int         `json:"success"`
	Errors    int         `json:"errors"`
	Skipped   int         `json:"skipped"`
	Items     []BatchItem `json:"items"`
}

// PostBatch posts docs in order. A failing document is recorded and the
// batch continues. It stops early only when ctx is done.
func (s *Service) PostBatch(ctx context.Context, docs []models.NormalizedInvoice, opts BatchOptions) (BatchResult, error) {
	var res BatchResult
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Processed++
		item := BatchItem{SourceDocumentID: doc.SourceDocumentID}

		if opts.MinConfidence > 0 && doc.Confidence != nil && *doc.Confidence < opts.MinConfidence {
			item.Status = ItemSkipped
			item.Error = fmt.Sprintf("confidence %.2f below %.2f", *doc.Confidence, opts.MinConfidence)
			res.Skipped++
			res.Items = append(res.Items, item)
			continue
		}

		entry, err := s.PostEntry(ctx, doc, PostOptions{AutoPost: opts.AutoPost})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return res, err
			}
			item.Status = ItemError
			item.Error = err.Error()
			res.Errors++
		} else {
			item.Status = ItemPosted
			item.EntryID = entry.ID
			res.Success++
		}
		res.Items = append(res.Items, item)
	}

	s.logger.Info("Ledger batch completed",
		logging.F(logging.FieldCount, res.Processed),
		logging.F("success", res.Success),
		logging.F("errors", res.Errors),
		logging.F("skipped", res.Skipped))
	return res, nil
}

// Get returns a stored entry.
func (s *Service) Get(ctx context.Context, id string) (models.LedgerEntry, error) {
	return s.store.Ledger().Get(ctx, id)
}

// List returns the entries of company.
func (s *Service) List(ctx context.Context, companyID string) ([]models.LedgerEntry, error) {
	return s.store.Ledger().List(ctx, companyID)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, reconerror.ErrDuplicateLedgerEntry):
		return "duplicate"
	case reconerror.IsValidation(err):
		return "validation"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case reconerror.IsTransient(err):
		return "transient"
	default:
		return "other"
	}
}
