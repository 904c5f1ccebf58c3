// Package reconciliation matches bank transactions against open invoices
// and drives the reconciliation lifecycle of each transaction.
package reconciliation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fjacquet/recon-ledger/internal/cache"
	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/metrics"
	"fjacquet/recon-ledger/internal/models"
	"fjacquet/recon-ledger/internal/reconerror"
	"fjacquet/recon-ledger/internal/repository"
	"fjacquet/recon-ledger/internal/retry"
	"fjacquet/recon-ledger/internal/scoring"

	"github.com/google/uuid"
)

// Defaults.
const (
	DefaultAutoThreshold    = 0.8
	DefaultSuggestThreshold = 0.5
	MaxBatchLimit           = 100
)

// Outcome of one transaction in a batch.
type Outcome string

const (
	OutcomeAutoMatched         Outcome = "auto_matched"
	OutcomeSuggested           Outcome = "suggested"
	OutcomeNoMatch             Outcome = "no_match"
	OutcomeNoInvoicesAvailable Outcome = "no_invoices_available"
	OutcomeFailed              Outcome = "failed"
)

// Orchestrator runs batches and single-transaction operations.
type Orchestrator struct {
	store            repository.Store
	autoThreshold    float64
	suggestThreshold float64
	limit            int
	clock            cache.Clock
	newID            func() string
	retry            retry.Policy
	metrics          *metrics.Metrics
	logger           logging.Logger
	locks            *keyedMutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithThresholds sets the auto-match and suggestion thresholds.
func WithThresholds(auto, suggest float64) Option {
	return func(o *Orchestrator) {
		o.autoThreshold = auto
		o.suggestThreshold = suggest
	}
}

// WithBatchLimit bounds the transactions loaded per batch.
func WithBatchLimit(limit int) Option {
	return func(o *Orchestrator) { o.limit = limit }
}

// WithClock sets the clock used for reconciliation timestamps.
func WithClock(clock cache.Clock) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// WithIDs sets the payment id generator.
func WithIDs(newID func() string) Option {
	return func(o *Orchestrator) { o.newID = newID }
}

// WithRetry sets the retry policy for transient store failures.
func WithRetry(p retry.Policy) Option {
	return func(o *Orchestrator) { o.retry = p }
}

// WithMetrics records outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// New creates an Orchestrator on st.
func New(st repository.Store, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		store:            st,
		autoThreshold:    DefaultAutoThreshold,
		suggestThreshold: DefaultSuggestThreshold,
		limit:            MaxBatchLimit,
		clock:            cache.SystemClock{},
		newID:            uuid.NewString,
		retry:            retry.DefaultPolicy(),
		locks:            newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.OrDefault(o.logger)

	if o.autoThreshold < 0 || o.autoThreshold > 1 || o.suggestThreshold < 0 || o.suggestThreshold > 1 {
		return nil, reconerror.NewValidationError("thresholds", "must be within [0,1]")
	}
	if o.suggestThreshold > o.autoThreshold {
		return nil, reconerror.NewValidationError("thresholds", "suggest threshold exceeds auto threshold")
	}
	if o.limit < 1 || o.limit > MaxBatchLimit {
		return nil, reconerror.NewValidationError("batch_limit", fmt.Sprintf("must be within 1..%d", MaxBatchLimit))
	}
	return o, nil
}

// Thresholds returns the auto-match and suggestion thresholds.
func (o *Orchestrator) Thresholds() (auto, suggest float64) {
	return o.autoThreshold, o.suggestThreshold
}

// BatchOptions controls ReconcileBatch.
type BatchOptions struct {
	// DryRun scores every transaction without writing anything.
	DryRun bool
}

// ItemResult is the outcome of one transaction.
type ItemResult struct {
	TransactionID string             `json:"transaction_id" csv:"transaction_id"`
	Outcome       Outcome            `json:"outcome" csv:"outcome"`
	InvoiceID     string             `json:"invoice_id,omitempty" csv:"invoice_id"`
	InvoiceKind   models.InvoiceKind `json:"invoice_kind,omitempty" csv:"invoice_kind"`
	InvoiceNumber string             `json:"invoice_number,omitempty" csv:"invoice_number"`
	Score         float64            `json:"score" csv:"score"`
	Breakdown     scoring.Breakdown  `json:"breakdown" csv:"-"`
	Error         string             `json:"error,omitempty" csv:"error"`
}

// Summary reports a batch run.
type Summary struct {
	CompanyID   string       `json:"company_id"`
	DryRun      bool         `json:"dry_run"`
	Processed   int          `json:"processed"`
	AutoMatched int          `json:"auto_matched"`
	Suggested   int          `json:"suggested"`
	NoMatch     int          `json:"no_match"`
	Failed      int          `json:"failed"`
	Details     []ItemResult `json:"details"`
	Duration    string       `json:"duration"`
}

func (s *Summary) add(item ItemResult) {
	s.Processed++
	switch item.Outcome {
	case OutcomeAutoMatched:
		s.AutoMatched++
	case OutcomeSuggested:
		s.Suggested++
	case OutcomeFailed:
		s.Failed++
	default:
		s.NoMatch++
	}
	s.Details = append(s.Details, item)
}

type candidate struct {
	invoice   models.Invoice
	breakdown scoring.Breakdown
}

// ReconcileBatch scores the unmatched transactions of company against its
// open invoices. Per-item failures are recorded in the summary; an error is
// returned only when the inputs cannot be loaded or ctx is done, in which
// case the items processed so far stay committed.
func (o *Orchestrator) ReconcileBatch(ctx context.Context, companyID string, opts BatchOptions) (Summary, error) {
	start := time.Now()
	summary := Summary{CompanyID: companyID, DryRun: opts.DryRun}
	if strings.TrimSpace(companyID) == "" {
		return summary, reconerror.NewValidationError("company", "required")
	}
	log := o.logger.WithFields(logging.F(logging.FieldCompany, companyID))

	txs, err := retry.Value(ctx, o.retry, o.logger, "transactions.list_unreconciled", func(ctx context.Context) ([]models.BankTransaction, error) {
		return o.store.Transactions().ListUnreconciled(ctx, companyID, o.limit)
	})
	if err != nil {
		return summary, fmt.Errorf("load unreconciled transactions of %s: %w", companyID, err)
	}
	pool := map[models.InvoiceKind][]models.Invoice{}
	for _, kind := range []models.InvoiceKind{models.KindReceivable, models.KindPayable} {
		invs, err := retry.Value(ctx, o.retry, o.logger, "invoices.list_open", func(ctx context.Context) ([]models.Invoice, error) {
			return o.store.Invoices().ListOpen(ctx, companyID, kind)
		})
		if err != nil {
			return summary, fmt.Errorf("load open %s invoices of %s: %w", kind, companyID, err)
		}
		pool[kind] = invs
	}

	log.Info("Starting batch reconciliation",
		logging.F(logging.FieldCount, len(txs)),
		logging.F("receivables", len(pool[models.KindReceivable])),
		logging.F("payables", len(pool[models.KindPayable])),
		logging.F("dry_run", opts.DryRun))

	taken := map[models.InvoiceRef]bool{}
	defer func() {
		o.metrics.ObserveBatch(time.Since(start))
	}()

	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			log.Warn("Batch cancelled", logging.F(logging.FieldCount, summary.Processed))
			summary.Duration = time.Since(start).String()
			return summary, err
		}
		item := o.reconcileOne(ctx, tx, pool[tx.CandidateKind()], taken, opts.DryRun)
		o.metrics.BatchItem(string(item.Outcome))
		summary.add(item)
	}

	summary.Duration = time.Since(start).String()
	log.Info("Batch reconciliation completed",
		logging.F("processed", summary.Processed),
		logging.F("auto_matched", summary.AutoMatched),
		logging.F("suggested", summary.Suggested),
		logging.F("failed", summary.Failed))
	return summary, nil
}

func (o *Orchestrator) reconcileOne(ctx context.Context, tx models.BankTransaction, invoices []models.Invoice, taken map[models.InvoiceRef]bool, dryRun bool) ItemResult {
	item := ItemResult{TransactionID: tx.ID}

	best, found, available := o.bestCandidate(tx, invoices, taken)
	if !available {
		item.Outcome = OutcomeNoInvoicesAvailable
		return item
	}
	if found {
		item.InvoiceID = best.invoice.ID
		item.InvoiceKind = best.invoice.Kind
		item.InvoiceNumber = best.invoice.Number
		item.Score = best.breakdown.Score
		item.Breakdown = best.breakdown
	}

	log := o.logger.WithFields(
		logging.F(logging.FieldTransactionID, tx.ID),
		logging.F(logging.FieldInvoiceID, item.InvoiceID),
		logging.F(logging.FieldScore, item.Score),
	)

	switch {
	case found && item.Score >= o.autoThreshold:
		item.Outcome = OutcomeAutoMatched
		if dryRun {
			break
		}
		ref := models.InvoiceRef{ID: best.invoice.ID, Kind: best.invoice.Kind}
		if _, err := o.confirm(ctx, tx.ID, ref, models.ReconciliationAuto, item.Score); err != nil {
			log.WithError(err).Warn("Auto-match failed")
			return failed(item, err)
		}
		taken[ref] = true
		log.Info("Transaction auto-matched")
	case found && item.Score >= o.suggestThreshold:
		item.Outcome = OutcomeSuggested
		if dryRun {
			break
		}
		if err := o.suggest(ctx, tx, best); err != nil {
			log.WithError(err).Warn("Storing suggestion failed")
			return failed(item, err)
		}
		log.Debug("Match suggested")
	default:
		item.Outcome = OutcomeNoMatch
	}
	return item
}

func failed(item ItemResult, err error) ItemResult {
	item.Outcome = OutcomeFailed
	item.Error = err.Error()
	return item
}

// bestCandidate returns the highest scoring eligible invoice. available is
// false when no invoice of the transaction's kind remains at all.
func (o *Orchestrator) bestCandidate(tx models.BankTransaction, invoices []models.Invoice, taken map[models.InvoiceRef]bool) (best candidate, found, available bool) {
	for _, inv := range invoices {
		if taken[models.InvoiceRef{ID: inv.ID, Kind: inv.Kind}] {
			continue
		}
		available = true
		if !scoring.Eligible(tx, inv) {
			continue
		}
		b := scoring.Explain(tx, inv)
		if !found || b.Score > best.breakdown.Score {
			best, found = candidate{invoice: inv, breakdown: b}, true
		}
	}
	return best, found, available
}

func (o *Orchestrator) suggest(ctx context.Context, tx models.BankTransaction, best candidate) error {
	return retry.Do(ctx, o.retry, o.logger, "reconciliation.suggest", func(ctx context.Context) error {
		return o.store.WithinTx(ctx, func(ctx context.Context, st repository.Store) error {
			err := st.Transactions().UpdateReconciliation(ctx, tx.ID, models.StatusUnmatched, models.ReconciliationUpdate{
				Status:     models.StatusSuggested,
				Confidence: best.breakdown.Score,
			})
			if err != nil {
				return err
			}
			return st.Suggestions().Save(ctx, models.Suggestion{
				TransactionID: tx.ID,
				InvoiceID:     best.invoice.ID,
				InvoiceKind:   best.invoice.Kind,
				InvoiceNumber: best.invoice.Number,
				CompanyID:     tx.CompanyID,
				Score:         best.breakdown.Score,
				CreatedAt:     o.clock.Now().UTC(),
			})
		})
	})
}
