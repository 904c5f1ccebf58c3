// Package scheduler runs reconciliation batches on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/metrics"
	"fjacquet/recon-ledger/internal/reconciliation"

	"github.com/robfig/cron/v3"
)

// DefaultRunTimeout bounds one scheduled run over all companies.
const DefaultRunTimeout = 10 * time.Minute

// Reconciler is the part of the orchestrator the scheduler drives.
type Reconciler interface {
	ReconcileBatch(ctx context.Context, companyID string, opts reconciliation.BatchOptions) (reconciliation.Summary, error)
}

// Config describes when and for whom batches run.
type Config struct {
	Schedule  string
	Location  *time.Location
	Companies []string
	Timeout   time.Duration
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	cfg        Config
	metrics    *metrics.Metrics
	logger     logging.Logger
	entry      cron.EntryID
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMetrics records every run.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// New validates cfg and registers the reconciliation job. Overlapping runs
// are skipped.
func New(r Reconciler, cfg Config, opts ...Option) (*Scheduler, error) {
	if r == nil {
		return nil, errors.New("reconciler cannot be nil")
	}
	companies := make([]string, 0, len(cfg.Companies))
	for _, c := range cfg.Companies {
		if c = strings.TrimSpace(c); c != "" {
			companies = append(companies, c)
		}
	}
	if len(companies) == 0 {
		return nil, errors.New("no companies configured for scheduled reconciliation")
	}
	cfg.Companies = companies
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRunTimeout
	}

	s := &Scheduler{reconciler: r, cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDefault(s.logger)

	cl := cronLogger{s.logger}
	s.cron = cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	id, err := s.cron.AddFunc(cfg.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeout)
		defer cancel()
		_ = s.RunOnce(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("unable to schedule reconciliation %q: %w", cfg.Schedule, err)
	}
	s.entry = id
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Reconciliation scheduler started",
		logging.F("schedule", s.cfg.Schedule),
		logging.F("timezone", s.cfg.Location.String()),
		logging.F(logging.FieldCount, len(s.cfg.Companies)),
		logging.F("next_run", s.Next().Format(time.RFC3339)))
}

// Stop stops scheduling and returns a context done when the running job
// has finished.
func (s *Scheduler) Stop() context.Context {
	ctx := s.cron.Stop()
	s.logger.Info("Reconciliation scheduler stopped")
	return ctx
}

// Next returns the next activation time, zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// RunOnce reconciles every configured company in order. A failing company
// does not stop the others; the joined errors are returned.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()
	var errs []error
	for _, company := range s.cfg.Companies {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		summary, err := s.reconciler.ReconcileBatch(ctx, company, reconciliation.BatchOptions{})
		if err != nil {
			s.logger.WithError(err).Error("Scheduled reconciliation failed",
				logging.F(logging.FieldCompany, company))
			errs = append(errs, fmt.Errorf("company %s: %w", company, err))
			continue
		}
		s.logger.Info("Scheduled reconciliation completed",
			logging.F(logging.FieldCompany, company),
			logging.F("processed", summary.Processed),
			logging.F("auto_matched", summary.AutoMatched),
			logging.F("suggested", summary.Suggested),
			logging.F("failed", summary.Failed))
	}
	err := errors.Join(errs...)
	s.metrics.ScheduledRun(err == nil)
	s.logger.Debug("Scheduled run finished",
		logging.F(logging.FieldDuration, time.Since(start).String()),
		logging.F(logging.FieldStatus, err == nil))
	return err
}

// cronLogger routes cron's own logging through logging.Logger.
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, pairs(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.WithError(err).Error("cron: "+msg, pairs(keysAndValues)...)
}

func pairs(kv []any) []logging.Field {
	fields := make([]logging.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, logging.F(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
