// Package classifier picks the debit account of a supplier invoice. Tiers
// are tried in order and the first one that decides wins:
//  1. Explicit category carried by the record
//  2. Learned per-counterparty override
//  3. Keyword groups on counterparty name and description
//  4. Fixed-asset heuristic on large capital-goods invoices
//  5. Optional AI suggestion
//  6. Miscellaneous-expense fallback
package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fjacquet/recon-ledger/internal/accounts"
	"fjacquet/recon-ledger/internal/cache"
	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/models"
	"fjacquet/recon-ledger/internal/reconerror"
	"fjacquet/recon-ledger/internal/repository"

	"github.com/shopspring/decimal"
)

// Classification is the outcome of Classify.
type Classification struct {
	Category string `json:"category,omitempty"`
	models.AccountMapping
	Strategy string `json:"strategy"`
	// Fallback is set when no tier recognized the invoice.
	Fallback bool `json:"fallback,omitempty"`
}

// Defaults.
const (
	DefaultFixedAssetThreshold = 5000
	DefaultOverrideCacheTTL    = 5 * time.Minute
	MaxAlternatives            = 5
)

// Classifier runs the strategy chain.
type Classifier struct {
	chart      *accounts.Chart
	overrides  *OverrideStrategy
	strategies []Strategy
	logger     logging.Logger
}

type options struct {
	groups    []models.KeywordGroup
	ai        AIClient
	cacheTTL  time.Duration
	clock     cache.Clock
	threshold decimal.Decimal
	logger    logging.Logger
}

// Option configures a Classifier.
type Option func(*options)

// WithKeywordGroups replaces the built-in keyword groups.
func WithKeywordGroups(groups []models.KeywordGroup) Option {
	return func(o *options) { o.groups = groups }
}

// WithAI registers the AI tier.
func WithAI(client AIClient) Option {
	return func(o *options) { o.ai = client }
}

// WithOverrideCache sets the override cache TTL and clock.
func WithOverrideCache(ttl time.Duration, clock cache.Clock) Option {
	return func(o *options) {
		o.cacheTTL = ttl
		o.clock = clock
	}
}

// WithFixedAssetThreshold sets the gross amount above which capital goods
// are booked as fixed assets.
func WithFixedAssetThreshold(threshold decimal.Decimal) Option {
	return func(o *options) { o.threshold = threshold }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New builds a classifier over chart and the override repository.
func New(chart *accounts.Chart, overrides repository.OverrideRepository, opts ...Option) *Classifier {
	o := options{
		groups:    DefaultKeywordGroups(),
		cacheTTL:  DefaultOverrideCacheTTL,
		threshold: decimal.NewFromInt(DefaultFixedAssetThreshold),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if chart == nil {
		chart = accounts.DefaultChart()
	}
	logger := logging.OrDefault(o.logger)
	if len(o.groups) == 0 {
		o.groups = DefaultKeywordGroups()
	}

	c := &Classifier{chart: chart, logger: logger}
	c.overrides = NewOverrideStrategy(overrides, cache.NewTTL[string, *models.AccountMapping](o.cacheTTL, o.clock), logger)
	c.strategies = []Strategy{
		NewCategoryStrategy(chart, logger),
		c.overrides,
		NewKeywordStrategy(chart, o.groups, logger),
		NewFixedAssetStrategy(chart, o.threshold, logger),
	}
	if o.ai != nil {
		c.strategies = append(c.strategies, NewAIStrategy(o.ai, chart, logger))
	}
	return c
}

// Strategies returns the names of the registered tiers in order.
func (c *Classifier) Strategies() []string {
	names := make([]string, 0, len(c.strategies)+1)
	for _, s := range c.strategies {
		names = append(names, s.Name())
	}
	return append(names, StrategyFallback)
}

// Classify returns the debit account, label and VAT deductibility of inv.
// It only fails when ctx is done.
func (c *Classifier) Classify(ctx context.Context, inv models.NormalizedInvoice) (Classification, error) {
	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return Classification{}, err
		}
		result, found, err := s.Classify(ctx, inv)
		if err != nil {
			entry := c.logger.WithError(err).WithFields(
				logging.F(logging.FieldStrategy, s.Name()),
				logging.F(logging.FieldCounterparty, inv.CounterpartyName),
			)
			if errors.Is(err, reconerror.ErrUnavailable) {
				entry.Warn("Classification tier unavailable, continuing")
			} else {
				entry.Warn("Classification tier failed, continuing")
			}
			continue
		}
		if found {
			result.Strategy = s.Name()
			c.logger.Debug("Invoice classified",
				logging.F(logging.FieldStrategy, s.Name()),
				logging.F(logging.FieldCounterparty, inv.CounterpartyName),
				logging.F(logging.FieldAccount, result.Account))
			return result, nil
		}
	}

	fallback := c.chart.MustLookup(accounts.CategoryFallback)
	c.logger.Debug("No tier matched, using fallback account",
		logging.F(logging.FieldCounterparty, inv.CounterpartyName),
		logging.F(logging.FieldAccount, fallback.Account))
	return Classification{
		Category:       accounts.CategoryFallback,
		AccountMapping: fallback,
		Strategy:       StrategyFallback,
		Fallback:       true,
	}, nil
}

// AlternativeAccounts returns up to five common mappings other than the
// classified account, for manual review.
func (c *Classifier) AlternativeAccounts(cl Classification) []accounts.Entry {
	return c.chart.Alternatives(cl.Account, MaxAlternatives)
}

// SearchMappings searches the chart by category, label or account prefix.
func (c *Classifier) SearchMappings(query string) []accounts.Entry {
	return c.chart.Search(query)
}

// SaveMapping stores a learned override for counterparty and drops the
// cached lookup so the next classification sees it.
func (c *Classifier) SaveMapping(ctx context.Context, counterparty string, mapping models.AccountMapping) error {
	if strings.TrimSpace(counterparty) == "" {
		return reconerror.NewValidationError("counterparty", "required")
	}
	if strings.TrimSpace(mapping.Account) == "" {
		return reconerror.NewValidationError("account", "required")
	}
	if mapping.Label == "" {
		mapping.Label = accounts.AccountName(mapping.Account)
	}
	if err := c.overrides.Save(ctx, counterparty, mapping); err != nil {
		return fmt.Errorf("save mapping for %s: %w", counterparty, err)
	}
	c.logger.Info("Saved counterparty mapping",
		logging.F(logging.FieldCounterparty, counterparty),
		logging.F(logging.FieldAccount, mapping.Account))
	return nil
}

// Chart returns the chart of accounts in use.
func (c *Classifier) Chart() *accounts.Chart {
	return c.chart
}
