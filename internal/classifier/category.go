package classifier

import (
	"context"
	"strings"

	"fjacquet/recon-ledger/internal/accounts"
	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/models"
)

// CategoryStrategy uses the category carried by the source record when the
// chart knows it.
type CategoryStrategy struct {
	chart  *accounts.Chart
	logger logging.Logger
}

// NewCategoryStrategy creates a new CategoryStrategy instance.
func NewCategoryStrategy(chart *accounts.Chart, logger logging.Logger) *CategoryStrategy {
	return &CategoryStrategy{chart: chart, logger: logging.OrDefault(logger)}
}

// Name returns the name of this strategy for logging and debugging.
func (s *CategoryStrategy) Name() string {
	return StrategyCategory
}

// Classify implements Strategy.
func (s *CategoryStrategy) Classify(_ context.Context, inv models.NormalizedInvoice) (Classification, bool, error) {
	category := strings.ToLower(strings.TrimSpace(inv.Category))
	if category == "" {
		return Classification{}, false, nil
	}
	m, ok := s.chart.Lookup(category)
	if !ok {
		s.logger.Debug("Record category not in chart",
			logging.F(logging.FieldCategory, inv.Category))
		return Classification{}, false, nil
	}
	return Classification{Category: category, AccountMapping: m}, true, nil
}
