package classifier

import (
	"context"
	"errors"
	"strings"

	"fjacquet/recon-ledger/internal/accounts"
	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/models"
	"fjacquet/recon-ledger/internal/reconerror"
)

// AIClient suggests one of categories for an invoice. This abstraction
// allows the tier to be tested without external API calls.
type AIClient interface {
	SuggestCategory(ctx context.Context, inv models.NormalizedInvoice, categories []string) (string, error)
}

// AIStrategy asks an AIClient for a category. Client failures surface as
// reconerror.UnavailableError; answers outside the chart are ignored.
type AIStrategy struct {
	client AIClient
	chart  *accounts.Chart
	logger logging.Logger
}

// NewAIStrategy creates a new AIStrategy instance.
func NewAIStrategy(client AIClient, chart *accounts.Chart, logger logging.Logger) *AIStrategy {
	return &AIStrategy{client: client, chart: chart, logger: logging.OrDefault(logger)}
}

// Name returns the name of this strategy for logging and debugging.
func (s *AIStrategy) Name() string {
	return StrategyAI
}

// Classify implements Strategy.
func (s *AIStrategy) Classify(ctx context.Context, inv models.NormalizedInvoice) (Classification, bool, error) {
	if strings.TrimSpace(inv.CounterpartyName) == "" && strings.TrimSpace(inv.Description) == "" {
		return Classification{}, false, nil
	}

	entries := s.chart.Entries()
	categories := make([]string, 0, len(entries))
	for _, e := range entries {
		categories = append(categories, e.Category)
	}

	category, err := s.client.SuggestCategory(ctx, inv, categories)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Classification{}, false, ctxErr
		}
		var unavailable *reconerror.UnavailableError
		if errors.As(err, &unavailable) {
			return Classification{}, false, err
		}
		return Classification{}, false, &reconerror.UnavailableError{Service: "ai classifier", Err: err}
	}

	category = strings.ToLower(strings.TrimSpace(category))
	m, ok := s.chart.Lookup(category)
	if !ok {
		s.logger.Debug("AI suggested an unknown category, ignoring",
			logging.F(logging.FieldCategory, category),
			logging.F(logging.FieldCounterparty, inv.CounterpartyName))
		return Classification{}, false, nil
	}
	return Classification{Category: category, AccountMapping: m}, true, nil
}
