package classifier

import (
	"context"

	"fjacquet/recon-ledger/internal/accounts"
	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/models"
	"fjacquet/recon-ledger/internal/textutils"

	"github.com/shopspring/decimal"
)

// CapitalGoodsKeywords mark an invoice as a potential investment.
var CapitalGoodsKeywords = []string{"ordinateur", "serveur", "machine", "vehicule", "voiture", "meuble", "equipement"}

// FixedAssetStrategy books large capital-goods purchases on the fixed
// asset account instead of an expense account.
type FixedAssetStrategy struct {
	chart     *accounts.Chart
	threshold decimal.Decimal
	logger    logging.Logger
}

// NewFixedAssetStrategy creates a new FixedAssetStrategy instance.
func NewFixedAssetStrategy(chart *accounts.Chart, threshold decimal.Decimal, logger logging.Logger) *FixedAssetStrategy {
	return &FixedAssetStrategy{chart: chart, threshold: threshold, logger: logging.OrDefault(logger)}
}

// Name returns the name of this strategy for logging and debugging.
func (s *FixedAssetStrategy) Name() string {
	return StrategyFixedAsset
}

// Classify implements Strategy. The gross amount must be strictly above
// the threshold.
func (s *FixedAssetStrategy) Classify(_ context.Context, inv models.NormalizedInvoice) (Classification, bool, error) {
	if !inv.GrossAmount().GreaterThan(s.threshold) {
		return Classification{}, false, nil
	}
	if _, ok := textutils.MatchAny(inv.SearchText(), CapitalGoodsKeywords); !ok {
		return Classification{}, false, nil
	}
	m, ok := s.chart.Lookup(accounts.CategoryFixedAsset)
	if !ok {
		return Classification{}, false, nil
	}
	s.logger.Debug("Capital goods above threshold, booking as fixed asset",
		logging.F("threshold", s.threshold.String()))
	return Classification{Category: accounts.CategoryFixedAsset, AccountMapping: m}, true, nil
}
