package classifier

import (
	"context"

	"fjacquet/recon-ledger/internal/models"
)

// Strategy is one tier of the classifier. Each tier implements a specific
// approach (explicit category, learned override, keywords, AI, ...).
type Strategy interface {
	// Classify returns the mapping for inv and whether this tier decided.
	// An error never stops the chain; the classifier logs it and moves on.
	Classify(ctx context.Context, inv models.NormalizedInvoice) (Classification, bool, error)

	// Name returns the name of this strategy for logging and debugging purposes.
	Name() string
}

// Strategy names, as reported in Classification.Strategy.
const (
	StrategyCategory   = "Category"
	StrategyOverride   = "Override"
	StrategyKeyword    = "Keyword"
	StrategyFixedAsset = "FixedAsset"
	StrategyAI         = "AI"
	StrategyFallback   = "Fallback"
)
