package classifier

import (
	"context"

	"fjacquet/recon-ledger/internal/accounts"
	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/models"
	"fjacquet/recon-ledger/internal/textutils"
)

// DefaultKeywordGroups returns the built-in supplier keyword groups, most
// specific first. Keywords are compared accent-folded; three letters or
// fewer must match a whole word.
func DefaultKeywordGroups() []models.KeywordGroup {
	return []models.KeywordGroup{
		{Category: "telecom", Keywords: []string{"swisscom", "sunrise", "salt", "upc"}},
		{Category: "logiciel", Keywords: []string{"microsoft", "google", "adobe", "oracle", "sap", "atlassian"}},
		{Category: "hebergement_web", Keywords: []string{"amazon web services", "aws", "azure", "digitalocean", "infomaniak"}},
		{Category: "deplacements", Keywords: []string{"sbb", "cff", "ffs", "bls", "transn"}},
		{Category: "transport", Keywords: []string{"uber", "taxi", "bolt"}},
		{Category: "carburant", Keywords: []string{"shell", "bp", "avia", "migrol", "tamoil", "carburant", "essence", "diesel"}},
		{Category: "fournitures", Keywords: []string{"migros", "coop", "denner", "aldi", "lidl", "volg"}},
		{Category: "electricite", Keywords: []string{"electricite", "services industriels", "sig", "romande energie", "groupe e"}},
		{Category: "chauffage", Keywords: []string{"chauffage", "mazout", "pellet"}},
		{Category: "loyer", Keywords: []string{"loyer", "bail", "regie", "immobilier", "gerance"}},
		{Category: "assurances", Keywords: []string{"axa", "zurich", "mobiliar", "helvetia", "baloise", "vaudoise", "generali", "allianz"}},
		{Category: "avocat", Keywords: []string{"avocat", "etude", "legal", "juridique"}},
		{Category: "fiduciaire", Keywords: []string{"fiduciaire", "comptable", "revision", "audit"}},
		{Category: "notaire", Keywords: []string{"notaire", "notariat"}},
		{Category: "marketing", Keywords: []string{"publicite", "marketing", "google ads", "facebook ads", "linkedin"}},
		{Category: "imprimerie", Keywords: []string{"imprimerie", "print", "impression", "flyeralarm"}},
		{Category: "formation", Keywords: []string{"formation", "cours", "seminaire", "conference"}},
		{Category: "poste", Keywords: []string{"poste", "la poste"}},
		{Category: "informatique_immobilise", Keywords: []string{"apple", "dell", "hp", "lenovo", "asus"}},
		{Category: "mobilier", Keywords: []string{"ikea", "pfister", "conforama", "interio"}},
	}
}

// KeywordStrategy matches counterparty name and description against ordered
// keyword groups; the first group with a hit wins.
type KeywordStrategy struct {
	chart  *accounts.Chart
	groups []models.KeywordGroup
	logger logging.Logger
}

// NewKeywordStrategy creates a new KeywordStrategy instance. Groups whose
// category is not in the chart are dropped with a warning.
func NewKeywordStrategy(chart *accounts.Chart, groups []models.KeywordGroup, logger logging.Logger) *KeywordStrategy {
	logger = logging.OrDefault(logger)
	kept := make([]models.KeywordGroup, 0, len(groups))
	for _, g := range groups {
		if _, ok := chart.Lookup(g.Category); !ok {
			logger.Warn("Keyword group refers to unknown category, ignoring",
				logging.F(logging.FieldCategory, g.Category))
			continue
		}
		kept = append(kept, g)
	}
	return &KeywordStrategy{chart: chart, groups: kept, logger: logger}
}

// Name returns the name of this strategy for logging and debugging.
func (s *KeywordStrategy) Name() string {
	return StrategyKeyword
}

// Classify implements Strategy.
func (s *KeywordStrategy) Classify(_ context.Context, inv models.NormalizedInvoice) (Classification, bool, error) {
	text := inv.CounterpartyName + " " + inv.Description
	if textutils.Fold(text) == "" {
		return Classification{}, false, nil
	}
	for _, g := range s.groups {
		keyword, ok := textutils.MatchAny(text, g.Keywords)
		if !ok {
			continue
		}
		s.logger.Debug("Keyword matched",
			logging.F(logging.FieldCategory, g.Category),
			logging.F("keyword", keyword))
		m, _ := s.chart.Lookup(g.Category)
		return Classification{Category: g.Category, AccountMapping: m}, true, nil
	}
	return Classification{}, false, nil
}
