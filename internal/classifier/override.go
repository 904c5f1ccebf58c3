package classifier

import (
	"context"
	"fmt"

	"fjacquet/recon-ledger/internal/cache"
	"fjacquet/recon-ledger/internal/logging"
	"fjacquet/recon-ledger/internal/models"
	"fjacquet/recon-ledger/internal/repository"
	"fjacquet/recon-ledger/internal/textutils"
)

// OverrideStrategy applies the mapping learned for a counterparty. Lookups
// are cached, misses included, until the TTL expires or Save invalidates
// the key.
type OverrideStrategy struct {
	repo   repository.OverrideRepository
	cache  *cache.TTL[string, *models.AccountMapping]
	logger logging.Logger
}

// NewOverrideStrategy creates a new OverrideStrategy instance. A nil repo
// disables the tier.
func NewOverrideStrategy(repo repository.OverrideRepository, c *cache.TTL[string, *models.AccountMapping], logger logging.Logger) *OverrideStrategy {
	if c == nil {
		c = cache.NewTTL[string, *models.AccountMapping](0, nil)
	}
	return &OverrideStrategy{repo: repo, cache: c, logger: logging.OrDefault(logger)}
}

// Name returns the name of this strategy for logging and debugging.
func (s *OverrideStrategy) Name() string {
	return StrategyOverride
}

// candidateKeys lists the counterparty id, then the name, without blanks
// or duplicates.
func candidateKeys(inv models.NormalizedInvoice) []string {
	var keys []string
	seen := map[string]bool{}
	for _, k := range []string{inv.CounterpartyID, inv.CounterpartyName} {
		folded := textutils.Fold(k)
		if folded == "" || seen[folded] {
			continue
		}
		seen[folded] = true
		keys = append(keys, k)
	}
	return keys
}

// Classify implements Strategy.
func (s *OverrideStrategy) Classify(ctx context.Context, inv models.NormalizedInvoice) (Classification, bool, error) {
	if s.repo == nil {
		return Classification{}, false, nil
	}
	for _, key := range candidateKeys(inv) {
		m, err := s.lookup(ctx, key)
		if err != nil {
			return Classification{}, false, err
		}
		if m != nil && !m.IsZero() {
			s.logger.Debug("Counterparty override applied",
				logging.F(logging.FieldCounterparty, key),
				logging.F(logging.FieldAccount, m.Account))
			return Classification{AccountMapping: *m}, true, nil
		}
	}
	return Classification{}, false, nil
}

func (s *OverrideStrategy) lookup(ctx context.Context, counterparty string) (*models.AccountMapping, error) {
	key := textutils.Fold(counterparty)
	if m, ok := s.cache.Get(key); ok {
		return m, nil
	}
	m, err := s.repo.GetOverride(ctx, counterparty)
	if err != nil {
		return nil, fmt.Errorf("override lookup for %s: %w", counterparty, err)
	}
	s.cache.Set(key, m)
	return m, nil
}

// Save stores mapping and invalidates the cached lookup.
func (s *OverrideStrategy) Save(ctx context.Context, counterparty string, mapping models.AccountMapping) error {
	if s.repo == nil {
		return fmt.Errorf("no override repository configured")
	}
	if err := s.repo.SaveOverride(ctx, counterparty, mapping); err != nil {
		return err
	}
	s.cache.Delete(textutils.Fold(counterparty))
	return nil
}
