package store

import (
	"context"

	"fjacquet/recon-ledger/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockOverrideRepository is a testify mock of repository.OverrideRepository.
type MockOverrideRepository struct {
	mock.Mock
}

// GetOverride returns the stubbed mapping. A nil first return value is
// passed through as "no override".
func (m *MockOverrideRepository) GetOverride(ctx context.Context, counterpartyID string) (*models.AccountMapping, error) {
	args := m.Called(ctx, counterpartyID)
	if v := args.Get(0); v != nil {
		return v.(*models.AccountMapping), args.Error(1)
	}
	return nil, args.Error(1)
}

// SaveOverride records the call.
func (m *MockOverrideRepository) SaveOverride(ctx context.Context, counterpartyID string, mapping models.AccountMapping) error {
	args := m.Called(ctx, counterpartyID, mapping)
	return args.Error(0)
}

// ListOverrides returns the stubbed map.
func (m *MockOverrideRepository) ListOverrides(ctx context.Context) (map[string]models.AccountMapping, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.(map[string]models.AccountMapping), args.Error(1)
	}
	return nil, args.Error(1)
}
