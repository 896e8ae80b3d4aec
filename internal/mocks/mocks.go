// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/evolve-cli/api/schemas"
)

// -- Provider Mock --

// MockProvider mocks the schemas.Provider interface.
type MockProvider struct {
	mock.Mock
}

var _ schemas.Provider = (*MockProvider)(nil)

func (m *MockProvider) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) Close() error {
	args := m.Called()
	return args.Error(0)
}

// -- Ledger Mock --

// MockLedger mocks the schemas.Ledger interface.
type MockLedger struct {
	mock.Mock
}

var _ schemas.Ledger = (*MockLedger)(nil)

func (m *MockLedger) RecordStep(ctx context.Context, rec schemas.StepRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockLedger) RecordUpdate(ctx context.Context, rec schemas.UpdateRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockLedger) Close() {
	m.Called()
}
