// Package mocks provides testify mocks for the crypto use case dependencies.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
)

// MockKekRepository is a mock implementation of KekRepository.
type MockKekRepository struct {
	mock.Mock
}

// Create mocks the Create method.
func (m *MockKekRepository) Create(ctx context.Context, kek *cryptoDomain.Kek) error {
	args := m.Called(ctx, kek)
	return args.Error(0)
}

// Update mocks the Update method.
func (m *MockKekRepository) Update(ctx context.Context, kek *cryptoDomain.Kek) error {
	args := m.Called(ctx, kek)
	return args.Error(0)
}

// List mocks the List method.
func (m *MockKekRepository) List(ctx context.Context) ([]*cryptoDomain.Kek, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*cryptoDomain.Kek), args.Error(1)
}
