package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
)

// MockKekUseCase is a mock implementation of KekUseCase.
type MockKekUseCase struct {
	mock.Mock
}

// Create mocks the Create method.
func (m *MockKekUseCase) Create(
	ctx context.Context,
	masterKeyChain *cryptoDomain.MasterKeyChain,
	alg cryptoDomain.Algorithm,
) error {
	args := m.Called(ctx, masterKeyChain, alg)
	return args.Error(0)
}

// Rotate mocks the Rotate method.
func (m *MockKekUseCase) Rotate(
	ctx context.Context,
	masterKeyChain *cryptoDomain.MasterKeyChain,
	alg cryptoDomain.Algorithm,
) error {
	args := m.Called(ctx, masterKeyChain, alg)
	return args.Error(0)
}

// RewrapWithActiveMasterKey mocks the RewrapWithActiveMasterKey method.
func (m *MockKekUseCase) RewrapWithActiveMasterKey(
	ctx context.Context,
	masterKeyChain *cryptoDomain.MasterKeyChain,
) (int, error) {
	args := m.Called(ctx, masterKeyChain)
	return args.Int(0), args.Error(1)
}

// Unwrap mocks the Unwrap method.
func (m *MockKekUseCase) Unwrap(
	ctx context.Context,
	masterKeyChain *cryptoDomain.MasterKeyChain,
) (*cryptoDomain.KekChain, error) {
	args := m.Called(ctx, masterKeyChain)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.KekChain), args.Error(1)
}
