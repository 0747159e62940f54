// Package mocks provides testify mocks for the keys use cases.
package mocks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"

	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
	keysUsecase "github.com/allisson/tenantkeys/internal/keys/usecase"
)

// MockLifecycleUseCase is a mock implementation of LifecycleUseCase.
type MockLifecycleUseCase struct {
	mock.Mock
}

// NewMockLifecycleUseCase creates a MockLifecycleUseCase whose expectations are
// asserted when the test ends.
func NewMockLifecycleUseCase(t *testing.T) *MockLifecycleUseCase {
	m := &MockLifecycleUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// ResolveActiveKey mocks the ResolveActiveKey method.
func (m *MockLifecycleUseCase) ResolveActiveKey(
	ctx context.Context,
	siteID string,
	purpose keysDomain.Purpose,
) (*keysDomain.EncryptionKey, error) {
	args := m.Called(ctx, siteID, purpose)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keysDomain.EncryptionKey), args.Error(1)
}

// Encrypt mocks the Encrypt method.
func (m *MockLifecycleUseCase) Encrypt(
	ctx context.Context,
	input keysUsecase.EncryptInput,
) (*keysUsecase.EncryptOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keysUsecase.EncryptOutput), args.Error(1)
}

// Decrypt mocks the Decrypt method.
func (m *MockLifecycleUseCase) Decrypt(
	ctx context.Context,
	input keysUsecase.DecryptInput,
) (*keysUsecase.DecryptOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keysUsecase.DecryptOutput), args.Error(1)
}

// Rotate mocks the Rotate method.
func (m *MockLifecycleUseCase) Rotate(
	ctx context.Context,
	input keysUsecase.RotateInput,
) (*keysUsecase.RotateOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keysUsecase.RotateOutput), args.Error(1)
}

// ProcessAutomaticRotations mocks the ProcessAutomaticRotations method.
func (m *MockLifecycleUseCase) ProcessAutomaticRotations(
	ctx context.Context,
	siteID string,
) (*keysDomain.RotationReport, error) {
	args := m.Called(ctx, siteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keysDomain.RotationReport), args.Error(1)
}

// Destroy mocks the Destroy method.
func (m *MockLifecycleUseCase) Destroy(
	ctx context.Context,
	input keysUsecase.DestroyInput,
) (*keysDomain.EncryptionKey, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keysDomain.EncryptionKey), args.Error(1)
}

// ListKeys mocks the ListKeys method.
func (m *MockLifecycleUseCase) ListKeys(ctx context.Context, siteID string) ([]*keysDomain.EncryptionKey, error) {
	args := m.Called(ctx, siteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*keysDomain.EncryptionKey), args.Error(1)
}

// RewrapKeys mocks the RewrapKeys method.
func (m *MockLifecycleUseCase) RewrapKeys(ctx context.Context, batchSize int) (int, error) {
	args := m.Called(ctx, batchSize)
	return args.Int(0), args.Error(1)
}
