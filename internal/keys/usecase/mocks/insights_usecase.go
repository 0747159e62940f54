package mocks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
	keysUsecase "github.com/allisson/tenantkeys/internal/keys/usecase"
)

// MockInsightsUseCase is a mock implementation of InsightsUseCase.
type MockInsightsUseCase struct {
	mock.Mock
}

// NewMockInsightsUseCase creates a MockInsightsUseCase whose expectations are
// asserted when the test ends.
func NewMockInsightsUseCase(t *testing.T) *MockInsightsUseCase {
	m := &MockInsightsUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// GetEncryptionMetrics mocks the GetEncryptionMetrics method.
func (m *MockInsightsUseCase) GetEncryptionMetrics(
	ctx context.Context,
	siteID string,
	days int,
) (*keysDomain.EncryptionMetrics, error) {
	args := m.Called(ctx, siteID, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keysDomain.EncryptionMetrics), args.Error(1)
}

// ListAuditRecords mocks the ListAuditRecords method.
func (m *MockInsightsUseCase) ListAuditRecords(
	ctx context.Context,
	filter keysDomain.AuditFilter,
) ([]*keysDomain.AuditRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*keysDomain.AuditRecord), args.Error(1)
}

// VerifyAuditRecords mocks the VerifyAuditRecords method.
func (m *MockInsightsUseCase) VerifyAuditRecords(
	ctx context.Context,
	from, to *time.Time,
) (*keysUsecase.AuditVerification, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keysUsecase.AuditVerification), args.Error(1)
}

// CleanAuditRecords mocks the CleanAuditRecords method.
func (m *MockInsightsUseCase) CleanAuditRecords(ctx context.Context, days int, dryRun bool) (int64, error) {
	args := m.Called(ctx, days, dryRun)
	return args.Get(0).(int64), args.Error(1)
}
