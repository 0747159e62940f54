package http

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
	"github.com/allisson/tenantkeys/internal/keys/http/dto"
)

func TestInsightsHandler_MetricsHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		insights := setupInsightsMock(t)
		handler := NewInsightsHandler(insights, testLogger())

		keyID := uuid.Must(uuid.NewV7())
		now := time.Now().UTC()
		entry := keysDomain.RotationScheduleEntry{
			KeyID:          keyID,
			Purpose:        keysDomain.PurposePaymentInfo,
			Version:        1,
			CreatedAt:      now.Add(-31 * 24 * time.Hour),
			NextRotationAt: now.Add(-24 * time.Hour),
			Overdue:        true,
		}
		insights.On("GetEncryptionMetrics", mock.Anything, testSiteID, 7).Return(&keysDomain.EncryptionMetrics{
			SiteID: testSiteID,
			Days:   7,
			OperationCounts: []keysDomain.OperationCount{
				{Purpose: keysDomain.PurposePaymentInfo, Action: keysDomain.ActionEncrypt, Count: 12},
			},
			RotationSchedule:    []keysDomain.RotationScheduleEntry{entry},
			KeysNeedingRotation: []keysDomain.RotationScheduleEntry{entry},
		}, nil).Once()

		c, w := createTestContext(http.MethodGet, "/v1/encryption/metrics?days=7", nil)
		handler.MetricsHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		response := decodeBody[dto.MetricsResponse](t, w)
		assert.Equal(t, 7, response.Days)
		assert.Equal(t, []dto.OperationCountResponse{{Purpose: "PAYMENT_INFO", Action: "ENCRYPT", Count: 12}},
			response.OperationCounts)
		assert.Len(t, response.KeysNeedingRotation, 1)
		assert.Equal(t, keyID.String(), response.KeysNeedingRotation[0].KeyID)
	})

	t.Run("Success_DefaultWindow", func(t *testing.T) {
		insights := setupInsightsMock(t)
		handler := NewInsightsHandler(insights, testLogger())

		insights.On("GetEncryptionMetrics", mock.Anything, testSiteID, 30).
			Return(&keysDomain.EncryptionMetrics{SiteID: testSiteID, Days: 30}, nil).Once()

		c, w := createTestContext(http.MethodGet, "/v1/encryption/metrics", nil)
		handler.MetricsHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Error_InvalidWindow", func(t *testing.T) {
		insights := setupInsightsMock(t)
		handler := NewInsightsHandler(insights, testLogger())

		insights.On("GetEncryptionMetrics", mock.Anything, testSiteID, 0).
			Return(nil, keysDomain.ErrInvalidWindow).Once()

		c, w := createTestContext(http.MethodGet, "/v1/encryption/metrics?days=0", nil)
		handler.MetricsHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Error_NotANumber", func(t *testing.T) {
		insights := setupInsightsMock(t)
		handler := NewInsightsHandler(insights, testLogger())

		c, w := createTestContext(http.MethodGet, "/v1/encryption/metrics?days=week", nil)
		handler.MetricsHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestInsightsHandler_ListAuditLogsHandler(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		insights := setupInsightsMock(t)
		handler := NewInsightsHandler(insights, testLogger())

		from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		insights.On("ListAuditRecords", mock.Anything, keysDomain.AuditFilter{
			SiteID: testSiteID,
			From:   &from,
			Offset: 10,
			Limit:  5,
		}).Return([]*keysDomain.AuditRecord{
			{
				ID:        uuid.Must(uuid.NewV7()),
				SiteID:    testSiteID,
				Purpose:   keysDomain.PurposeUserData,
				KeyID:     uuid.Must(uuid.NewV7()),
				Action:    keysDomain.ActionDecrypt,
				CreatedAt: from.Add(time.Hour),
			},
		}, nil).Once()

		c, w := createTestContext(http.MethodGet,
			"/v1/encryption/audit-logs?offset=10&limit=5&from=2026-01-01T00:00:00Z", nil)
		handler.ListAuditLogsHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		response := decodeBody[dto.ListAuditRecordsResponse](t, w)
		assert.Len(t, response.Data, 1)
		assert.Equal(t, "DECRYPT", response.Data[0].Action)
	})

	t.Run("Error_InvalidLimit", func(t *testing.T) {
		insights := setupInsightsMock(t)
		handler := NewInsightsHandler(insights, testLogger())

		c, w := createTestContext(http.MethodGet, "/v1/encryption/audit-logs?limit=1000", nil)
		handler.ListAuditLogsHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})

	t.Run("Error_InvalidFrom", func(t *testing.T) {
		insights := setupInsightsMock(t)
		handler := NewInsightsHandler(insights, testLogger())

		c, w := createTestContext(http.MethodGet, "/v1/encryption/audit-logs?from=yesterday", nil)
		handler.ListAuditLogsHandler(c)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}
