package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/tenantkeys/internal/errors"
	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
)

func TestInsightsUseCase_GetEncryptionMetrics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	payment := encrypt(t, env, "site-1", keysDomain.PurposePaymentInfo, "card")
	encrypt(t, env, "site-1", keysDomain.PurposePaymentInfo, "card 2")
	userData := encrypt(t, env, "site-1", keysDomain.PurposeUserData, "profile")
	encrypt(t, env, "site-2", keysDomain.PurposeUserData, "other tenant")

	_, err := env.lifecycle.Decrypt(ctx, DecryptInput{SiteID: "site-1", EncryptedData: payment.EncryptedData})
	require.NoError(t, err)

	env.clock.Advance(31 * day)

	metrics, err := env.insights.GetEncryptionMetrics(ctx, "site-1", 60)
	require.NoError(t, err)
	assert.Equal(t, "site-1", metrics.SiteID)
	assert.Equal(t, 60, metrics.Days)

	counts := make(map[keysDomain.Purpose]map[keysDomain.Action]int64)
	for _, c := range metrics.OperationCounts {
		if counts[c.Purpose] == nil {
			counts[c.Purpose] = make(map[keysDomain.Action]int64)
		}
		counts[c.Purpose][c.Action] = c.Count
	}
	assert.Equal(t, int64(2), counts[keysDomain.PurposePaymentInfo][keysDomain.ActionEncrypt])
	assert.Equal(t, int64(1), counts[keysDomain.PurposePaymentInfo][keysDomain.ActionDecrypt])
	assert.Equal(t, int64(1), counts[keysDomain.PurposePaymentInfo][keysDomain.ActionCreate])
	assert.Equal(t, int64(1), counts[keysDomain.PurposeUserData][keysDomain.ActionEncrypt])

	require.Len(t, metrics.RotationSchedule, 2)
	assert.Equal(t, payment.KeyID, metrics.RotationSchedule[0].KeyID, "earliest due first")
	assert.Equal(t, userData.KeyID, metrics.RotationSchedule[1].KeyID)
	assert.True(t, metrics.RotationSchedule[0].Overdue)
	assert.False(t, metrics.RotationSchedule[1].Overdue)

	require.Len(t, metrics.KeysNeedingRotation, 1)
	assert.Equal(t, payment.KeyID, metrics.KeysNeedingRotation[0].KeyID)

	t.Run("WindowExcludesOlderRecords", func(t *testing.T) {
		metrics, err := env.insights.GetEncryptionMetrics(ctx, "site-1", 7)
		require.NoError(t, err)
		assert.Empty(t, metrics.OperationCounts)
	})

	t.Run("ReadOnly", func(t *testing.T) {
		before := len(env.audits.actions(payment.KeyID))
		_, err := env.insights.GetEncryptionMetrics(ctx, "site-1", 30)
		require.NoError(t, err)
		assert.Len(t, env.audits.actions(payment.KeyID), before)
	})
}

func TestInsightsUseCase_GetEncryptionMetrics_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		siteID string
		days   int
		err    error
	}{
		{name: "ZeroDays", siteID: "site-1", days: 0, err: keysDomain.ErrInvalidWindow},
		{name: "NegativeDays", siteID: "site-1", days: -3, err: keysDomain.ErrInvalidWindow},
		{name: "TooManyDays", siteID: "site-1", days: 366, err: keysDomain.ErrInvalidWindow},
		{name: "MissingSite", siteID: "", days: 30, err: keysDomain.ErrSiteIDRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics, err := env.insights.GetEncryptionMetrics(ctx, tt.siteID, tt.days)
			assert.ErrorIs(t, err, tt.err)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Nil(t, metrics)
		})
	}

	t.Run("EmptySite", func(t *testing.T) {
		metrics, err := env.insights.GetEncryptionMetrics(ctx, "site-9", 365)
		require.NoError(t, err)
		assert.Empty(t, metrics.OperationCounts)
		assert.Empty(t, metrics.RotationSchedule)
	})
}

func TestInsightsUseCase_ListAuditRecords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for range 3 {
		encrypt(t, env, "site-1", keysDomain.PurposeUserData, "x")
	}
	encrypt(t, env, "site-2", keysDomain.PurposeUserData, "x")

	records, err := env.insights.ListAuditRecords(ctx, keysDomain.AuditFilter{SiteID: "site-1"})
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, keysDomain.ActionEncrypt, records[0].Action, "newest first")
	assert.Equal(t, keysDomain.ActionCreate, records[3].Action)
	for _, record := range records {
		assert.Equal(t, "site-1", record.SiteID)
	}

	page, err := env.insights.ListAuditRecords(ctx, keysDomain.AuditFilter{SiteID: "site-1", Offset: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, records[1:3], page)

	_, err = env.insights.ListAuditRecords(ctx, keysDomain.AuditFilter{})
	assert.ErrorIs(t, err, keysDomain.ErrSiteIDRequired)
}

func TestInsightsUseCase_VerifyAuditRecords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	encrypted := encrypt(t, env, "site-1", keysDomain.PurposeUserData, "x")
	_, err := env.lifecycle.Decrypt(ctx, DecryptInput{SiteID: "site-1", EncryptedData: encrypted.EncryptedData})
	require.NoError(t, err)

	result, err := env.insights.VerifyAuditRecords(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Valid)
	assert.Zero(t, result.Invalid)
	assert.Empty(t, result.InvalidIDs)

	t.Run("DetectsTampering", func(t *testing.T) {
		env.audits.mu.Lock()
		tampered := env.audits.records[1]
		tampered.PrincipalID = "someone-else"
		env.audits.mu.Unlock()

		result, err := env.insights.VerifyAuditRecords(ctx, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Valid)
		assert.Equal(t, 1, result.Invalid)
		assert.Equal(t, []uuid.UUID{tampered.ID}, result.InvalidIDs)
	})

	t.Run("CountsUnsigned", func(t *testing.T) {
		require.NoError(t, env.audits.Create(ctx, &keysDomain.AuditRecord{
			ID:        uuid.Must(uuid.NewV7()),
			SiteID:    "site-1",
			Purpose:   keysDomain.PurposeUserData,
			KeyID:     encrypted.KeyID,
			Action:    keysDomain.ActionEncrypt,
			CreatedAt: env.clock.Now(),
		}))

		result, err := env.insights.VerifyAuditRecords(ctx, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 4, result.Total)
		assert.Equal(t, 1, result.Unsigned)
	})

	t.Run("UnknownKek", func(t *testing.T) {
		unknown := uuid.Must(uuid.NewV7())
		record := &keysDomain.AuditRecord{
			ID:        uuid.Must(uuid.NewV7()),
			SiteID:    "site-1",
			Purpose:   keysDomain.PurposeUserData,
			KeyID:     encrypted.KeyID,
			Action:    keysDomain.ActionEncrypt,
			KekID:     &unknown,
			Signature: []byte("signature"),
			CreatedAt: env.clock.Now(),
		}
		require.NoError(t, env.audits.Create(ctx, record))

		result, err := env.insights.VerifyAuditRecords(ctx, nil, nil)
		require.NoError(t, err)
		assert.Contains(t, result.InvalidIDs, record.ID)
	})
}

func TestInsightsUseCase_CleanAuditRecords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	encrypt(t, env, "site-1", keysDomain.PurposeUserData, "old")
	env.clock.Advance(100 * day)
	encrypt(t, env, "site-1", keysDomain.PurposeUserData, "new")

	count, err := env.insights.CleanAuditRecords(ctx, 90, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "CREATE and ENCRYPT from the first call")

	records, err := env.insights.ListAuditRecords(ctx, keysDomain.AuditFilter{SiteID: "site-1"})
	require.NoError(t, err)
	assert.Len(t, records, 3, "dry run keeps everything")

	count, err = env.insights.CleanAuditRecords(ctx, 90, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	records, err = env.insights.ListAuditRecords(ctx, keysDomain.AuditFilter{SiteID: "site-1"})
	require.NoError(t, err)
	assert.Len(t, records, 1)

	_, err = env.insights.CleanAuditRecords(ctx, 0, false)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestInsightsUseCase_VerifyAuditRecords_Window(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	encrypt(t, env, "site-1", keysDomain.PurposeUserData, "x")
	env.clock.Advance(10 * day)
	from := env.clock.Now()
	encrypt(t, env, "site-1", keysDomain.PurposeUserData, "y")

	result, err := env.insights.VerifyAuditRecords(ctx, &from, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)

	to := from.Add(-time.Second)
	result, err = env.insights.VerifyAuditRecords(ctx, nil, &to)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
}
