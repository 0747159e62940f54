package dto_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
	"github.com/allisson/tenantkeys/internal/keys/http/dto"
)

func TestMapKeyToResponse_OmitsMaterial(t *testing.T) {
	now := time.Now().UTC()
	key := &keysDomain.EncryptionKey{
		ID:              uuid.Must(uuid.NewV7()),
		SiteID:          "site-1",
		Purpose:         keysDomain.PurposePaymentInfo,
		Algorithm:       cryptoDomain.AESGCM,
		KekID:           uuid.Must(uuid.NewV7()),
		WrappedMaterial: []byte("wrapped-material"),
		Nonce:           []byte("nonce"),
		Status:          keysDomain.StatusRetired,
		Version:         3,
		RotationPolicy:  30 * 24 * time.Hour,
		CreatedAt:       now,
		RetiredAt:       &now,
	}

	response := dto.MapKeyToResponse(key)
	assert.Equal(t, key.ID.String(), response.ID)
	assert.Equal(t, "PAYMENT_INFO", response.Purpose)
	assert.Equal(t, "RETIRED", response.Status)
	assert.Equal(t, uint(3), response.Version)
	assert.Equal(t, int64(2592000), response.RotationPolicySeconds)

	body, err := json.Marshal(response)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "wrapped")
	assert.NotContains(t, string(body), "kek")
}

func TestMapRotationReportToResponse(t *testing.T) {
	rotated := uuid.Must(uuid.NewV7())
	failed := uuid.Must(uuid.NewV7())

	response := dto.MapRotationReportToResponse(&keysDomain.RotationReport{
		RotatedKeys: []uuid.UUID{rotated},
		Errors:      []keysDomain.RotationError{{KeyID: failed, Reason: "database error"}},
	})

	assert.Equal(t, []string{rotated.String()}, response.RotatedKeys)
	assert.Equal(t, []dto.RotationErrorResponse{{KeyID: failed.String(), Reason: "database error"}}, response.Errors)

	empty := dto.MapRotationReportToResponse(&keysDomain.RotationReport{})
	body, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.JSONEq(t, `{"rotated_keys":[],"errors":[]}`, string(body))
}

func TestMapAuditRecordsToListResponse(t *testing.T) {
	kekID := uuid.Must(uuid.NewV7())
	records := []*keysDomain.AuditRecord{
		{
			ID:          uuid.Must(uuid.NewV7()),
			SiteID:      "site-1",
			PrincipalID: "user-1",
			Purpose:     keysDomain.PurposeUserData,
			KeyID:       uuid.Must(uuid.NewV7()),
			Action:      keysDomain.ActionEncrypt,
			KekID:       &kekID,
			Signature:   []byte("sig"),
			CreatedAt:   time.Now().UTC(),
		},
		{
			ID:        uuid.Must(uuid.NewV7()),
			SiteID:    "site-1",
			Purpose:   keysDomain.PurposeUserData,
			KeyID:     uuid.Must(uuid.NewV7()),
			Action:    keysDomain.ActionCreate,
			CreatedAt: time.Now().UTC(),
		},
	}

	response := dto.MapAuditRecordsToListResponse(records)
	require.Len(t, response.Data, 2)
	assert.True(t, response.Data[0].Signed)
	assert.Equal(t, "ENCRYPT", response.Data[0].Action)
	assert.False(t, response.Data[1].Signed)
}
