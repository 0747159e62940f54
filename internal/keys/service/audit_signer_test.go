package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
)

func newTestAuditRecord() *keysDomain.AuditRecord {
	return &keysDomain.AuditRecord{
		ID:          uuid.Must(uuid.NewV7()),
		SiteID:      "site-1",
		PrincipalID: "user-42",
		Purpose:     keysDomain.PurposePaymentInfo,
		KeyID:       uuid.Must(uuid.NewV7()),
		Action:      keysDomain.ActionEncrypt,
		Metadata:    map[string]string{"b": "2", "a": "1"},
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestAuditSigner_SignVerify(t *testing.T) {
	signer := NewAuditSigner()
	kekKey := randomBytes(t, 32)
	record := newTestAuditRecord()

	signature, err := signer.Sign(kekKey, record)
	require.NoError(t, err)
	assert.Len(t, signature, 32)

	record.Signature = signature
	assert.NoError(t, signer.Verify(kekKey, record))

	t.Run("Deterministic", func(t *testing.T) {
		again, err := signer.Sign(kekKey, record)
		require.NoError(t, err)
		assert.Equal(t, signature, again)
	})

	t.Run("WrongKey", func(t *testing.T) {
		assert.ErrorIs(t, signer.Verify(randomBytes(t, 32), record), ErrSignatureInvalid)
	})
}

func TestAuditSigner_DetectsTampering(t *testing.T) {
	signer := NewAuditSigner()
	kekKey := randomBytes(t, 32)

	tests := []struct {
		name   string
		mutate func(r *keysDomain.AuditRecord)
	}{
		{"SiteID", func(r *keysDomain.AuditRecord) { r.SiteID = "site-2" }},
		{"PrincipalID", func(r *keysDomain.AuditRecord) { r.PrincipalID = "" }},
		{"Action", func(r *keysDomain.AuditRecord) { r.Action = keysDomain.ActionDecrypt }},
		{"KeyID", func(r *keysDomain.AuditRecord) { r.KeyID = uuid.Must(uuid.NewV7()) }},
		{"Metadata", func(r *keysDomain.AuditRecord) { r.Metadata["a"] = "changed" }},
		{"CreatedAt", func(r *keysDomain.AuditRecord) { r.CreatedAt = r.CreatedAt.Add(time.Second) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := newTestAuditRecord()
			signature, err := signer.Sign(kekKey, record)
			require.NoError(t, err)
			record.Signature = signature

			tt.mutate(record)
			assert.ErrorIs(t, signer.Verify(kekKey, record), ErrSignatureInvalid)
		})
	}
}

func TestCanonicalize_FieldBoundaries(t *testing.T) {
	a := newTestAuditRecord()
	b := *a
	a.SiteID, a.PrincipalID = "ab", "c"
	b.SiteID, b.PrincipalID = "a", "bc"

	assert.NotEqual(t, canonicalize(a), canonicalize(&b))
}
