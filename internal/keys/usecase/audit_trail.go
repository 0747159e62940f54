package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
	apperrors "github.com/allisson/tenantkeys/internal/errors"
	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
	keysService "github.com/allisson/tenantkeys/internal/keys/service"
)

// auditTrail writes audit records signed with the active KEK.
type auditTrail struct {
	repo     AuditRepository
	signer   keysService.AuditSigner
	kekChain *cryptoDomain.KekChain
}

func (a *auditTrail) append(
	ctx context.Context,
	key *keysDomain.EncryptionKey,
	principalID string,
	action keysDomain.Action,
	metadata map[string]string,
	at time.Time,
) error {
	record := &keysDomain.AuditRecord{
		ID:          uuid.Must(uuid.NewV7()),
		SiteID:      key.SiteID,
		PrincipalID: principalID,
		Purpose:     key.Purpose,
		KeyID:       key.ID,
		Action:      action,
		Metadata:    metadata,
		CreatedAt:   at,
	}

	// Without an active KEK the record is stored unsigned and reported as such
	// by verification.
	if kek, err := a.kekChain.Active(); err == nil {
		signature, err := a.signer.Sign(kek.Key, record)
		if err != nil {
			return apperrors.Wrap(err, "failed to sign audit record")
		}
		kekID := kek.ID
		record.KekID = &kekID
		record.Signature = signature
	}

	return a.repo.Create(ctx, record)
}

// withAuditFields copies metadata and adds the key/value pairs in kv.
func withAuditFields(metadata map[string]string, kv ...string) map[string]string {
	out := make(map[string]string, len(metadata)+len(kv)/2)
	for k, v := range metadata {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}
