package usecase

import (
	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
)

// SystemPrincipal attributes audit records written by background jobs.
const SystemPrincipal = "system"

type EncryptInput struct {
	SiteID      string
	PrincipalID string
	Purpose     keysDomain.Purpose
	Plaintext   []byte
	Metadata    map[string]string
}

type EncryptOutput struct {
	EncryptedData string
	KeyID         uuid.UUID
	Algorithm     cryptoDomain.Algorithm
	Purpose       keysDomain.Purpose
	Metadata      map[string]string
}

// DecryptInput names the key the caller expects. A zero KeyID accepts the key
// embedded in the blob.
type DecryptInput struct {
	SiteID        string
	PrincipalID   string
	KeyID         uuid.UUID
	EncryptedData string
}

type DecryptOutput struct {
	Plaintext []byte
	KeyID     uuid.UUID
	Purpose   keysDomain.Purpose
	Metadata  map[string]string
}

type RotateInput struct {
	SiteID       string
	PrincipalID  string
	KeyID        uuid.UUID
	Force        bool
	BackupOldKey bool
}

// RotateOutput returns the same id twice when nothing was due.
type RotateOutput struct {
	OldKeyID   uuid.UUID
	NewKeyID   uuid.UUID
	Rotated    bool
	BackupPath string
}

type DestroyInput struct {
	SiteID      string
	PrincipalID string
	KeyID       uuid.UUID
}

// AuditVerification summarizes a signature check over a range of audit records.
type AuditVerification struct {
	Total      int
	Valid      int
	Unsigned   int
	Invalid    int
	InvalidIDs []uuid.UUID
}
