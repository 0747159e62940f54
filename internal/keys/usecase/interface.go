// Package usecase orchestrates the tenant key lifecycle: lazy creation of the
// ACTIVE key per (site, purpose), encrypt and decrypt through self-describing
// blobs, rotation, destruction, and the read-only metrics and audit views.
//
// Every state change runs inside a database.TxManager transaction under the
// lineage lock, and writes a signed audit record in the same transaction.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
)

// KeyRepository persists encryption keys.
type KeyRepository interface {
	Create(ctx context.Context, key *keysDomain.EncryptionKey) error
	Update(ctx context.Context, key *keysDomain.EncryptionKey) error
	Get(ctx context.Context, id uuid.UUID) (*keysDomain.EncryptionKey, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*keysDomain.EncryptionKey, error)
	GetActive(ctx context.Context, siteID string, purpose keysDomain.Purpose) (*keysDomain.EncryptionKey, error)
	MaxVersion(ctx context.Context, siteID string, purpose keysDomain.Purpose) (uint, error)
	ListBySite(ctx context.Context, siteID string) ([]*keysDomain.EncryptionKey, error)
	// ListActive returns ACTIVE keys of siteID, or of every site when siteID is empty.
	ListActive(ctx context.Context, siteID string) ([]*keysDomain.EncryptionKey, error)
	ListForRewrap(ctx context.Context, kekID uuid.UUID, limit int) ([]*keysDomain.EncryptionKey, error)
}

// AuditRepository persists the audit trail.
type AuditRepository interface {
	Create(ctx context.Context, record *keysDomain.AuditRecord) error
	List(ctx context.Context, filter keysDomain.AuditFilter) ([]*keysDomain.AuditRecord, error)
	CountBySiteSince(ctx context.Context, siteID string, since time.Time) ([]keysDomain.OperationCount, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time, dryRun bool) (int64, error)
}

// LifecycleUseCase issues, uses, rotates and retires tenant keys.
type LifecycleUseCase interface {
	// ResolveActiveKey returns the ACTIVE key of the lineage, creating version 1
	// (or max+1) when there is none. Concurrent callers observe a single key.
	ResolveActiveKey(ctx context.Context, siteID string, purpose keysDomain.Purpose) (*keysDomain.EncryptionKey, error)

	Encrypt(ctx context.Context, input EncryptInput) (*EncryptOutput, error)

	// Decrypt opens a blob with the exact key it names. Any non-destroyed status decrypts.
	//
	// Callers must zero DecryptOutput.Plaintext after use.
	Decrypt(ctx context.Context, input DecryptInput) (*DecryptOutput, error)

	Rotate(ctx context.Context, input RotateInput) (*RotateOutput, error)

	// ProcessAutomaticRotations rotates every due ACTIVE key of siteID (every site
	// when empty). A failing key is reported and never aborts the run.
	ProcessAutomaticRotations(ctx context.Context, siteID string) (*keysDomain.RotationReport, error)

	Destroy(ctx context.Context, input DestroyInput) (*keysDomain.EncryptionKey, error)
	ListKeys(ctx context.Context, siteID string) ([]*keysDomain.EncryptionKey, error)

	// RewrapKeys re-wraps key material still under an older KEK with the active
	// KEK, batchSize keys per transaction. Returns how many keys changed.
	RewrapKeys(ctx context.Context, batchSize int) (int, error)
}

// InsightsUseCase is the read side: metrics and audit trail.
type InsightsUseCase interface {
	GetEncryptionMetrics(ctx context.Context, siteID string, days int) (*keysDomain.EncryptionMetrics, error)
	ListAuditRecords(ctx context.Context, filter keysDomain.AuditFilter) ([]*keysDomain.AuditRecord, error)
	VerifyAuditRecords(ctx context.Context, from, to *time.Time) (*AuditVerification, error)
	CleanAuditRecords(ctx context.Context, days int, dryRun bool) (int64, error)
}
