// Package service provides the building blocks used by the key lifecycle:
// wrapping tenant keys under the KEK chain, sealing payloads, serializing
// per-lineage work, signing audit records and backing up retired keys.
package service

import (
	"context"

	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
)

// LineageLocker gives mutual exclusion per (site, purpose). Lock blocks until the
// lineage is free or ctx is done. The returned func releases the lock and is safe
// to call more than once.
type LineageLocker interface {
	Lock(ctx context.Context, lineage keysDomain.Lineage) (unlock func(), err error)
}

// AuditSigner signs and verifies audit records with a key derived from a KEK.
type AuditSigner interface {
	Sign(kekKey []byte, record *keysDomain.AuditRecord) ([]byte, error)
	Verify(kekKey []byte, record *keysDomain.AuditRecord) error
}

// BackupStore keeps snapshots of wrapped key material outside the live lineage.
type BackupStore interface {
	Backup(ctx context.Context, key *keysDomain.EncryptionKey) (string, error)
	Delete(ctx context.Context, path string) error
	Close() error
}
