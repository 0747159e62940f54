package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

// KeySnapshot is the backup document written for a key. It holds only wrapped
// material, so restoring it still requires the KEK chain.
type KeySnapshot struct {
	ID              uuid.UUID              `json:"id"`
	SiteID          string                 `json:"site_id"`
	Purpose         keysDomain.Purpose     `json:"purpose"`
	Algorithm       cryptoDomain.Algorithm `json:"algorithm"`
	KekID           uuid.UUID              `json:"kek_id"`
	WrappedMaterial []byte                 `json:"wrapped_material"`
	Nonce           []byte                 `json:"nonce"`
	Version         uint                   `json:"version"`
	Status          keysDomain.Status      `json:"status"`
	CreatedAt       time.Time              `json:"created_at"`
	BackedUpAt      time.Time              `json:"backed_up_at"`
}

// BlobBackupStore writes key snapshots to a gocloud.dev bucket. It is never touched
// by key destruction; retention is left to the bucket's own lifecycle rules.
type BlobBackupStore struct {
	bucket *blob.Bucket
}

// OpenBlobBackupStore opens the bucket at bucketURL (mem://, file:///path, ...).
func OpenBlobBackupStore(ctx context.Context, bucketURL string) (*BlobBackupStore, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup bucket: %w", err)
	}
	return &BlobBackupStore{bucket: bucket}, nil
}

func snapshotPath(siteID string, purpose keysDomain.Purpose, id uuid.UUID, version uint) string {
	return fmt.Sprintf("backups/%s/%s/%s-v%d.json", url.PathEscape(siteID), purpose, id, version)
}

// Backup writes the snapshot and returns its object path.
func (b *BlobBackupStore) Backup(ctx context.Context, key *keysDomain.EncryptionKey) (string, error) {
	snapshot := KeySnapshot{
		ID:              key.ID,
		SiteID:          key.SiteID,
		Purpose:         key.Purpose,
		Algorithm:       key.Algorithm,
		KekID:           key.KekID,
		WrappedMaterial: key.WrappedMaterial,
		Nonce:           key.Nonce,
		Version:         key.Version,
		Status:          key.Status,
		CreatedAt:       key.CreatedAt,
		BackedUpAt:      time.Now().UTC(),
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to encode key snapshot: %w", err)
	}

	path := snapshotPath(key.SiteID, key.Purpose, key.ID, key.Version)
	if err := b.bucket.WriteAll(ctx, path, data, &blob.WriterOptions{ContentType: "application/json"}); err != nil {
		return "", fmt.Errorf("failed to write key snapshot: %w", err)
	}
	return path, nil
}

// Read loads a snapshot previously written by Backup.
func (b *BlobBackupStore) Read(ctx context.Context, path string) (*KeySnapshot, error) {
	data, err := b.bucket.ReadAll(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key snapshot: %w", err)
	}

	var snapshot KeySnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode key snapshot: %w", err)
	}
	return &snapshot, nil
}

// Delete removes a snapshot. A missing object is not an error.
func (b *BlobBackupStore) Delete(ctx context.Context, path string) error {
	if err := b.bucket.Delete(ctx, path); err != nil && gcerrors.Code(err) != gcerrors.NotFound {
		return fmt.Errorf("failed to delete key snapshot: %w", err)
	}
	return nil
}

// Close closes the underlying bucket.
func (b *BlobBackupStore) Close() error {
	return b.bucket.Close()
}
