package domain

import (
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
)

// EncryptionKey is one version in a (site, purpose) lineage. The data key is only
// stored wrapped under a KEK; WrappedMaterial and Nonce are nil once destroyed.
type EncryptionKey struct {
	ID              uuid.UUID
	SiteID          string
	Purpose         Purpose
	Algorithm       cryptoDomain.Algorithm
	KekID           uuid.UUID
	WrappedMaterial []byte
	Nonce           []byte
	Status          Status
	Version         uint
	RotationPolicy  time.Duration
	CreatedAt       time.Time
	RotatedAt       *time.Time
	RetiredAt       *time.Time
	DestroyedAt     *time.Time
}

// Lineage returns the (site, purpose) pair the key belongs to.
func (k *EncryptionKey) Lineage() Lineage {
	return Lineage{SiteID: k.SiteID, Purpose: k.Purpose}
}

// RotationDueAt is the instant the key reaches its maximum age.
func (k *EncryptionKey) RotationDueAt() time.Time {
	return k.CreatedAt.Add(k.RotationPolicy)
}

// IsRotationDue reports whether an ACTIVE key has reached its rotation policy age at now.
func (k *EncryptionKey) IsRotationDue(now time.Time) bool {
	if k.Status != StatusActive || k.RotationPolicy <= 0 {
		return false
	}
	return !now.Before(k.RotationDueAt())
}

// Apply moves the key through event, stamping the matching timestamp. Destroying
// erases the wrapped material.
func (k *EncryptionKey) Apply(event Event, at time.Time) error {
	next, err := Transition(k.Status, event)
	if err != nil {
		return err
	}

	switch event {
	case EventBeginRotation:
		k.RotatedAt = &at
	case EventCompleteRotation:
		k.RetiredAt = &at
	case EventDestroy:
		cryptoDomain.Zero(k.WrappedMaterial)
		k.WrappedMaterial = nil
		k.Nonce = nil
		k.DestroyedAt = &at
	}
	k.Status = next
	return nil
}
