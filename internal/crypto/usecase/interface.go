// Package usecase manages the KEK lifecycle: creation, rotation and loading the
// decrypted KEK chain at startup.
package usecase

import (
	"context"

	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
)

// KekRepository persists KEKs.
type KekRepository interface {
	Create(ctx context.Context, kek *cryptoDomain.Kek) error
	Update(ctx context.Context, kek *cryptoDomain.Kek) error
	// List returns every KEK ordered by version descending.
	List(ctx context.Context) ([]*cryptoDomain.Kek, error)
}

// KekUseCase defines KEK operations.
type KekUseCase interface {
	// Create stores the first KEK, encrypted with the active master key.
	Create(ctx context.Context, masterKeyChain *cryptoDomain.MasterKeyChain, alg cryptoDomain.Algorithm) error

	// Rotate adds a new KEK with version+1. Older KEKs stay loadable.
	Rotate(ctx context.Context, masterKeyChain *cryptoDomain.MasterKeyChain, alg cryptoDomain.Algorithm) error

	// RewrapWithActiveMasterKey re-encrypts every KEK under the active master key.
	RewrapWithActiveMasterKey(ctx context.Context, masterKeyChain *cryptoDomain.MasterKeyChain) (int, error)

	// Unwrap loads and decrypts all KEKs into a chain.
	Unwrap(ctx context.Context, masterKeyChain *cryptoDomain.MasterKeyChain) (*cryptoDomain.KekChain, error)
}
