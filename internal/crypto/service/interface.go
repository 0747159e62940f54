// Package service provides the cryptographic primitives behind the key hierarchy:
// AEAD ciphers, KEK creation and key wrapping, and KMS keeper access.
package service

import (
	"context"

	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
)

// AEAD seals and opens data with a single key. Every Encrypt call draws a fresh
// random nonce.
type AEAD interface {
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}

// AEADManager builds AEAD instances for a key and algorithm.
type AEADManager interface {
	CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error)
}

// KeyManager creates KEKs and wraps lower-level keys under them.
type KeyManager interface {
	// CreateKek generates a KEK and encrypts it under the master key.
	CreateKek(masterKey *cryptoDomain.MasterKey, alg cryptoDomain.Algorithm) (cryptoDomain.Kek, error)

	// SealKek encrypts kek.Key under masterKey, replacing the stored envelope.
	SealKek(kek *cryptoDomain.Kek, masterKey *cryptoDomain.MasterKey) error

	// DecryptKek returns the plaintext KEK. Callers must zero it when done.
	DecryptKek(kek *cryptoDomain.Kek, masterKey *cryptoDomain.MasterKey) ([]byte, error)

	// GenerateKey returns fresh random key material sized for alg.
	GenerateKey(alg cryptoDomain.Algorithm) ([]byte, error)

	// WrapKey seals raw key material under the KEK.
	WrapKey(kek *cryptoDomain.Kek, raw []byte) (wrapped, nonce []byte, err error)

	// UnwrapKey opens key material sealed by WrapKey.
	UnwrapKey(kek *cryptoDomain.Kek, wrapped, nonce []byte) ([]byte, error)
}

// KMSService opens KMS keepers by URI.
type KMSService interface {
	OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error)
}
