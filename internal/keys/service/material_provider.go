package service

import (
	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
	cryptoService "github.com/allisson/tenantkeys/internal/crypto/service"
	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
)

// WrappedKey is data key material sealed under a KEK.
type WrappedKey struct {
	KekID    uuid.UUID
	Material []byte
	Nonce    []byte
}

// MaterialProvider generates tenant data keys and wraps them under the KEK chain.
// Raw key bytes never leave it except as return values the caller must zero.
type MaterialProvider struct {
	keyManager cryptoService.KeyManager
	kekChain   *cryptoDomain.KekChain
}

// NewMaterialProvider creates a MaterialProvider.
func NewMaterialProvider(keyManager cryptoService.KeyManager, kekChain *cryptoDomain.KekChain) *MaterialProvider {
	return &MaterialProvider{keyManager: keyManager, kekChain: kekChain}
}

// ActiveKekID returns the KEK used when Wrap is called with uuid.Nil.
func (m *MaterialProvider) ActiveKekID() uuid.UUID {
	return m.kekChain.ActiveKekID()
}

// GenerateKey returns fresh random key bytes sized for alg.
func (m *MaterialProvider) GenerateKey(alg cryptoDomain.Algorithm) ([]byte, error) {
	return m.keyManager.GenerateKey(alg)
}

// Wrap seals raw under kekID, or under the active KEK when kekID is uuid.Nil.
func (m *MaterialProvider) Wrap(raw []byte, kekID uuid.UUID) (WrappedKey, error) {
	if kekID == uuid.Nil {
		kekID = m.kekChain.ActiveKekID()
	}

	kek, ok := m.kekChain.Get(kekID)
	if !ok {
		return WrappedKey{}, keysDomain.ErrKeyUnwrap
	}

	material, nonce, err := m.keyManager.WrapKey(kek, raw)
	if err != nil {
		return WrappedKey{}, err
	}

	return WrappedKey{KekID: kek.ID, Material: material, Nonce: nonce}, nil
}

// Unwrap returns the raw data key of key. The caller must zero the result.
func (m *MaterialProvider) Unwrap(key *keysDomain.EncryptionKey) ([]byte, error) {
	if key.Status == keysDomain.StatusDestroyed || len(key.WrappedMaterial) == 0 {
		return nil, keysDomain.ErrKeyDestroyed
	}

	kek, ok := m.kekChain.Get(key.KekID)
	if !ok {
		return nil, keysDomain.ErrKeyUnwrap
	}

	raw, err := m.keyManager.UnwrapKey(kek, key.WrappedMaterial, key.Nonce)
	if err != nil {
		return nil, keysDomain.ErrKeyUnwrap
	}
	return raw, nil
}
