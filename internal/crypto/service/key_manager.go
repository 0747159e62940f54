package service

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
)

// KeyManagerService implements KeyManager on top of an AEADManager.
type KeyManagerService struct {
	aeadManager AEADManager
}

// NewKeyManager creates a KeyManagerService.
func NewKeyManager(aeadManager AEADManager) *KeyManagerService {
	return &KeyManagerService{
		aeadManager: aeadManager,
	}
}

// CreateKek generates a version 1 KEK sealed by masterKey. The caller sets the version
// when rotating.
func (km *KeyManagerService) CreateKek(
	masterKey *cryptoDomain.MasterKey,
	alg cryptoDomain.Algorithm,
) (cryptoDomain.Kek, error) {
	kekKey, err := km.GenerateKey(alg)
	if err != nil {
		return cryptoDomain.Kek{}, err
	}

	kek := cryptoDomain.Kek{
		ID:        uuid.Must(uuid.NewV7()),
		Algorithm: alg,
		Key:       kekKey,
		Version:   1,
		CreatedAt: time.Now().UTC(),
	}
	if err := km.SealKek(&kek, masterKey); err != nil {
		cryptoDomain.Zero(kekKey)
		return cryptoDomain.Kek{}, err
	}

	return kek, nil
}

// SealKek encrypts kek.Key with masterKey and records which master key was used.
func (km *KeyManagerService) SealKek(kek *cryptoDomain.Kek, masterKey *cryptoDomain.MasterKey) error {
	aead, err := km.aeadManager.CreateCipher(masterKey.Key, kek.Algorithm)
	if err != nil {
		return err
	}

	encryptedKey, nonce, err := aead.Encrypt(kek.Key, nil)
	if err != nil {
		return fmt.Errorf("failed to encrypt kek: %w", err)
	}

	kek.MasterKeyID = masterKey.ID
	kek.EncryptedKey = encryptedKey
	kek.Nonce = nonce
	return nil
}

// DecryptKek opens kek.EncryptedKey with masterKey.
func (km *KeyManagerService) DecryptKek(
	kek *cryptoDomain.Kek,
	masterKey *cryptoDomain.MasterKey,
) ([]byte, error) {
	aead, err := km.aeadManager.CreateCipher(masterKey.Key, kek.Algorithm)
	if err != nil {
		return nil, err
	}

	return aead.Decrypt(kek.EncryptedKey, kek.Nonce, nil)
}

// GenerateKey returns KeySize random bytes from crypto/rand.
func (km *KeyManagerService) GenerateKey(alg cryptoDomain.Algorithm) ([]byte, error) {
	if _, err := cryptoDomain.ParseAlgorithm(string(alg)); err != nil {
		return nil, err
	}

	key := make([]byte, cryptoDomain.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// WrapKey seals raw under the KEK. The KEK id is bound as associated data so
// wrapped material cannot be replayed under another KEK.
func (km *KeyManagerService) WrapKey(kek *cryptoDomain.Kek, raw []byte) ([]byte, []byte, error) {
	aead, err := km.aeadManager.CreateCipher(kek.Key, kek.Algorithm)
	if err != nil {
		return nil, nil, err
	}

	wrapped, nonce, err := aead.Encrypt(raw, kek.ID[:])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to wrap key: %w", err)
	}
	return wrapped, nonce, nil
}

// UnwrapKey opens material sealed by WrapKey.
func (km *KeyManagerService) UnwrapKey(kek *cryptoDomain.Kek, wrapped, nonce []byte) ([]byte, error) {
	aead, err := km.aeadManager.CreateCipher(kek.Key, kek.Algorithm)
	if err != nil {
		return nil, err
	}

	return aead.Decrypt(wrapped, nonce, kek.ID[:])
}
