package service

import (
	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
	cryptoService "github.com/allisson/tenantkeys/internal/crypto/service"
	"github.com/allisson/tenantkeys/internal/errors"
	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
)

// CipherEngine seals and opens tenant payloads with a resolved data key.
type CipherEngine struct {
	aeadManager cryptoService.AEADManager
}

// NewCipherEngine creates a CipherEngine.
func NewCipherEngine(aeadManager cryptoService.AEADManager) *CipherEngine {
	return &CipherEngine{aeadManager: aeadManager}
}

// Encrypt seals plaintext. A fresh random nonce is drawn on every call.
func (c *CipherEngine) Encrypt(
	raw []byte,
	alg cryptoDomain.Algorithm,
	plaintext, aad []byte,
) (nonce, ciphertext []byte, err error) {
	aead, err := c.aeadManager.CreateCipher(raw, alg)
	if err != nil {
		return nil, nil, err
	}

	ciphertext, nonce, err = aead.Encrypt(plaintext, aad)
	if err != nil {
		return nil, nil, err
	}
	return nonce, ciphertext, nil
}

// Decrypt opens ciphertext. A tag mismatch returns ErrAuthenticationFailed and no plaintext.
func (c *CipherEngine) Decrypt(
	raw []byte,
	alg cryptoDomain.Algorithm,
	nonce, ciphertext, aad []byte,
) ([]byte, error) {
	aead, err := c.aeadManager.CreateCipher(raw, alg)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Decrypt(ciphertext, nonce, aad)
	if err != nil {
		if errors.Is(err, cryptoDomain.ErrDecryptionFailed) {
			return nil, keysDomain.ErrAuthenticationFailed
		}
		return nil, err
	}
	return plaintext, nil
}
