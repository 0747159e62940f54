// Package domain defines the system-level key hierarchy used to protect tenant keys.
//
// Master keys (from the environment, optionally sealed by a KMS) encrypt KEKs,
// and KEKs wrap the per-tenant data keys stored by the keys module. Rotating a
// KEK therefore never requires touching tenant ciphertext.
package domain

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kek represents a Key Encryption Key. It is stored encrypted under a master key.
type Kek struct {
	ID           uuid.UUID // UUIDv7
	MasterKeyID  string    // master key used to encrypt this KEK
	Algorithm    Algorithm // AEAD used with the master key and for wrapping
	EncryptedKey []byte
	Key          []byte // plaintext, populated after decryption and never persisted
	Nonce        []byte
	Version      uint
	CreatedAt    time.Time
}

// KekChain holds the decrypted KEKs. The highest version is active.
type KekChain struct {
	activeID uuid.UUID
	keys     sync.Map
}

// ActiveKekID returns the id of the KEK used for new wraps.
func (k *KekChain) ActiveKekID() uuid.UUID {
	return k.activeID
}

// Get retrieves a KEK by id.
func (k *KekChain) Get(id uuid.UUID) (*Kek, bool) {
	if kek, ok := k.keys.Load(id); ok {
		return kek.(*Kek), ok
	}

	return nil, false
}

// Active returns the active KEK.
func (k *KekChain) Active() (*Kek, error) {
	if k.activeID == uuid.Nil {
		return nil, ErrNoActiveKek
	}
	kek, ok := k.Get(k.activeID)
	if !ok {
		return nil, ErrNoActiveKek
	}
	return kek, nil
}

// Close zeroes every KEK and empties the chain.
func (k *KekChain) Close() {
	k.keys.Range(func(_, value any) bool {
		if kek, ok := value.(*Kek); ok {
			Zero(kek.Key)
		}
		return true
	})
	k.activeID = uuid.Nil
	k.keys.Clear()
}

// NewKekChain builds a chain from KEKs ordered by version descending.
func NewKekChain(keks []*Kek) *KekChain {
	kc := &KekChain{}
	if len(keks) == 0 {
		return kc
	}

	kc.activeID = keks[0].ID
	for _, kek := range keks {
		kc.keys.Store(kek.ID, kek)
	}

	return kc
}
