package domain

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
)

// MasterKey is the root of the key hierarchy. It encrypts KEKs.
type MasterKey struct {
	ID  string
	Key []byte
}

// KMSKeeper seals and opens master keys. *secrets.Keeper from gocloud.dev satisfies it.
type KMSKeeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// MasterKeyChain holds every configured master key. Old keys stay loaded so KEKs
// created before a master key rotation can still be decrypted.
type MasterKeyChain struct {
	activeID string
	keys     sync.Map
}

// NewMasterKeyChain builds a chain from already decoded keys.
func NewMasterKeyChain(activeID string, keys ...*MasterKey) *MasterKeyChain {
	mkc := &MasterKeyChain{activeID: activeID}
	for _, key := range keys {
		mkc.keys.Store(key.ID, key)
	}
	return mkc
}

// ActiveMasterKeyID returns the id of the master key used for new KEKs.
func (m *MasterKeyChain) ActiveMasterKeyID() string {
	return m.activeID
}

// Get retrieves a master key by id.
func (m *MasterKeyChain) Get(id string) (*MasterKey, bool) {
	if masterKey, ok := m.keys.Load(id); ok {
		return masterKey.(*MasterKey), ok
	}

	return nil, false
}

// Close zeroes every master key and empties the chain.
func (m *MasterKeyChain) Close() {
	m.keys.Range(func(_, value any) bool {
		if mk, ok := value.(*MasterKey); ok {
			Zero(mk.Key)
		}
		return true
	})
	m.activeID = ""
	m.keys.Clear()
}

// LoadMasterKeyChain parses a MASTER_KEYS value. When keeper is not nil every
// value is treated as KMS ciphertext and decrypted before use.
func LoadMasterKeyChain(
	ctx context.Context,
	raw string,
	active string,
	keeper KMSKeeper,
) (*MasterKeyChain, error) {
	if raw == "" {
		return nil, ErrMasterKeysNotSet
	}
	if active == "" {
		return nil, ErrActiveMasterKeyIDNotSet
	}

	mkc := &MasterKeyChain{activeID: active}

	for part := range strings.SplitSeq(raw, ",") {
		p := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(p) != 2 || p[0] == "" {
			mkc.Close()
			return nil, fmt.Errorf("%w: %q", ErrInvalidMasterKeysFormat, part)
		}
		id := p[0]

		key, err := base64.StdEncoding.DecodeString(p[1])
		if err != nil {
			mkc.Close()
			return nil, fmt.Errorf("%w for %s", ErrInvalidMasterKeyBase64, id)
		}

		if keeper != nil {
			sealed := key
			key, err = keeper.Decrypt(ctx, sealed)
			if err != nil {
				mkc.Close()
				return nil, fmt.Errorf("failed to decrypt master key %s with kms: %w", id, err)
			}
		}

		if len(key) != KeySize {
			Zero(key)
			mkc.Close()
			return nil, fmt.Errorf(
				"%w: master key %s must be %d bytes, got %d",
				ErrInvalidKeySize,
				id,
				KeySize,
				len(key),
			)
		}
		mkc.keys.Store(id, &MasterKey{ID: id, Key: key})
	}

	if _, ok := mkc.Get(active); !ok {
		mkc.Close()
		return nil, fmt.Errorf("%w: ACTIVE_MASTER_KEY_ID=%s", ErrActiveMasterKeyNotFound, active)
	}

	return mkc, nil
}
