package domain

import (
	"github.com/allisson/tenantkeys/internal/errors"
)

// Cryptographic errors. Causes are never detailed further so callers cannot
// learn anything about key material from the message.
var (
	// ErrUnsupportedAlgorithm indicates the requested AEAD is unknown.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates a key is not exactly KeySize bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrDecryptionFailed indicates an AEAD open failed (wrong key, tampering or corruption).
	ErrDecryptionFailed = errors.Wrap(errors.ErrInvalidInput, "decryption failed")

	// ErrKekNotFound indicates no KEK with the given id is loaded in the chain.
	ErrKekNotFound = errors.Wrap(errors.ErrNotFound, "kek not found")

	// ErrKekAlreadyExists indicates create-kek ran on a database that already has KEKs.
	ErrKekAlreadyExists = errors.Wrap(errors.ErrConflict, "kek already exists, rotate it instead")

	// ErrNoActiveKek indicates the KEK chain is empty.
	ErrNoActiveKek = errors.Wrap(errors.ErrNotFound, "no active kek")

	// ErrMasterKeyNotFound indicates a KEK references a master key missing from the chain.
	ErrMasterKeyNotFound = errors.Wrap(errors.ErrNotFound, "master key not found")

	// ErrMasterKeysNotSet indicates MASTER_KEYS is empty.
	ErrMasterKeysNotSet = errors.Wrap(errors.ErrInvalidInput, "MASTER_KEYS not set")

	// ErrActiveMasterKeyIDNotSet indicates ACTIVE_MASTER_KEY_ID is empty.
	ErrActiveMasterKeyIDNotSet = errors.Wrap(errors.ErrInvalidInput, "ACTIVE_MASTER_KEY_ID not set")

	// ErrInvalidMasterKeysFormat indicates a MASTER_KEYS entry is not "id:value".
	ErrInvalidMasterKeysFormat = errors.Wrap(errors.ErrInvalidInput, "invalid MASTER_KEYS format")

	// ErrInvalidMasterKeyBase64 indicates a master key value is not valid base64.
	ErrInvalidMasterKeyBase64 = errors.Wrap(errors.ErrInvalidInput, "invalid master key base64")

	// ErrActiveMasterKeyNotFound indicates ACTIVE_MASTER_KEY_ID is not among MASTER_KEYS.
	ErrActiveMasterKeyNotFound = errors.Wrap(errors.ErrInvalidInput, "active master key not found")
)
