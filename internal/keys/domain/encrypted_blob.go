package domain

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
)

// blobPrefix versions the serialized format.
const blobPrefix = "ek1:"

// EncryptedBlob is the self-describing result of an encrypt call. It carries the
// exact key id and algorithm, so decryption never depends on the current ACTIVE key.
type EncryptedBlob struct {
	KeyID      uuid.UUID
	Algorithm  cryptoDomain.Algorithm
	Purpose    Purpose
	Nonce      []byte
	Ciphertext []byte // includes the authentication tag
	Metadata   map[string]string
}

type blobEnvelope struct {
	KeyID      uuid.UUID              `json:"kid"`
	Algorithm  cryptoDomain.Algorithm `json:"alg"`
	Purpose    Purpose                `json:"pur"`
	Nonce      []byte                 `json:"n"`
	Ciphertext []byte                 `json:"ct"`
	Metadata   map[string]string      `json:"md,omitempty"`
}

// String serializes the blob as "ek1:" followed by base64url JSON.
func (b EncryptedBlob) String() string {
	raw, _ := json.Marshal(blobEnvelope(b))
	return blobPrefix + base64.RawURLEncoding.EncodeToString(raw)
}

// ParseEncryptedBlob is the inverse of String.
func ParseEncryptedBlob(content string) (EncryptedBlob, error) {
	encoded, ok := strings.CutPrefix(content, blobPrefix)
	if !ok {
		return EncryptedBlob{}, fmt.Errorf("%w: unknown prefix", ErrInvalidBlobFormat)
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return EncryptedBlob{}, fmt.Errorf("%w: invalid encoding", ErrInvalidBlobFormat)
	}

	var env blobEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return EncryptedBlob{}, fmt.Errorf("%w: invalid envelope", ErrInvalidBlobFormat)
	}

	blob := EncryptedBlob(env)
	if blob.KeyID == uuid.Nil || len(blob.Nonce) == 0 || len(blob.Ciphertext) == 0 {
		return EncryptedBlob{}, fmt.Errorf("%w: missing fields", ErrInvalidBlobFormat)
	}
	if _, err := cryptoDomain.ParseAlgorithm(string(blob.Algorithm)); err != nil {
		return EncryptedBlob{}, fmt.Errorf("%w: unknown algorithm", ErrInvalidBlobFormat)
	}
	if !blob.Purpose.Valid() {
		return EncryptedBlob{}, fmt.Errorf("%w: unknown purpose", ErrInvalidBlobFormat)
	}

	return blob, nil
}

// AssociatedData binds a ciphertext to its tenant, purpose, key and metadata.
// Every field is length-prefixed and metadata keys are sorted.
func AssociatedData(siteID string, purpose Purpose, keyID uuid.UUID, metadata map[string]string) []byte {
	buf := make([]byte, 0, 128)
	buf = appendField(buf, []byte("tenantkeys-aad-v1"))
	buf = appendField(buf, []byte(siteID))
	buf = appendField(buf, []byte(purpose))
	buf = appendField(buf, keyID[:])

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(keys)))
	for _, k := range keys {
		buf = appendField(buf, []byte(k))
		buf = appendField(buf, []byte(metadata[k]))
	}
	return buf
}

func appendField(buf, field []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(field)))
	return append(buf, field...)
}
