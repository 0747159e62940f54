package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"slices"

	"golang.org/x/crypto/hkdf"

	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
	"github.com/allisson/tenantkeys/internal/errors"
	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
)

// ErrSignatureInvalid indicates an audit record does not match its signature.
var ErrSignatureInvalid = errors.Wrap(errors.ErrConflict, "audit record signature invalid")

const auditSigningInfo = "key-audit-signing-v1"

type auditSigner struct{}

// NewAuditSigner returns an HMAC-SHA256 AuditSigner. The HMAC key is derived from
// the KEK with HKDF-SHA256 so the KEK itself is never used as a MAC key.
func NewAuditSigner() AuditSigner {
	return &auditSigner{}
}

func (a *auditSigner) deriveSigningKey(kekKey []byte) ([]byte, error) {
	reader := hkdf.New(sha256.New, kekKey, nil, []byte(auditSigningInfo))

	signingKey := make([]byte, 32)
	if _, err := io.ReadFull(reader, signingKey); err != nil {
		return nil, err
	}
	return signingKey, nil
}

// canonicalize encodes every signed field length-prefixed, metadata sorted by key.
func canonicalize(record *keysDomain.AuditRecord) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, record.ID[:]...)
	buf = appendLengthPrefixed(buf, []byte(record.SiteID))
	buf = appendLengthPrefixed(buf, []byte(record.PrincipalID))
	buf = appendLengthPrefixed(buf, []byte(record.Purpose))
	buf = append(buf, record.KeyID[:]...)
	buf = appendLengthPrefixed(buf, []byte(record.Action))

	keys := make([]string, 0, len(record.Metadata))
	for k := range record.Metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(keys)))
	for _, k := range keys {
		buf = appendLengthPrefixed(buf, []byte(k))
		buf = appendLengthPrefixed(buf, []byte(record.Metadata[k]))
	}

	return binary.BigEndian.AppendUint64(buf, uint64(record.CreatedAt.UnixMicro()))
}

func appendLengthPrefixed(buf []byte, data []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}

func (a *auditSigner) Sign(kekKey []byte, record *keysDomain.AuditRecord) ([]byte, error) {
	signingKey, err := a.deriveSigningKey(kekKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}
	defer cryptoDomain.Zero(signingKey)

	mac := hmac.New(sha256.New, signingKey)
	mac.Write(canonicalize(record))
	return mac.Sum(nil), nil
}

func (a *auditSigner) Verify(kekKey []byte, record *keysDomain.AuditRecord) error {
	expected, err := a.Sign(kekKey, record)
	if err != nil {
		return err
	}

	if !hmac.Equal(record.Signature, expected) {
		return ErrSignatureInvalid
	}
	return nil
}
