// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
	customValidation "github.com/allisson/tenantkeys/internal/validation"
)

// EncryptRequest contains the parameters for encrypting tenant data.
// Data is the base64-encoded plaintext.
type EncryptRequest struct {
	Data     string            `json:"data"`
	Purpose  string            `json:"purpose"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate checks if the encrypt request is valid.
func (r *EncryptRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Data, validation.Required, customValidation.Base64),
		validation.Field(&r.Purpose, validation.Required, customValidation.Purpose),
		validation.Field(&r.Metadata, customValidation.Metadata),
	)
}

// Plaintext decodes Data. Call Validate first.
func (r *EncryptRequest) Plaintext() ([]byte, error) {
	plaintext, err := base64.StdEncoding.DecodeString(r.Data)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 data: %w", err)
	}
	return plaintext, nil
}

// DecryptRequest contains the parameters for decrypting tenant data.
// KeyID must match the key embedded in EncryptedData.
type DecryptRequest struct {
	EncryptedData string `json:"encrypted_data"`
	KeyID         string `json:"key_id"`
}

// Validate checks if the decrypt request is valid.
func (r *DecryptRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.EncryptedData, validation.Required, customValidation.NotBlank),
		validation.Field(&r.KeyID, validation.Required, customValidation.UUID),
	)
}

// ParsedKeyID returns KeyID as a UUID. Call Validate first.
func (r *DecryptRequest) ParsedKeyID() uuid.UUID {
	return uuid.MustParse(r.KeyID)
}

// RotateKeyRequest contains the options for rotating a key. An empty body is valid.
type RotateKeyRequest struct {
	Force        bool `json:"force"`
	BackupOldKey bool `json:"backup_old_key"`
}

// AuditLogQuery holds the audit log filters read from the query string.
type AuditLogQuery struct {
	From *time.Time
	To   *time.Time
}

// ParseAuditLogQuery parses the optional RFC 3339 from/to query values.
func ParseAuditLogQuery(from, to string) (AuditLogQuery, error) {
	var q AuditLogQuery

	if from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return q, fmt.Errorf("invalid from parameter: must be an RFC 3339 timestamp")
		}
		q.From = &t
	}
	if to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return q, fmt.Errorf("invalid to parameter: must be an RFC 3339 timestamp")
		}
		q.To = &t
	}
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return q, fmt.Errorf("invalid time range: to must not be before from")
	}
	return q, nil
}

// ParseMetricsDays parses the days query value, defaulting to 30.
func ParseMetricsDays(value string) (int, error) {
	if value == "" {
		return 30, nil
	}
	days, err := strconv.Atoi(value)
	if err != nil {
		return 0, keysDomain.ErrInvalidWindow
	}
	return days, nil
}
