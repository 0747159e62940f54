// Package validation provides custom validation rules for the application.
package validation

import (
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/tenantkeys/internal/errors"
	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
)

const (
	maxSiteIDLength      = 255
	maxPrincipalIDLength = 255
	maxMetadataEntries   = 32
	maxMetadataKeyLength = 64
	maxMetadataValueSize = 1024
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// Base64 validates standard base64-encoded data. Empty strings are left to Required.
var Base64 = validation.NewStringRuleWithError(
	func(s string) bool {
		_, err := base64.StdEncoding.DecodeString(s)
		return err == nil
	},
	validation.NewError("validation_base64", "must be valid base64-encoded data"),
)

// Purpose validates that a string names a known key purpose.
var Purpose = validation.NewStringRuleWithError(
	func(s string) bool {
		return keysDomain.Purpose(s).Valid()
	},
	validation.NewError("validation_purpose", "must be one of USER_DATA, SYSTEM_CONFIG, PAYMENT_INFO, PERSONAL_INFO, FILE_STORAGE"),
)

// UUID validates that a string is a canonical UUID.
var UUID = validation.NewStringRuleWithError(
	func(s string) bool {
		_, err := uuid.Parse(s)
		return err == nil
	},
	validation.NewError("validation_uuid", "must be a valid UUID"),
)

// SiteID validates a tenant identifier.
var SiteID = []validation.Rule{
	validation.Required,
	NotBlank,
	NoWhitespace,
	validation.Length(1, maxSiteIDLength),
}

// PrincipalID validates the authenticated caller recorded in audit records.
var PrincipalID = []validation.Rule{
	validation.Required,
	NotBlank,
	validation.Length(1, maxPrincipalIDLength),
}

// Metadata bounds the caller-supplied metadata bound into the ciphertext.
var Metadata = validation.By(func(value interface{}) error {
	metadata, ok := value.(map[string]string)
	if !ok {
		return validation.NewError("validation_metadata_type", "must be an object of strings")
	}
	if len(metadata) > maxMetadataEntries {
		return validation.NewError("validation_metadata_entries", "must not have more than 32 entries")
	}
	for k, v := range metadata {
		if k == "" || len(k) > maxMetadataKeyLength {
			return validation.NewError("validation_metadata_key", "keys must be between 1 and 64 characters")
		}
		if len(v) > maxMetadataValueSize {
			return validation.NewError("validation_metadata_value", "values must not exceed 1024 bytes")
		}
	}
	return nil
})
