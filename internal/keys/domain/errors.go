// Package domain defines the tenant encryption key model: purposes, the key state
// machine, encrypted blobs, audit records and the errors returned by the lifecycle.
package domain

import (
	"github.com/allisson/tenantkeys/internal/errors"
)

// Key lifecycle errors. Messages never carry key material or cipher details.
var (
	// ErrInvalidPurpose indicates the purpose is not one of the known values.
	ErrInvalidPurpose = errors.Wrap(errors.ErrInvalidInput, "invalid key purpose")

	// ErrInvalidBlobFormat indicates the encrypted data cannot be parsed.
	ErrInvalidBlobFormat = errors.Wrap(errors.ErrInvalidInput, "invalid encrypted data format")

	// ErrKeyMismatch indicates the encrypted data was not produced by the given key.
	ErrKeyMismatch = errors.Wrap(errors.ErrInvalidInput, "encrypted data does not belong to key")

	// ErrInvalidWindow indicates a metrics window outside 1..365 days.
	ErrInvalidWindow = errors.Wrap(errors.ErrInvalidInput, "invalid metrics window")

	// ErrSiteIDRequired indicates a call without a tenant.
	ErrSiteIDRequired = errors.Wrap(errors.ErrInvalidInput, "site id is required")

	// ErrAuthenticationFailed indicates the authentication tag did not verify.
	ErrAuthenticationFailed = errors.Wrap(errors.ErrInvalidInput, "authentication failed")

	// ErrKeyNotFound indicates no key exists with the given id.
	ErrKeyNotFound = errors.Wrap(errors.ErrNotFound, "encryption key not found")

	// ErrKeyDestroyed indicates the key material was erased.
	ErrKeyDestroyed = errors.Wrap(errors.ErrGone, "encryption key destroyed")

	// ErrKeyAccessDenied indicates the key belongs to another tenant.
	ErrKeyAccessDenied = errors.Wrap(errors.ErrForbidden, "encryption key access denied")

	// ErrKeyUnwrap indicates the key material could not be unwrapped. Callers may retry.
	ErrKeyUnwrap = errors.Wrap(errors.ErrUnavailable, "failed to unwrap encryption key")

	// ErrKeyAlreadyExists indicates the lineage already has an ACTIVE key or the version is taken.
	ErrKeyAlreadyExists = errors.Wrap(errors.ErrConflict, "encryption key already exists")

	// ErrInvalidTransition indicates a state change the lifecycle does not allow.
	ErrInvalidTransition = errors.Wrap(errors.ErrConflict, "invalid key state transition")

	// ErrKeyNotActive indicates an operation that requires an ACTIVE key.
	ErrKeyNotActive = errors.Wrap(errors.ErrConflict, "encryption key is not active")

	// ErrGracePeriodNotElapsed indicates a destroy attempt before the grace period ended.
	ErrGracePeriodNotElapsed = errors.Wrap(errors.ErrConflict, "key destroy grace period not elapsed")

	// ErrLockTimeout indicates the lineage lock could not be acquired before the deadline.
	ErrLockTimeout = errors.Wrap(errors.ErrUnavailable, "lineage lock not acquired")
)
