package domain

import (
	"time"

	"github.com/google/uuid"
)

// RotationScheduleEntry describes when an ACTIVE lineage key is next due.
type RotationScheduleEntry struct {
	KeyID          uuid.UUID
	Purpose        Purpose
	Version        uint
	CreatedAt      time.Time
	NextRotationAt time.Time
	Overdue        bool
}

// EncryptionMetrics summarizes a site's key usage over a trailing window.
type EncryptionMetrics struct {
	SiteID              string
	Days                int
	Since               time.Time
	OperationCounts     []OperationCount
	RotationSchedule    []RotationScheduleEntry
	KeysNeedingRotation []RotationScheduleEntry
}

// RotationError is a per-key failure collected by an automatic rotation run.
type RotationError struct {
	KeyID  uuid.UUID
	Reason string
}

// RotationReport is the outcome of an automatic rotation run.
type RotationReport struct {
	RotatedKeys []uuid.UUID
	Errors      []RotationError
}
