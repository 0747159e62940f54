package dto

import (
	"time"

	"github.com/google/uuid"

	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
	keysUsecase "github.com/allisson/tenantkeys/internal/keys/usecase"
)

// EncryptResponse is returned by the encrypt endpoint.
type EncryptResponse struct {
	EncryptedData string            `json:"encrypted_data"`
	KeyID         string            `json:"key_id"`
	Algorithm     string            `json:"algorithm"`
	Purpose       string            `json:"purpose"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// MapEncryptOutputToResponse converts an encrypt result to its API response.
func MapEncryptOutputToResponse(output *keysUsecase.EncryptOutput) EncryptResponse {
	return EncryptResponse{
		EncryptedData: output.EncryptedData,
		KeyID:         output.KeyID.String(),
		Algorithm:     string(output.Algorithm),
		Purpose:       output.Purpose.String(),
		Metadata:      output.Metadata,
	}
}

// DecryptResponse is returned by the decrypt endpoint.
// SECURITY: DecryptedData is plaintext and must only travel over TLS.
type DecryptResponse struct {
	DecryptedData []byte            `json:"decrypted_data"`
	KeyID         string            `json:"key_id"`
	Purpose       string            `json:"purpose"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// MapDecryptOutputToResponse converts a decrypt result to its API response. The caller
// zeroes output.Plaintext after the response is written.
func MapDecryptOutputToResponse(output *keysUsecase.DecryptOutput) DecryptResponse {
	return DecryptResponse{
		DecryptedData: output.Plaintext,
		KeyID:         output.KeyID.String(),
		Purpose:       output.Purpose.String(),
		Metadata:      output.Metadata,
	}
}

// RotateKeyResponse is returned by the rotate endpoint.
type RotateKeyResponse struct {
	OldKeyID   string `json:"old_key_id"`
	NewKeyID   string `json:"new_key_id"`
	Rotated    bool   `json:"rotated"`
	BackupPath string `json:"backup_path,omitempty"`
}

// MapRotateOutputToResponse converts a rotation result to its API response.
func MapRotateOutputToResponse(output *keysUsecase.RotateOutput) RotateKeyResponse {
	return RotateKeyResponse{
		OldKeyID:   output.OldKeyID.String(),
		NewKeyID:   output.NewKeyID.String(),
		Rotated:    output.Rotated,
		BackupPath: output.BackupPath,
	}
}

// RotationErrorResponse describes one lineage that failed to rotate.
type RotationErrorResponse struct {
	KeyID  string `json:"key_id"`
	Reason string `json:"reason"`
}

// RotationReportResponse is returned by the automatic rotation endpoint.
type RotationReportResponse struct {
	RotatedKeys []string                `json:"rotated_keys"`
	Errors      []RotationErrorResponse `json:"errors"`
}

// MapRotationReportToResponse converts a rotation report to its API response.
func MapRotationReportToResponse(report *keysDomain.RotationReport) RotationReportResponse {
	response := RotationReportResponse{
		RotatedKeys: make([]string, 0, len(report.RotatedKeys)),
		Errors:      make([]RotationErrorResponse, 0, len(report.Errors)),
	}
	response.RotatedKeys = append(response.RotatedKeys, keyIDs(report.RotatedKeys)...)
	for _, e := range report.Errors {
		response.Errors = append(response.Errors, RotationErrorResponse{KeyID: e.KeyID.String(), Reason: e.Reason})
	}
	return response
}

// KeyResponse represents key metadata. Key material is never exposed.
type KeyResponse struct {
	ID                    string     `json:"id"`
	SiteID                string     `json:"site_id"`
	Purpose               string     `json:"purpose"`
	Algorithm             string     `json:"algorithm"`
	Status                string     `json:"status"`
	Version               uint       `json:"version"`
	RotationPolicySeconds int64      `json:"rotation_policy_seconds"`
	CreatedAt             time.Time  `json:"created_at"`
	RotatedAt             *time.Time `json:"rotated_at,omitempty"`
	RetiredAt             *time.Time `json:"retired_at,omitempty"`
	DestroyedAt           *time.Time `json:"destroyed_at,omitempty"`
}

// MapKeyToResponse converts a domain key to its API response.
func MapKeyToResponse(key *keysDomain.EncryptionKey) KeyResponse {
	return KeyResponse{
		ID:                    key.ID.String(),
		SiteID:                key.SiteID,
		Purpose:               key.Purpose.String(),
		Algorithm:             string(key.Algorithm),
		Status:                key.Status.String(),
		Version:               key.Version,
		RotationPolicySeconds: int64(key.RotationPolicy.Seconds()),
		CreatedAt:             key.CreatedAt,
		RotatedAt:             key.RotatedAt,
		RetiredAt:             key.RetiredAt,
		DestroyedAt:           key.DestroyedAt,
	}
}

// ListKeysResponse wraps a list of keys.
type ListKeysResponse struct {
	Data []KeyResponse `json:"data"`
}

// MapKeysToListResponse converts domain keys to a list response.
func MapKeysToListResponse(keys []*keysDomain.EncryptionKey) ListKeysResponse {
	data := make([]KeyResponse, 0, len(keys))
	for _, key := range keys {
		data = append(data, MapKeyToResponse(key))
	}
	return ListKeysResponse{Data: data}
}

// OperationCountResponse is the number of operations for one purpose and action.
type OperationCountResponse struct {
	Purpose string `json:"purpose"`
	Action  string `json:"action"`
	Count   int64  `json:"count"`
}

// RotationScheduleResponse describes when a key is next due for rotation.
type RotationScheduleResponse struct {
	KeyID          string    `json:"key_id"`
	Purpose        string    `json:"purpose"`
	Version        uint      `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	NextRotationAt time.Time `json:"next_rotation_at"`
	Overdue        bool      `json:"overdue"`
}

// MetricsResponse is returned by the metrics endpoint.
type MetricsResponse struct {
	SiteID              string                     `json:"site_id"`
	Days                int                        `json:"days"`
	Since               time.Time                  `json:"since"`
	OperationCounts     []OperationCountResponse   `json:"operation_counts"`
	RotationSchedule    []RotationScheduleResponse `json:"rotation_schedule"`
	KeysNeedingRotation []RotationScheduleResponse `json:"keys_needing_rotation"`
}

func mapScheduleEntries(entries []keysDomain.RotationScheduleEntry) []RotationScheduleResponse {
	out := make([]RotationScheduleResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, RotationScheduleResponse{
			KeyID:          e.KeyID.String(),
			Purpose:        e.Purpose.String(),
			Version:        e.Version,
			CreatedAt:      e.CreatedAt,
			NextRotationAt: e.NextRotationAt,
			Overdue:        e.Overdue,
		})
	}
	return out
}

// MapMetricsToResponse converts encryption metrics to their API response.
func MapMetricsToResponse(metrics *keysDomain.EncryptionMetrics) MetricsResponse {
	counts := make([]OperationCountResponse, 0, len(metrics.OperationCounts))
	for _, c := range metrics.OperationCounts {
		counts = append(counts, OperationCountResponse{
			Purpose: c.Purpose.String(),
			Action:  string(c.Action),
			Count:   c.Count,
		})
	}

	return MetricsResponse{
		SiteID:              metrics.SiteID,
		Days:                metrics.Days,
		Since:               metrics.Since,
		OperationCounts:     counts,
		RotationSchedule:    mapScheduleEntries(metrics.RotationSchedule),
		KeysNeedingRotation: mapScheduleEntries(metrics.KeysNeedingRotation),
	}
}

// AuditRecordResponse represents an audit record in API responses.
type AuditRecordResponse struct {
	ID          string            `json:"id"`
	SiteID      string            `json:"site_id"`
	PrincipalID string            `json:"principal_id"`
	Purpose     string            `json:"purpose"`
	KeyID       string            `json:"key_id"`
	Action      string            `json:"action"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Signed      bool              `json:"signed"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ListAuditRecordsResponse wraps a page of audit records.
type ListAuditRecordsResponse struct {
	Data []AuditRecordResponse `json:"data"`
}

// MapAuditRecordsToListResponse converts audit records to a list response.
func MapAuditRecordsToListResponse(records []*keysDomain.AuditRecord) ListAuditRecordsResponse {
	data := make([]AuditRecordResponse, 0, len(records))
	for _, r := range records {
		data = append(data, AuditRecordResponse{
			ID:          r.ID.String(),
			SiteID:      r.SiteID,
			PrincipalID: r.PrincipalID,
			Purpose:     r.Purpose.String(),
			KeyID:       r.KeyID.String(),
			Action:      string(r.Action),
			Metadata:    r.Metadata,
			Signed:      r.IsSigned(),
			CreatedAt:   r.CreatedAt,
		})
	}
	return ListAuditRecordsResponse{Data: data}
}

func keyIDs(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
