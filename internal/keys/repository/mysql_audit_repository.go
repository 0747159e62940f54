package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/tenantkeys/internal/database"
	apperrors "github.com/allisson/tenantkeys/internal/errors"
	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
)

// MySQLAuditRepository implements audit record persistence for MySQL.
type MySQLAuditRepository struct {
	db *sql.DB
}

func (m *MySQLAuditRepository) Create(ctx context.Context, record *keysDomain.AuditRecord) error {
	querier := database.GetTx(ctx, m.db)

	metadataJSON, err := marshalMetadata(record.Metadata)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal audit record metadata")
	}

	var kekID []byte
	if record.KekID != nil {
		kekID = record.KekID[:]
	}

	query := `INSERT INTO key_audit_logs (` + auditColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		record.ID[:],
		record.SiteID,
		record.PrincipalID,
		record.Purpose,
		record.KeyID[:],
		record.Action,
		metadataJSON,
		kekID,
		record.Signature,
		record.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create audit record")
	}
	return nil
}

func (m *MySQLAuditRepository) List(
	ctx context.Context,
	filter keysDomain.AuditFilter,
) ([]*keysDomain.AuditRecord, error) {
	querier := database.GetTx(ctx, m.db)

	where, args := auditWhere(filter, mysqlPlaceholder)
	args = append(args, filter.Limit, filter.Offset)
	query := `SELECT ` + auditColumns + ` FROM key_audit_logs` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit records")
	}
	defer func() {
		_ = rows.Close()
	}()

	records := make([]*keysDomain.AuditRecord, 0)
	for rows.Next() {
		var (
			record       keysDomain.AuditRecord
			rawID        []byte
			rawKeyID     []byte
			rawKekID     []byte
			metadataJSON []byte
		)
		if err := rows.Scan(
			&rawID,
			&record.SiteID,
			&record.PrincipalID,
			&record.Purpose,
			&rawKeyID,
			&record.Action,
			&metadataJSON,
			&rawKekID,
			&record.Signature,
			&record.CreatedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan audit record")
		}

		if record.ID, err = uuid.FromBytes(rawID); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal audit record id")
		}
		if record.KeyID, err = uuid.FromBytes(rawKeyID); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal key id")
		}
		if rawKekID != nil {
			kekID, err := uuid.FromBytes(rawKekID)
			if err != nil {
				return nil, apperrors.Wrap(err, "failed to unmarshal kek id")
			}
			record.KekID = &kekID
		}
		if record.Metadata, err = unmarshalMetadata(metadataJSON); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal audit record metadata")
		}
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate audit records")
	}
	return records, nil
}

func (m *MySQLAuditRepository) CountBySiteSince(
	ctx context.Context,
	siteID string,
	since time.Time,
) ([]keysDomain.OperationCount, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT purpose, action, COUNT(*) FROM key_audit_logs
			  WHERE site_id = ? AND created_at >= ?
			  GROUP BY purpose, action
			  ORDER BY purpose, action`

	return scanOperationCounts(querier.QueryContext(ctx, query, siteID, since))
}

func (m *MySQLAuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time, dryRun bool) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	if dryRun {
		var count int64
		query := `SELECT COUNT(*) FROM key_audit_logs WHERE created_at < ?`
		if err := querier.QueryRowContext(ctx, query, cutoff).Scan(&count); err != nil {
			return 0, apperrors.Wrap(err, "failed to count audit records")
		}
		return count, nil
	}

	result, err := querier.ExecContext(ctx, `DELETE FROM key_audit_logs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete audit records")
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get affected rows")
	}
	return count, nil
}

// NewMySQLAuditRepository creates a MySQLAuditRepository.
func NewMySQLAuditRepository(db *sql.DB) *MySQLAuditRepository {
	return &MySQLAuditRepository{db: db}
}
