package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/allisson/tenantkeys/internal/database"
	apperrors "github.com/allisson/tenantkeys/internal/errors"
	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
)

// PostgreSQLAuditRepository implements audit record persistence for PostgreSQL.
// Records are append-only; the only delete is age-based cleanup.
type PostgreSQLAuditRepository struct {
	db *sql.DB
}

func marshalMetadata(metadata map[string]string) ([]byte, error) {
	if metadata == nil {
		return nil, nil
	}
	return json.Marshal(metadata)
}

func unmarshalMetadata(data []byte) (map[string]string, error) {
	if data == nil {
		return nil, nil
	}
	var metadata map[string]string
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

// Create inserts record. Nil metadata is stored as NULL.
func (p *PostgreSQLAuditRepository) Create(ctx context.Context, record *keysDomain.AuditRecord) error {
	querier := database.GetTx(ctx, p.db)

	metadataJSON, err := marshalMetadata(record.Metadata)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal audit record metadata")
	}

	query := `INSERT INTO key_audit_logs (` + auditColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = querier.ExecContext(
		ctx,
		query,
		record.ID,
		record.SiteID,
		record.PrincipalID,
		record.Purpose,
		record.KeyID,
		record.Action,
		metadataJSON,
		record.KekID,
		record.Signature,
		record.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create audit record")
	}
	return nil
}

// List returns the records matching filter, newest first.
func (p *PostgreSQLAuditRepository) List(
	ctx context.Context,
	filter keysDomain.AuditFilter,
) ([]*keysDomain.AuditRecord, error) {
	querier := database.GetTx(ctx, p.db)

	where, args := auditWhere(filter, postgresPlaceholder)
	args = append(args, filter.Limit, filter.Offset)
	query := `SELECT ` + auditColumns + ` FROM key_audit_logs` + where +
		` ORDER BY created_at DESC, id DESC LIMIT ` + postgresPlaceholder(len(args)-1) +
		` OFFSET ` + postgresPlaceholder(len(args))

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
			metadataJSON []byte
		)
		if err := rows.Scan(
			&record.ID,
			&record.SiteID,
			&record.PrincipalID,
			&record.Purpose,
			&record.KeyID,
			&record.Action,
			&metadataJSON,
			&record.KekID,
			&record.Signature,
			&record.CreatedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan audit record")
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

// CountBySiteSince groups the site's records created at or after since by purpose and action.
func (p *PostgreSQLAuditRepository) CountBySiteSince(
	ctx context.Context,
	siteID string,
	since time.Time,
) ([]keysDomain.OperationCount, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT purpose, action, COUNT(*) FROM key_audit_logs
			  WHERE site_id = $1 AND created_at >= $2
			  GROUP BY purpose, action
			  ORDER BY purpose, action`

	return scanOperationCounts(querier.QueryContext(ctx, query, siteID, since))
}

// DeleteOlderThan removes records created before cutoff. With dryRun it only counts them.
func (p *PostgreSQLAuditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time, dryRun bool) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	if dryRun {
		var count int64
		query := `SELECT COUNT(*) FROM key_audit_logs WHERE created_at < $1`
		if err := querier.QueryRowContext(ctx, query, cutoff).Scan(&count); err != nil {
			return 0, apperrors.Wrap(err, "failed to count audit records")
		}
		return count, nil
	}

	result, err := querier.ExecContext(ctx, `DELETE FROM key_audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete audit records")
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get affected rows")
	}
	return count, nil
}

func scanOperationCounts(rows *sql.Rows, err error) ([]keysDomain.OperationCount, error) {
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to count audit records")
	}
	defer func() {
		_ = rows.Close()
	}()

	counts := make([]keysDomain.OperationCount, 0)
	for rows.Next() {
		var count keysDomain.OperationCount
		if err := rows.Scan(&count.Purpose, &count.Action, &count.Count); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan operation count")
		}
		counts = append(counts, count)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate operation counts")
	}
	return counts, nil
}

// NewPostgreSQLAuditRepository creates a PostgreSQLAuditRepository.
func NewPostgreSQLAuditRepository(db *sql.DB) *PostgreSQLAuditRepository {
	return &PostgreSQLAuditRepository{db: db}
}
