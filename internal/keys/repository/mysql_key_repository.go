package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/tenantkeys/internal/database"
	apperrors "github.com/allisson/tenantkeys/internal/errors"
	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
)

// MySQLKeyRepository implements encryption key persistence for MySQL. MySQL has no
// partial indexes, so the ACTIVE invariant is a unique index on a generated column
// that is non-NULL only for ACTIVE rows.
type MySQLKeyRepository struct {
	db *sql.DB
}

func scanMySQLKey(row rowScanner) (*keysDomain.EncryptionKey, error) {
	var (
		key      keysDomain.EncryptionKey
		rawID    []byte
		rawKekID []byte
		policy   int64
	)
	if err := row.Scan(
		&rawID,
		&key.SiteID,
		&key.Purpose,
		&key.Algorithm,
		&rawKekID,
		&key.WrappedMaterial,
		&key.Nonce,
		&key.Status,
		&key.Version,
		&policy,
		&key.CreatedAt,
		&key.RotatedAt,
		&key.RetiredAt,
		&key.DestroyedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if key.ID, err = uuid.FromBytes(rawID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal key id")
	}
	if key.KekID, err = uuid.FromBytes(rawKekID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal kek id")
	}
	key.RotationPolicy = policyDuration(policy)
	return &key, nil
}

func (m *MySQLKeyRepository) Create(ctx context.Context, key *keysDomain.EncryptionKey) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO encryption_keys (` + keyColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		key.ID[:],
		key.SiteID,
		key.Purpose,
		key.Algorithm,
		key.KekID[:],
		key.WrappedMaterial,
		key.Nonce,
		key.Status,
		key.Version,
		policySeconds(key.RotationPolicy),
		key.CreatedAt,
		key.RotatedAt,
		key.RetiredAt,
		key.DestroyedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return keysDomain.ErrKeyAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create encryption key")
	}
	return nil
}

func (m *MySQLKeyRepository) Update(ctx context.Context, key *keysDomain.EncryptionKey) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE encryption_keys
			  SET status = ?, kek_id = ?, wrapped_material = ?, nonce = ?,
			      rotated_at = ?, retired_at = ?, destroyed_at = ?
			  WHERE id = ?`

	// MySQL reports 0 affected rows when values are unchanged, so existence is
	// not checked here.
	_, err := querier.ExecContext(
		ctx,
		query,
		key.Status,
		key.KekID[:],
		key.WrappedMaterial,
		key.Nonce,
		key.RotatedAt,
		key.RetiredAt,
		key.DestroyedAt,
		key.ID[:],
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return keysDomain.ErrKeyAlreadyExists
		}
		return apperrors.Wrap(err, "failed to update encryption key")
	}
	return nil
}

func (m *MySQLKeyRepository) get(ctx context.Context, id uuid.UUID, forUpdate bool) (*keysDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + keyColumns + ` FROM encryption_keys WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	key, err := scanMySQLKey(querier.QueryRowContext(ctx, query, id[:]))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, keysDomain.ErrKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get encryption key")
	}
	return key, nil
}

func (m *MySQLKeyRepository) Get(ctx context.Context, id uuid.UUID) (*keysDomain.EncryptionKey, error) {
	return m.get(ctx, id, false)
}

func (m *MySQLKeyRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*keysDomain.EncryptionKey, error) {
	return m.get(ctx, id, true)
}

func (m *MySQLKeyRepository) GetActive(
	ctx context.Context,
	siteID string,
	purpose keysDomain.Purpose,
) (*keysDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + keyColumns + ` FROM encryption_keys
			  WHERE site_id = ? AND purpose = ? AND status = ?
			  ORDER BY version DESC
			  LIMIT 1`

	key, err := scanMySQLKey(querier.QueryRowContext(ctx, query, siteID, purpose, keysDomain.StatusActive))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, keysDomain.ErrKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get active encryption key")
	}
	return key, nil
}

func (m *MySQLKeyRepository) MaxVersion(ctx context.Context, siteID string, purpose keysDomain.Purpose) (uint, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT COALESCE(MAX(version), 0) FROM encryption_keys WHERE site_id = ? AND purpose = ?`

	var version uint
	if err := querier.QueryRowContext(ctx, query, siteID, purpose).Scan(&version); err != nil {
		return 0, apperrors.Wrap(err, "failed to get max key version")
	}
	return version, nil
}

func (m *MySQLKeyRepository) list(ctx context.Context, query string, args ...any) ([]*keysDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, m.db)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list encryption keys")
	}
	defer func() {
		_ = rows.Close()
	}()

	keys := make([]*keysDomain.EncryptionKey, 0)
	for rows.Next() {
		key, err := scanMySQLKey(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan encryption key")
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate encryption keys")
	}
	return keys, nil
}

func (m *MySQLKeyRepository) ListBySite(ctx context.Context, siteID string) ([]*keysDomain.EncryptionKey, error) {
	query := `SELECT ` + keyColumns + ` FROM encryption_keys
			  WHERE site_id = ?
			  ORDER BY purpose, version DESC`
	return m.list(ctx, query, siteID)
}

func (m *MySQLKeyRepository) ListActive(ctx context.Context, siteID string) ([]*keysDomain.EncryptionKey, error) {
	if siteID == "" {
		query := `SELECT ` + keyColumns + ` FROM encryption_keys
				  WHERE status = ?
				  ORDER BY site_id, purpose`
		return m.list(ctx, query, keysDomain.StatusActive)
	}

	query := `SELECT ` + keyColumns + ` FROM encryption_keys
			  WHERE site_id = ? AND status = ?
			  ORDER BY purpose`
	return m.list(ctx, query, siteID, keysDomain.StatusActive)
}

func (m *MySQLKeyRepository) ListForRewrap(
	ctx context.Context,
	kekID uuid.UUID,
	limit int,
) ([]*keysDomain.EncryptionKey, error) {
	query := `SELECT ` + keyColumns + ` FROM encryption_keys
			  WHERE kek_id <> ? AND status <> ?
			  ORDER BY id
			  LIMIT ?`
	return m.list(ctx, query, kekID[:], keysDomain.StatusDestroyed, limit)
}

// NewMySQLKeyRepository creates a MySQLKeyRepository.
func NewMySQLKeyRepository(db *sql.DB) *MySQLKeyRepository {
	return &MySQLKeyRepository{db: db}
}
