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

// PostgreSQLKeyRepository implements encryption key persistence for PostgreSQL.
//
// The ACTIVE invariant is a partial unique index:
//
//	CREATE UNIQUE INDEX ... ON encryption_keys (site_id, purpose) WHERE status = 'ACTIVE'
type PostgreSQLKeyRepository struct {
	db *sql.DB
}

func scanPostgreSQLKey(row rowScanner) (*keysDomain.EncryptionKey, error) {
	var (
		key    keysDomain.EncryptionKey
		policy int64
	)
	if err := row.Scan(
		&key.ID,
		&key.SiteID,
		&key.Purpose,
		&key.Algorithm,
		&key.KekID,
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
	key.RotationPolicy = policyDuration(policy)
	return &key, nil
}

// Create inserts key. A unique violation returns ErrKeyAlreadyExists.
func (p *PostgreSQLKeyRepository) Create(ctx context.Context, key *keysDomain.EncryptionKey) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO encryption_keys (` + keyColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := querier.ExecContext(
		ctx,
		query,
		key.ID,
		key.SiteID,
		key.Purpose,
		key.Algorithm,
		key.KekID,
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

// Update writes the mutable columns of key: state, timestamps and the wrapped
// material (nulled on destroy, replaced on rewrap).
func (p *PostgreSQLKeyRepository) Update(ctx context.Context, key *keysDomain.EncryptionKey) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE encryption_keys
			  SET status = $1, kek_id = $2, wrapped_material = $3, nonce = $4,
			      rotated_at = $5, retired_at = $6, destroyed_at = $7
			  WHERE id = $8`

	result, err := querier.ExecContext(
		ctx,
		query,
		key.Status,
		key.KekID,
		key.WrappedMaterial,
		key.Nonce,
		key.RotatedAt,
		key.RetiredAt,
		key.DestroyedAt,
		key.ID,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return keysDomain.ErrKeyAlreadyExists
		}
		return apperrors.Wrap(err, "failed to update encryption key")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get affected rows")
	}
	if affected == 0 {
		return keysDomain.ErrKeyNotFound
	}
	return nil
}

func (p *PostgreSQLKeyRepository) get(ctx context.Context, id uuid.UUID, forUpdate bool) (*keysDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + keyColumns + ` FROM encryption_keys WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	key, err := scanPostgreSQLKey(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, keysDomain.ErrKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get encryption key")
	}
	return key, nil
}

// Get returns the key with id or ErrKeyNotFound.
func (p *PostgreSQLKeyRepository) Get(ctx context.Context, id uuid.UUID) (*keysDomain.EncryptionKey, error) {
	return p.get(ctx, id, false)
}

// GetForUpdate is Get with a row lock held until the surrounding transaction ends.
func (p *PostgreSQLKeyRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*keysDomain.EncryptionKey, error) {
	return p.get(ctx, id, true)
}

// GetActive returns the ACTIVE key of the lineage, the highest version when
// more than one is visible.
func (p *PostgreSQLKeyRepository) GetActive(
	ctx context.Context,
	siteID string,
	purpose keysDomain.Purpose,
) (*keysDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + keyColumns + ` FROM encryption_keys
			  WHERE site_id = $1 AND purpose = $2 AND status = $3
			  ORDER BY version DESC
			  LIMIT 1`

	key, err := scanPostgreSQLKey(querier.QueryRowContext(ctx, query, siteID, purpose, keysDomain.StatusActive))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, keysDomain.ErrKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get active encryption key")
	}
	return key, nil
}

// MaxVersion returns the highest version in the lineage, 0 when it is empty.
func (p *PostgreSQLKeyRepository) MaxVersion(ctx context.Context, siteID string, purpose keysDomain.Purpose) (uint, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT COALESCE(MAX(version), 0) FROM encryption_keys WHERE site_id = $1 AND purpose = $2`

	var version uint
	if err := querier.QueryRowContext(ctx, query, siteID, purpose).Scan(&version); err != nil {
		return 0, apperrors.Wrap(err, "failed to get max key version")
	}
	return version, nil
}

func (p *PostgreSQLKeyRepository) list(ctx context.Context, query string, args ...any) ([]*keysDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, p.db)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list encryption keys")
	}
	defer func() {
		_ = rows.Close()
	}()

	keys := make([]*keysDomain.EncryptionKey, 0)
	for rows.Next() {
		key, err := scanPostgreSQLKey(rows)
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

// ListBySite returns every key of the site ordered by purpose then version descending.
func (p *PostgreSQLKeyRepository) ListBySite(ctx context.Context, siteID string) ([]*keysDomain.EncryptionKey, error) {
	query := `SELECT ` + keyColumns + ` FROM encryption_keys
			  WHERE site_id = $1
			  ORDER BY purpose, version DESC`
	return p.list(ctx, query, siteID)
}

// ListActive returns the ACTIVE keys of the site, or of every site when siteID is empty.
func (p *PostgreSQLKeyRepository) ListActive(ctx context.Context, siteID string) ([]*keysDomain.EncryptionKey, error) {
	if siteID == "" {
		query := `SELECT ` + keyColumns + ` FROM encryption_keys
				  WHERE status = $1
				  ORDER BY site_id, purpose`
		return p.list(ctx, query, keysDomain.StatusActive)
	}

	query := `SELECT ` + keyColumns + ` FROM encryption_keys
			  WHERE site_id = $1 AND status = $2
			  ORDER BY purpose`
	return p.list(ctx, query, siteID, keysDomain.StatusActive)
}

// ListForRewrap returns up to limit non-destroyed keys wrapped under a KEK other than kekID.
func (p *PostgreSQLKeyRepository) ListForRewrap(
	ctx context.Context,
	kekID uuid.UUID,
	limit int,
) ([]*keysDomain.EncryptionKey, error) {
	query := `SELECT ` + keyColumns + ` FROM encryption_keys
			  WHERE kek_id <> $1 AND status <> $2
			  ORDER BY id
			  LIMIT $3`
	return p.list(ctx, query, kekID, keysDomain.StatusDestroyed, limit)
}

// NewPostgreSQLKeyRepository creates a PostgreSQLKeyRepository.
func NewPostgreSQLKeyRepository(db *sql.DB) *PostgreSQLKeyRepository {
	return &PostgreSQLKeyRepository{db: db}
}
