// Package repository persists KEKs in PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/tenantkeys/internal/crypto/domain"
	"github.com/allisson/tenantkeys/internal/database"
	apperrors "github.com/allisson/tenantkeys/internal/errors"
)

const kekColumns = "id, master_key_id, algorithm, encrypted_key, nonce, version, created_at"

// kekStore runs the KEK queries. The dialects differ only in bind markers and
// in how the id column is encoded.
type kekStore struct {
	db     *sql.DB
	bind   func(n int) string
	idArg  func(id uuid.UUID) any
	idDest func(id *uuid.UUID) any
}

// Create inserts a KEK. The plaintext key is never written. A version that is
// already taken yields cryptoDomain.ErrKekAlreadyExists.
func (s *kekStore) Create(ctx context.Context, kek *cryptoDomain.Kek) error {
	query := fmt.Sprintf(`INSERT INTO keks (%s) VALUES (%s, %s, %s, %s, %s, %s, %s)`,
		kekColumns, s.bind(1), s.bind(2), s.bind(3), s.bind(4), s.bind(5), s.bind(6), s.bind(7))

	_, err := database.GetTx(ctx, s.db).ExecContext(ctx, query,
		s.idArg(kek.ID), kek.MasterKeyID, kek.Algorithm, kek.EncryptedKey, kek.Nonce, kek.Version, kek.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return cryptoDomain.ErrKekAlreadyExists
		}
		return apperrors.Wrap(err, "failed to create kek")
	}
	return nil
}

// Update replaces the master key envelope of a KEK.
func (s *kekStore) Update(ctx context.Context, kek *cryptoDomain.Kek) error {
	query := fmt.Sprintf(`UPDATE keks SET master_key_id = %s, encrypted_key = %s, nonce = %s WHERE id = %s`,
		s.bind(1), s.bind(2), s.bind(3), s.bind(4))

	result, err := database.GetTx(ctx, s.db).ExecContext(ctx, query,
		kek.MasterKeyID, kek.EncryptedKey, kek.Nonce, s.idArg(kek.ID))
	if err != nil {
		return apperrors.Wrap(err, "failed to update kek")
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return cryptoDomain.ErrKekNotFound
	}
	return nil
}

// List returns every KEK, newest version first.
func (s *kekStore) List(ctx context.Context) ([]*cryptoDomain.Kek, error) {
	rows, err := database.GetTx(ctx, s.db).
		QueryContext(ctx, "SELECT "+kekColumns+" FROM keks ORDER BY version DESC")
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list keks")
	}
	defer func() {
		_ = rows.Close()
	}()

	keks := make([]*cryptoDomain.Kek, 0)
	for rows.Next() {
		kek := &cryptoDomain.Kek{}
		err := rows.Scan(s.idDest(&kek.ID), &kek.MasterKeyID, &kek.Algorithm,
			&kek.EncryptedKey, &kek.Nonce, &kek.Version, &kek.CreatedAt)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan kek")
		}
		keks = append(keks, kek)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate keks")
	}
	return keks, nil
}

// PostgreSQLKekRepository stores KEKs in PostgreSQL with native UUID ids.
type PostgreSQLKekRepository struct {
	kekStore
}

func NewPostgreSQLKekRepository(db *sql.DB) *PostgreSQLKekRepository {
	return &PostgreSQLKekRepository{kekStore{
		db:     db,
		bind:   func(n int) string { return fmt.Sprintf("$%d", n) },
		idArg:  func(id uuid.UUID) any { return id },
		idDest: func(id *uuid.UUID) any { return id },
	}}
}

// MySQLKekRepository stores KEKs in MySQL with BINARY(16) ids.
type MySQLKekRepository struct {
	kekStore
}

func NewMySQLKekRepository(db *sql.DB) *MySQLKekRepository {
	return &MySQLKekRepository{kekStore{
		db:     db,
		bind:   func(int) string { return "?" },
		idArg:  func(id uuid.UUID) any { return id[:] },
		idDest: func(id *uuid.UUID) any { return binaryUUID{id} },
	}}
}

// binaryUUID scans a BINARY(16) column into a uuid.UUID.
type binaryUUID struct {
	id *uuid.UUID
}

func (b binaryUUID) Scan(src any) error {
	raw, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("kek id: unexpected column type %T", src)
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return fmt.Errorf("kek id: %w", err)
	}
	*b.id = id
	return nil
}
