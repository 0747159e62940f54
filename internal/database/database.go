// Package database opens SQL connections and runs statements on the
// transaction carried by a context.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// pingTimeout bounds the connectivity check in Connect.
const pingTimeout = 5 * time.Second

type Config struct {
	Driver             string
	ConnectionString   string
	MaxOpenConnections int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// Connect opens a pool for cfg.Driver ("postgres" or "mysql") and fails unless
// the server answers a ping.
func Connect(cfg Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxLifetime / 2)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// IsUniqueViolation reports whether err is a unique constraint violation raised
// by PostgreSQL (23505) or MySQL (1062).
func IsUniqueViolation(err error) bool {
	var (
		pqErr *pq.Error
		myErr *mysql.MySQLError
	)
	switch {
	case errors.As(err, &pqErr):
		return pqErr.Code == "23505"
	case errors.As(err, &myErr):
		return myErr.Number == 1062
	}
	return false
}
