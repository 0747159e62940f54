package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestConnect_Error(t *testing.T) {
	cfg := Config{
		Driver:             "invalid",
		ConnectionString:   "invalid",
		MaxOpenConnections: 10,
		MaxIdleConnections: 5,
		ConnMaxLifetime:    time.Hour,
	}

	db, err := Connect(cfg)
	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "sql: unknown driver")
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "postgres unique violation", err: &pq.Error{Code: "23505"}, want: true},
		{name: "postgres other error", err: &pq.Error{Code: "23503"}, want: false},
		{name: "mysql duplicate entry", err: &mysql.MySQLError{Number: 1062}, want: true},
		{name: "mysql other error", err: &mysql.MySQLError{Number: 1213}, want: false},
		{name: "wrapped postgres error", err: fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), want: true},
		{name: "plain error", err: assert.AnError, want: false},
		{name: "nil error", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err))
		})
	}
}

func TestConnectRedis_InvalidURL(t *testing.T) {
	_, err := ConnectRedis(context.Background(), "not-a-redis-url")
	assert.Error(t, err)
}
