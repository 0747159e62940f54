// Package repository persists tenant encryption keys and their audit trail in
// PostgreSQL and MySQL.
//
// PostgreSQL stores ids as native UUID, MySQL as BINARY(16). Every method runs on
// the transaction carried by ctx when there is one (database.GetTx), so the
// lifecycle can chain lock, insert and audit writes atomically.
//
// The store enforces the lineage invariants itself: UNIQUE (site_id, purpose,
// version) and at most one ACTIVE row per (site_id, purpose). A violation of
// either surfaces as keysDomain.ErrKeyAlreadyExists.
package repository

import (
	"fmt"
	"strings"
	"time"

	keysDomain "github.com/allisson/tenantkeys/internal/keys/domain"
)

const keyColumns = `id, site_id, purpose, algorithm, kek_id, wrapped_material, nonce, status, version,
			  rotation_policy_seconds, created_at, rotated_at, retired_at, destroyed_at`

const auditColumns = `id, site_id, principal_id, purpose, key_id, action, metadata, kek_id, signature, created_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func policySeconds(d time.Duration) int64 {
	return int64(d / time.Second)
}

func policyDuration(seconds int64) time.Duration {
	return time.Duration(seconds) * time.Second
}

// auditWhere renders the WHERE clause for filter. placeholder returns the n-th
// (1-based) bind marker of the dialect.
func auditWhere(filter keysDomain.AuditFilter, placeholder func(n int) string) (string, []any) {
	var (
		conditions []string
		args       []any
	)

	add := func(expr string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(expr, placeholder(len(args))))
	}

	if filter.SiteID != "" {
		add("site_id = %s", filter.SiteID)
	}
	if filter.From != nil {
		add("created_at >= %s", *filter.From)
	}
	if filter.To != nil {
		add("created_at <= %s", *filter.To)
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func postgresPlaceholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func mysqlPlaceholder(int) string {
	return "?"
}
