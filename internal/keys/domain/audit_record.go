package domain

import (
	"time"

	"github.com/google/uuid"
)

// Action is the operation an audit record describes.
type Action string

const (
	ActionEncrypt Action = "ENCRYPT"
	ActionDecrypt Action = "DECRYPT"
	ActionCreate  Action = "CREATE"
	ActionRotate  Action = "ROTATE"
	ActionDestroy Action = "DESTROY"
	ActionRewrap  Action = "REWRAP"
)

// Actions returns every action in declaration order.
func Actions() []Action {
	return []Action{ActionEncrypt, ActionDecrypt, ActionCreate, ActionRotate, ActionDestroy, ActionRewrap}
}

// AuditRecord is an append-only trail entry for a key operation. Signature is an
// HMAC over the canonical record computed with a key derived from KekID.
type AuditRecord struct {
	ID          uuid.UUID
	SiteID      string
	PrincipalID string
	Purpose     Purpose
	KeyID       uuid.UUID
	Action      Action
	Metadata    map[string]string
	KekID       *uuid.UUID
	Signature   []byte
	CreatedAt   time.Time
}

// IsSigned reports whether the record carries a signature.
func (r *AuditRecord) IsSigned() bool {
	return r.KekID != nil && len(r.Signature) > 0
}

// OperationCount is the number of audit records for one purpose and action.
type OperationCount struct {
	Purpose Purpose
	Action  Action
	Count   int64
}

// AuditFilter selects audit records. An empty SiteID matches every site; nil
// bounds are open. Both bounds are inclusive.
type AuditFilter struct {
	SiteID string
	From   *time.Time
	To     *time.Time
	Offset int
	Limit  int
}
