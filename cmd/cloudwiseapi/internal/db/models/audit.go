package models

import (
	"time"

	"github.com/uptrace/bun"
)

// AuditAction names an audited state change.
type AuditAction string

const (
	AuditActionUserCreated     AuditAction = "user.created"
	AuditActionUserRoleChanged AuditAction = "user.role_changed"
)

// AuditLog is an append-only record of an administrative change.
type AuditLog struct {
	bun.BaseModel `bun:"table:audit_logs,alias:al"`

	ID         string      `bun:"id,pk"` // UUIDv7
	Action     AuditAction `bun:"action,notnull"`
	Actor      string      `bun:"actor,notnull"`
	TargetType string      `bun:"target_type,notnull"`
	TargetID   string      `bun:"target_id,notnull"`
	Detail     string      `bun:"detail,notnull"`
	CreatedAt  time.Time   `bun:"created_at,notnull,default:current_timestamp"`
}
