package repository

import (
	"context"
	"time"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/db/bunx"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/db/models"
	"github.com/uptrace/bun"
)

// BunAuditLogRepository implements AuditLogRepository using Bun ORM
type BunAuditLogRepository struct {
	db bun.IDB
}

func NewBunAuditLogRepository(db bun.IDB) *BunAuditLogRepository {
	return &BunAuditLogRepository{db: db}
}

// Create assigns an ID and timestamp when missing and inserts entry.
func (r *BunAuditLogRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = bunx.NewUUIDv7()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if _, err := r.db.NewInsert().Model(entry).Exec(ctx); err != nil {
		return wrap("create audit log", err)
	}
	return nil
}

// ListByTarget returns entries for one target, oldest first.
func (r *BunAuditLogRepository) ListByTarget(ctx context.Context, targetType, targetID string) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	err := r.db.NewSelect().
		Model(&entries).
		Where("target_type = ?", targetType).
		Where("target_id = ?", targetID).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, wrap("list audit logs", err)
	}
	return entries, nil
}
