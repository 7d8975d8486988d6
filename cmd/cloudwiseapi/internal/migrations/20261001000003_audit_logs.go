package migrations

import (
	"context"
	"fmt"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20261001000003, down_20261001000003)
}

func up_20261001000003(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating audit_logs table...")
	_, err := db.NewCreateTable().
		Model((*models.AuditLog)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create audit_logs table: %w", err)
	}

	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_audit_logs_target ON audit_logs(target_type, target_id)`); err != nil {
		return fmt.Errorf("failed to create audit_logs target index: %w", err)
	}
	fmt.Println(" OK")
	return nil
}

func down_20261001000003(ctx context.Context, db *bun.DB) error {
	return dropTables(ctx, db, "audit_logs")
}
