package migrations

import (
	"context"
	"fmt"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20261001000002, down_20261001000002)
}

// up_20261001000002 creates one table per provider, each owned by a user.
func up_20261001000002(ctx context.Context, db *bun.DB) error {
	tables := []struct {
		name  string
		model any
	}{
		{"aws_accounts", (*models.AWSAccount)(nil)},
		{"gcp_projects", (*models.GCPProject)(nil)},
		{"azure_subscriptions", (*models.AzureSubscription)(nil)},
	}

	for _, table := range tables {
		fmt.Printf(" [up] creating %s table...", table.name)
		_, err := db.NewCreateTable().
			Model(table.model).
			IfNotExists().
			ForeignKey(`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}

		// Ownership lookups filter on (id, user_id); listing filters on user_id.
		idx := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_user_id ON %s(user_id)`, table.name, table.name)
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("failed to create %s user_id index: %w", table.name, err)
		}
		fmt.Println(" OK")
	}
	return nil
}

func down_20261001000002(ctx context.Context, db *bun.DB) error {
	return dropTables(ctx, db, "azure_subscriptions", "gcp_projects", "aws_accounts")
}
