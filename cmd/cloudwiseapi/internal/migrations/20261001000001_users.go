package migrations

import (
	"context"
	"fmt"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20261001000001, down_20261001000001)
}

// up_20261001000001 creates the users table. The unique constraint on subject
// is what makes concurrent first logins converge on one row.
func up_20261001000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating users table...")
	_, err := db.NewCreateTable().
		Model((*models.User)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create users table: %w", err)
	}

	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`); err != nil {
		return fmt.Errorf("failed to create users email index: %w", err)
	}
	fmt.Println(" OK")
	return nil
}

func down_20261001000001(ctx context.Context, db *bun.DB) error {
	return dropTables(ctx, db, "users")
}
