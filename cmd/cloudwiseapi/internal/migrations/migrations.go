// Package migrations holds the bun schema migrations, registered in init funcs
// and applied by the "db migrate" command.
package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/migrate"
)

// Migrations is the registry every migration file adds itself to.
var Migrations = migrate.NewMigrations()

// dropTables drops tables in the given order. PostgreSQL cascades to dependent
// constraints; SQLite has no CASCADE keyword.
func dropTables(ctx context.Context, db *bun.DB, tables ...string) error {
	for _, table := range tables {
		fmt.Printf(" [down] dropping %s table...", table)
		stmt := fmt.Sprintf("DROP TABLE IF EXISTS %s", table)
		if IsPostgreSQL(db) {
			stmt += " CASCADE"
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to drop %s table: %w", table, err)
		}
		fmt.Println(" OK")
	}
	return nil
}

// IsPostgreSQL reports whether db speaks the PostgreSQL dialect.
func IsPostgreSQL(db *bun.DB) bool {
	return db.Dialect().Name() == dialect.PG
}
