// Package testdb provides migrated in-memory SQLite databases for tests.
package testdb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/db/bunx"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/db/models"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/migrations"
)

// New returns an isolated database with every migration applied. It is closed
// when the test ends.
func New(t testing.TB) *bun.DB {
	t.Helper()
	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", bunx.NewUUIDv7())
	db, err := bunx.NewDB(ctx, dsn, bunx.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })

	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)

	return db
}

// InsertUser stores a user with the given subject and role.
func InsertUser(t testing.TB, db *bun.DB, subject string, role models.Role) *models.User {
	t.Helper()
	now := time.Now().UTC()
	user := &models.User{
		Subject:     subject,
		Role:        role,
		LastLoginAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := db.NewInsert().Model(user).Returning("id").Exec(context.Background())
	require.NoError(t, err)
	return user
}

// InsertResource stores a provider resource; its ID is populated on return.
func InsertResource(t testing.TB, db *bun.DB, resource models.OwnedResource) {
	t.Helper()
	_, err := db.NewInsert().Model(resource).Returning("id").Exec(context.Background())
	require.NoError(t, err)
}
