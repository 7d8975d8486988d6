package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/db/models"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/testdb"
)

func TestBunAuditLogRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewBunAuditLogRepository(testdb.New(t))

	first := &models.AuditLog{Action: models.AuditActionUserCreated, Actor: "system", TargetType: "user", TargetID: "7"}
	second := &models.AuditLog{Action: models.AuditActionUserRoleChanged, Actor: "cli", TargetType: "user", TargetID: "7", Detail: "user -> admin"}
	other := &models.AuditLog{Action: models.AuditActionUserCreated, Actor: "system", TargetType: "user", TargetID: "9"}

	for _, entry := range []*models.AuditLog{first, second, other} {
		require.NoError(t, repo.Create(ctx, entry))
		assert.NotEmpty(t, entry.ID)
		assert.False(t, entry.CreatedAt.IsZero())
	}

	entries, err := repo.ListByTarget(ctx, "user", "7")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.AuditActionUserCreated, entries[0].Action)
	assert.Equal(t, "user -> admin", entries[1].Detail)
}
