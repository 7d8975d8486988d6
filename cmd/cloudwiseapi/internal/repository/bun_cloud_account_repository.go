package repository

import (
	"context"
	"fmt"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/db/models"
	"github.com/uptrace/bun"
)

// BunCloudAccountRepository implements CloudAccountRepository for every provider
// table with one query shape.
type BunCloudAccountRepository struct {
	db bun.IDB
}

func NewBunCloudAccountRepository(db bun.IDB) *BunCloudAccountRepository {
	return &BunCloudAccountRepository{db: db}
}

// FindOwned filters on both the resource id and its owner, so resources of
// other tenants are indistinguishable from missing ones.
func (r *BunCloudAccountRepository) FindOwned(ctx context.Context, provider models.Provider, id, ownerID int64) (models.OwnedResource, error) {
	resource, err := models.NewOwnedResource(provider)
	if err != nil {
		return nil, err
	}

	err = r.db.NewSelect().
		Model(resource).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.user_id = ?", ownerID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, wrap(fmt.Sprintf("find owned %s resource", provider), err)
	}
	return resource, nil
}
