package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/db/models"
	"github.com/uptrace/bun"
)

// BunUserRepository implements UserRepository using Bun ORM
type BunUserRepository struct {
	db bun.IDB
}

// NewBunUserRepository creates a new Bun-based user repository
func NewBunUserRepository(db bun.IDB) *BunUserRepository {
	return &BunUserRepository{db: db}
}

// Create inserts a user and fills in its generated ID. A second user with the
// same subject fails with ErrUniqueViolation.
func (r *BunUserRepository) Create(ctx context.Context, user *models.User) error {
	_, err := r.db.NewInsert().
		Model(user).
		Returning("id").
		Exec(ctx)
	if err != nil {
		return wrap("create user", err)
	}
	return nil
}

// GetByID retrieves a user by their ID
func (r *BunUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("?TableAlias.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, wrap(fmt.Sprintf("get user %d", id), err)
	}
	return user, nil
}

// GetBySubject retrieves a user by their identity provider subject
func (r *BunUserRepository) GetBySubject(ctx context.Context, subject string) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("?TableAlias.subject = ?", subject).
		Scan(ctx)
	if err != nil {
		return nil, wrap("get user by subject", err)
	}
	return user, nil
}

// UpdateLastLogin sets last_login_at and nothing else.
func (r *BunUserRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("last_login_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return wrap("update last login", err)
	}
	return requireOneRow("update last login", res)
}

// UpdateRole changes a user's role.
func (r *BunUserRepository) UpdateRole(ctx context.Context, id int64, role models.Role) error {
	res, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("role = ?", role).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return wrap("update role", err)
	}
	return requireOneRow("update role", res)
}

// List returns users ordered by ID.
func (r *BunUserRepository) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	var users []models.User
	err := r.db.NewSelect().
		Model(&users).
		OrderExpr("?TableAlias.id ASC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, wrap("list users", err)
	}
	return users, nil
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func requireOneRow(op string, res rowsAffecter) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
