package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/db/models"
)

var (
	// ErrNotFound is returned when no row matches a lookup.
	ErrNotFound = errors.New("record not found")

	// ErrUniqueViolation is returned when an insert collides with a unique constraint.
	ErrUniqueViolation = errors.New("unique constraint violation")
)

// UserRepository exposes persistence operations for local identities.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetBySubject(ctx context.Context, subject string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	UpdateRole(ctx context.Context, id int64, role models.Role) error
	List(ctx context.Context, limit, offset int) ([]models.User, error)
}

// CloudAccountRepository looks up provider resources scoped to their owner.
type CloudAccountRepository interface {
	// FindOwned returns the resource of the given provider with id, only if it
	// belongs to ownerID. Resources owned by someone else yield ErrNotFound.
	FindOwned(ctx context.Context, provider models.Provider, id, ownerID int64) (models.OwnedResource, error)
}

// AuditLogRepository appends audit records.
type AuditLogRepository interface {
	Create(ctx context.Context, entry *models.AuditLog) error
	ListByTarget(ctx context.Context, targetType, targetID string) ([]models.AuditLog, error)
}
