// Package users implements administrative user management shared by the
// admin HTTP routes and the CLI.
package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/apierr"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/db/models"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/logging"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/repository"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Service lists users and changes roles. Role changes and their audit
// record are written in one transaction.
type Service struct {
	db     *bun.DB
	users  repository.UserRepository
	logger log.FieldLogger
}

// NewService creates a Service.
func NewService(db *bun.DB, logger log.FieldLogger) *Service {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Service{db: db, users: repository.NewBunUserRepository(db), logger: logger}
}

// List returns one page of users. limit is clamped to [1, MaxPageSize].
func (s *Service) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return users, nil
}

// SetRole changes the role of the user with id. actor identifies who made
// the change in the audit log.
func (s *Service) SetRole(ctx context.Context, actor string, id int64, role models.Role) (*models.User, error) {
	return s.setRole(ctx, actor, role, func(ctx context.Context, users repository.UserRepository) (*models.User, error) {
		return users.GetByID(ctx, id)
	})
}

// SetRoleBySubject changes the role of the user with an identity provider subject.
func (s *Service) SetRoleBySubject(ctx context.Context, actor, subject string, role models.Role) (*models.User, error) {
	return s.setRole(ctx, actor, role, func(ctx context.Context, users repository.UserRepository) (*models.User, error) {
		return users.GetBySubject(ctx, subject)
	})
}

type userLookup func(ctx context.Context, users repository.UserRepository) (*models.User, error)

func (s *Service) setRole(ctx context.Context, actor string, role models.Role, lookup userLookup) (*models.User, error) {
	if !role.Valid() {
		return nil, InvalidRoleError(role)
	}

	var (
		user     *models.User
		previous models.Role
	)
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		users := repository.NewBunUserRepository(tx)
		audit := repository.NewBunAuditLogRepository(tx)

		var err error
		user, err = lookup(ctx, users)
		if err != nil {
			return err
		}
		previous = user.Role
		if previous == role {
			return nil
		}

		if err := users.UpdateRole(ctx, user.ID, role); err != nil {
			return err
		}
		user.Role = role

		return audit.Create(ctx, &models.AuditLog{
			Action:     models.AuditActionUserRoleChanged,
			Actor:      actor,
			TargetType: "user",
			TargetID:   strconv.FormatInt(user.ID, 10),
			Detail:     fmt.Sprintf("%s -> %s", previous, role),
		})
	})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, apierr.NotFound("user not found")
	case err != nil:
		return nil, apierr.Internal(fmt.Errorf("set role: %w", err))
	}

	if previous != role {
		logging.Audit(s.logger, string(models.AuditActionUserRoleChanged)).WithFields(log.Fields{
			"actor":       actor,
			"identity_id": user.ID,
			"from":        previous,
			"to":          role,
		}).Info("role changed")
	}
	return user, nil
}

// InvalidRoleError is the validation failure for an unknown role.
func InvalidRoleError(role models.Role) error {
	names := make([]string, len(models.Roles))
	for i, r := range models.Roles {
		names[i] = string(r)
	}
	return apierr.Validation("invalid role", apierr.FieldError{
		Field:   "role",
		Message: fmt.Sprintf("%q is not one of %s", role, strings.Join(names, ", ")),
	})
}
