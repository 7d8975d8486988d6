// Package identity maps verified token claims onto local user records.
//
// The first request from a subject provisions a user with the "user" role and
// empty-string defaults for absent profile claims. Later requests only move
// last_login_at forward; profile drift at the identity provider is not synced.
//
// Request Flow:
//
//	Authorization header → Authenticator.Authenticate() → Verifier (claims)
//	       ↓
//	   Resolver.Resolve(claims) → lookup → touch | create (→ lookup on lost race)
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/apierr"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/auth"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/db/models"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/logging"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/repository"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/telemetry"
)

const tracerName = "cloudwiseapi/identity"

// A lookup, a create that loses the uniqueness race, then a second lookup.
const maxResolveAttempts = 2

// Resolver finds or provisions the local user for a token subject.
type Resolver struct {
	users   repository.UserRepository
	logger  log.FieldLogger
	timeout time.Duration
	now     func() time.Time
}

// NewResolver creates a Resolver. timeout bounds the database work of one
// resolution; zero means no bound beyond the request itself.
func NewResolver(users repository.UserRepository, logger log.FieldLogger, timeout time.Duration) *Resolver {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Resolver{
		users:   users,
		logger:  logger,
		timeout: timeout,
		now:     time.Now,
	}
}

// Resolve returns the user for claims.Subject, creating it on first sight.
// Any persistence failure, including a timeout, is an internal error.
func (r *Resolver) Resolve(ctx context.Context, claims *auth.Claims) (*models.User, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "identity.Resolve",
		attribute.String(telemetry.AttrIdentitySubject, claims.Subject),
	)
	defer span.End()

	// Provisioning is not abandoned halfway when the client hangs up.
	ctx = context.WithoutCancel(ctx)
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	user, err := r.resolve(ctx, claims)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, apierr.Internal(fmt.Errorf("resolve identity: %w", err))
	}

	span.SetAttributes(attribute.Int64(telemetry.AttrIdentityID, user.ID))
	return user, nil
}

func (r *Resolver) resolve(ctx context.Context, claims *auth.Claims) (*models.User, error) {
	for attempt := 0; attempt < maxResolveAttempts; attempt++ {
		user, err := r.users.GetBySubject(ctx, claims.Subject)
		if err == nil {
			return r.touch(ctx, user)
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}

		user, err = r.create(ctx, claims)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, repository.ErrUniqueViolation) {
			return nil, err
		}
		r.logger.WithField("subject", claims.Subject).Debug("concurrent first login, re-reading identity")
	}
	return nil, fmt.Errorf("identity %q still missing after unique violation", claims.Subject)
}

// touch records the login. Profile fields are left as they were at creation.
func (r *Resolver) touch(ctx context.Context, user *models.User) (*models.User, error) {
	now := r.now().UTC()
	if err := r.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, err
	}
	user.LastLoginAt = now
	return user, nil
}

func (r *Resolver) create(ctx context.Context, claims *auth.Claims) (*models.User, error) {
	now := r.now().UTC()
	user := &models.User{
		Subject:     claims.Subject,
		Email:       claims.Email,
		GivenName:   claims.GivenName,
		FamilyName:  claims.FamilyName,
		Picture:     claims.Picture,
		Role:        models.RoleUser,
		LastLoginAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.users.Create(ctx, user); err != nil {
		return nil, err
	}

	logging.Audit(r.logger, string(models.AuditActionUserCreated)).WithFields(log.Fields{
		"subject":     user.Subject,
		"identity_id": user.ID,
		"email":       user.Email,
	}).Info("identity provisioned")
	return user, nil
}
