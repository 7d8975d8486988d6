package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/apierr"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/auth"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/db/models"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/repository"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/telemetry"
)

// ErrNotOwner is returned for resources that are absent or owned by someone
// else. The two cases are deliberately indistinguishable.
var ErrNotOwner = apierr.Authorization("you do not have access to this resource")

// RequireOwnership loads the provider resource named by the urlParam path
// parameter, scoped to the authenticated identity, and stores it on the
// context for the handler (see auth.ResourceFromContext).
//
// An unknown provider panics here, when routes are built, rather than per request.
func RequireOwnership(provider models.Provider, repo repository.CloudAccountRepository, urlParam string, timeout time.Duration, translator *apierr.Translator) func(http.Handler) http.Handler {
	if _, err := models.NewOwnedResource(provider); err != nil {
		panic(fmt.Sprintf("middleware: RequireOwnership: %v", err))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok {
				translator.Respond(w, r, ErrAuthenticationRequired)
				return
			}

			raw := chi.URLParam(r, urlParam)
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				translator.Respond(w, r, apierr.BadRequest("invalid resource id", fmt.Errorf("%s=%q", urlParam, raw)))
				return
			}

			resource, err := findOwned(r.Context(), repo, provider, id, user.ID, timeout)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				translator.Respond(w, r, ErrNotOwner)
				return
			case err != nil:
				translator.Respond(w, r, apierr.Internal(fmt.Errorf("load %s resource %d: %w", provider, id, err)))
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithResource(r.Context(), resource)))
		})
	}
}

func findOwned(ctx context.Context, repo repository.CloudAccountRepository, provider models.Provider, id, ownerID int64, timeout time.Duration) (models.OwnedResource, error) {
	ctx, span := telemetry.StartSpan(ctx, "cloudwiseapi/middleware", "ownership.FindOwned",
		attribute.String(telemetry.AttrResourceKind, string(provider)),
		attribute.Int64(telemetry.AttrIdentityID, ownerID),
	)
	defer span.End()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resource, err := repo.FindOwned(ctx, provider, id, ownerID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		telemetry.RecordError(span, err)
	}
	return resource, err
}
