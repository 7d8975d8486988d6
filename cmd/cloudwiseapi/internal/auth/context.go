package auth

import (
	"context"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/db/models"
)

type claimsContextKey struct{}
type userContextKey struct{}
type resourceContextKey struct{}

// WithClaims stores verified token claims on the context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext returns the verified claims, if the request carried a valid token.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*Claims)
	return claims, ok && claims != nil
}

// WithUser stores the resolved local user on the context.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext returns the resolved user for authenticated requests.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey{}).(*models.User)
	return user, ok && user != nil
}

// WithResource stores the resource approved by the ownership gate.
func WithResource(ctx context.Context, resource models.OwnedResource) context.Context {
	return context.WithValue(ctx, resourceContextKey{}, resource)
}

// ResourceFromContext returns the resource approved by the ownership gate as T.
func ResourceFromContext[T models.OwnedResource](ctx context.Context) (T, bool) {
	resource, ok := ctx.Value(resourceContextKey{}).(T)
	return resource, ok
}
