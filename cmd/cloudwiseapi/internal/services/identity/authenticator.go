package identity

import (
	"context"
	"net/http"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/apierr"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/auth"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/db/models"
)

// UserResolver maps verified claims to a local user.
type UserResolver interface {
	Resolve(ctx context.Context, claims *auth.Claims) (*models.User, error)
}

// Principal is the outcome of a successful authentication.
type Principal struct {
	Claims *auth.Claims
	User   *models.User
}

// Authenticator verifies the request's bearer token and resolves its identity.
type Authenticator struct {
	verifier auth.TokenVerifier
	resolver UserResolver
}

// NewAuthenticator wires a token verifier to an identity resolver.
func NewAuthenticator(verifier auth.TokenVerifier, resolver UserResolver) *Authenticator {
	return &Authenticator{verifier: verifier, resolver: resolver}
}

// Authenticate returns (nil, nil) when the request carries no credential, so
// the caller decides whether anonymous access is allowed. A credential that is
// present but malformed, invalid or expired is always an authentication error.
func (a *Authenticator) Authenticate(r *http.Request) (*Principal, error) {
	token, present, err := auth.BearerToken(r)
	if !present {
		return nil, nil
	}
	if err != nil {
		return nil, apierr.Authentication("missing or malformed bearer token", err)
	}

	claims, err := a.verifier.Verify(r.Context(), token)
	if err != nil {
		return nil, err
	}

	user, err := a.resolver.Resolve(r.Context(), claims)
	if err != nil {
		return nil, err
	}
	return &Principal{Claims: claims, User: user}, nil
}
