// Package middleware holds the per-route gates of the protected request chain:
//
//	Authenticate → [RequireRole] → [RequireOwnership] → handler
//
// Every gate reports failures through the apierr.Translator and never retries.
package middleware

import (
	"net/http"
	"time"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/apierr"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/auth"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/services/identity"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/telemetry"
)

// CredentialPolicy states whether a route admits requests without a credential.
type CredentialPolicy int

const (
	// Required rejects requests without a bearer token.
	Required CredentialPolicy = iota
	// Optional lets anonymous requests through with no identity on the context.
	Optional
)

func (p CredentialPolicy) String() string {
	if p == Optional {
		return "optional"
	}
	return "required"
}

// ErrAuthenticationRequired is reported when a route needs an identity and none was sent.
var ErrAuthenticationRequired = apierr.Authentication("authentication required", nil)

// Authenticator turns a request into a Principal, or (nil, nil) when no
// credential is present.
type Authenticator interface {
	Authenticate(r *http.Request) (*identity.Principal, error)
}

// Authenticate verifies the bearer token, resolves the local identity and
// stores both on the request context. A credential that is present but
// invalid is rejected under either policy.
func Authenticate(authn Authenticator, policy CredentialPolicy, translator *apierr.Translator, metrics *telemetry.AuthMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()

			principal, err := authn.Authenticate(r)
			if err != nil {
				outcome := "error"
				if apierr.IsKind(err, apierr.KindAuthentication) {
					outcome = "invalid_token"
				}
				metrics.RecordAuth(ctx, policy.String(), outcome, time.Since(start))
				translator.Respond(w, r, err)
				return
			}

			if principal == nil {
				metrics.RecordAuth(ctx, policy.String(), "anonymous", time.Since(start))
				if policy == Required {
					translator.Respond(w, r, ErrAuthenticationRequired)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			metrics.RecordAuth(ctx, policy.String(), "ok", time.Since(start))
			apierr.AnnotateIdentity(ctx, principal.User.IDString())
			ctx = auth.WithClaims(ctx, principal.Claims)
			ctx = auth.WithUser(ctx, principal.User)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
