package middleware

import (
	"fmt"
	"net/http"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/apierr"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/auth"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/db/models"
)

// RoleChecker decides whether a held role satisfies a required one.
type RoleChecker interface {
	Satisfies(have, want models.Role) (bool, error)
}

// RequireRole admits only identities whose role satisfies want. It must be
// mounted after Authenticate; a request without an identity is a 401.
func RequireRole(checker RoleChecker, want models.Role, translator *apierr.Translator) func(http.Handler) http.Handler {
	if !want.Valid() {
		panic(fmt.Sprintf("middleware: RequireRole with unknown role %q", want))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.UserFromContext(r.Context())
			if !ok {
				translator.Respond(w, r, ErrAuthenticationRequired)
				return
			}

			allowed, err := checker.Satisfies(user.Role, want)
			if err != nil {
				translator.Respond(w, r, apierr.Internal(fmt.Errorf("evaluate role %s: %w", want, err)))
				return
			}
			if !allowed {
				translator.Respond(w, r, apierr.Authorization("insufficient role"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
