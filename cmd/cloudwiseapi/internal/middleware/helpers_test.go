package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/apierr"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/auth"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/db/models"
)

func newTestTranslator() (*apierr.Translator, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return apierr.NewTranslator(logger, false), hook
}

// asUser simulates a preceding Authenticate.
func asUser(user *models.User) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
		})
	}
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apierr.Response {
	t.Helper()
	var body apierr.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}
