package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, tr *Translator, h http.Handler) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/aws/accounts/42", nil)
	req.RemoteAddr = "203.0.113.7:51234"
	rec := httptest.NewRecorder()
	tr.Middleware(h).ServeHTTP(rec, req)

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestTranslator_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"authentication", Authentication("invalid or expired token", errors.New("bad sig")), 401, "Unauthorized"},
		{"authorization", Authorization("you do not have access to this resource"), 403, "Forbidden"},
		{"validation", Validation("invalid role", FieldError{Field: "role", Message: "must be one of user, admin"}), 400, "ValidationError"},
		{"not found", NotFound("user not found"), 404, "NotFound"},
		{"bad request", BadRequest("webhook signature mismatch", nil), 400, "BadRequest"},
		{"plain error", errors.New("boom"), 500, "InternalServerError"},
		{"wrapped api error", fmt.Errorf("gate: %w", Authorization("nope")), 403, "Forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := test.NewNullLogger()
			tr := NewTranslator(logger, true)
			rec, body := serve(t, tr, tr.Handle(func(w http.ResponseWriter, r *http.Request) error {
				return tt.err
			}))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantKind, body.Error)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestTranslator_ValidationDetails(t *testing.T) {
	logger, _ := test.NewNullLogger()
	tr := NewTranslator(logger, false)
	_, body := serve(t, tr, tr.Handle(func(w http.ResponseWriter, r *http.Request) error {
		return Validation("invalid role", FieldError{Field: "role", Message: "must be one of user, admin"})
	}))

	require.Len(t, body.Details, 1)
	assert.Equal(t, "role", body.Details[0].Field)
}

func TestTranslator_InternalMessageSuppression(t *testing.T) {
	handler := func(tr *Translator) http.Handler {
		return tr.Handle(func(w http.ResponseWriter, r *http.Request) error {
			return errors.New("pq: connection refused to 10.0.0.5")
		})
	}

	logger, _ := test.NewNullLogger()
	prod := NewTranslator(logger, false)
	_, body := serve(t, prod, handler(prod))
	assert.Equal(t, suppressedMessage, body.Message)

	dev := NewTranslator(logger, true)
	_, body = serve(t, dev, handler(dev))
	assert.Equal(t, "pq: connection refused to 10.0.0.5", body.Message)
}

func TestTranslator_NonInternalMessagesPassThroughInProduction(t *testing.T) {
	logger, _ := test.NewNullLogger()
	tr := NewTranslator(logger, false)
	_, body := serve(t, tr, tr.Handle(func(w http.ResponseWriter, r *http.Request) error {
		return Authorization("insufficient role")
	}))
	assert.Equal(t, "insufficient role", body.Message)
}

func TestTranslator_LogsExactlyOnce(t *testing.T) {
	logger, hook := test.NewNullLogger()
	tr := NewTranslator(logger, false)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		AnnotateIdentity(r.Context(), "7")
		tr.Respond(w, r, Authorization("you do not have access to this resource"))
		// A nested handler reporting the same failure again must be ignored.
		tr.Respond(w, r, Internal(errors.New("second")))
	})
	rec, body := serve(t, tr, h)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden", body.Error)
	require.Len(t, hook.AllEntries(), 1)

	entry := hook.LastEntry()
	assert.Equal(t, log.WarnLevel, entry.Level)
	assert.Equal(t, "GET", entry.Data["method"])
	assert.Equal(t, "/aws/accounts/42", entry.Data["path"])
	assert.Equal(t, "203.0.113.7", entry.Data["ip"])
	assert.Equal(t, "7", entry.Data["identity_id"])
}

func TestTranslator_RecoversPanics(t *testing.T) {
	logger, hook := test.NewNullLogger()
	tr := NewTranslator(logger, false)

	rec, body := serve(t, tr, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil map write")
	}))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "InternalServerError", body.Error)
	assert.Equal(t, suppressedMessage, body.Message)
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, log.ErrorLevel, hook.LastEntry().Level)
}

func TestFrom(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	apiErr := From(cause)
	assert.Equal(t, KindInternal, apiErr.Kind)
	assert.ErrorIs(t, apiErr, cause)

	assert.True(t, IsKind(fmt.Errorf("x: %w", BadRequest("bad", nil)), KindBadRequest))
	assert.False(t, IsKind(nil, KindBadRequest))
}
