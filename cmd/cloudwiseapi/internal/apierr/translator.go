package apierr

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

const suppressedMessage = "an unexpected error occurred"

// Response is the body written for every rejected request.
type Response struct {
	Error   string       `json:"error"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

// HandlerFunc is an http handler that reports failures by returning them.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

type requestState struct {
	reported   atomic.Bool
	identityID atomic.Value // string
}

type requestStateKey struct{}

// AnnotateIdentity records the resolved identity on the request so that a later
// failure, including a recovered panic, is logged with it.
func AnnotateIdentity(ctx context.Context, identityID string) {
	if state, ok := ctx.Value(requestStateKey{}).(*requestState); ok {
		state.identityID.Store(identityID)
	}
}

// Translator is the single point where failures are logged and rendered.
type Translator struct {
	logger      log.FieldLogger
	development bool
}

// NewTranslator creates a Translator. In development, internal messages are
// returned verbatim; otherwise they are replaced with a generic phrase.
func NewTranslator(logger log.FieldLogger, development bool) *Translator {
	return &Translator{logger: logger, development: development}
}

// Middleware installs per-request reporting state and converts panics into
// internal errors. It must wrap every route whose errors go through Respond.
func (t *Translator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := &requestState{}
		r = r.WithContext(context.WithValue(r.Context(), requestStateKey{}, state))

		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				t.Respond(w, r, Internal(fmt.Errorf("panic: %v", rec)))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// Handle adapts an error-returning handler.
func (t *Translator) Handle(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			t.Respond(w, r, err)
		}
	}
}

// Respond logs err and writes the error response. Only the first call per
// request has any effect.
func (t *Translator) Respond(w http.ResponseWriter, r *http.Request, err error) {
	state, _ := r.Context().Value(requestStateKey{}).(*requestState)
	if state != nil && !state.reported.CompareAndSwap(false, true) {
		return
	}

	apiErr := From(err)
	t.log(r, state, apiErr)

	body := Response{
		Error:   string(apiErr.Kind),
		Message: apiErr.Message,
		Details: apiErr.Details,
	}
	if apiErr.Kind == KindInternal && !t.development {
		body.Message = suppressedMessage
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status())
	_ = json.NewEncoder(w).Encode(body)
}

func (t *Translator) log(r *http.Request, state *requestState, apiErr *Error) {
	fields := log.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
		"ip":     clientIP(r),
		"kind":   string(apiErr.Kind),
		"status": apiErr.Status(),
	}
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		fields["request_id"] = reqID
	}
	if state != nil {
		if id, ok := state.identityID.Load().(string); ok && id != "" {
			fields["identity_id"] = id
		}
	}

	entry := t.logger.WithFields(fields).WithError(apiErr)
	if apiErr.Status() >= http.StatusInternalServerError {
		entry.Error("request failed")
		return
	}
	entry.Warn("request rejected")
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
