package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/apierr"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/auth"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/db/models"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/ingress"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/middleware"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/services/users"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/webhook"
)

type handlers struct {
	opts RouterOptions
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if h.opts.HealthCheck != nil {
		if err := h.opts.HealthCheck(r.Context()); err != nil {
			h.opts.Logger.WithError(err).Warn("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AuthConfigResponse tells browser clients which identity provider to use.
type AuthConfigResponse struct {
	Issuer     string   `json:"issuer"`
	Audience   string   `json:"audience"`
	JWKSURI    string   `json:"jwks_uri"`
	Algorithms []string `json:"algorithms"`
}

func (h *handlers) authConfig(w http.ResponseWriter, _ *http.Request) {
	cfg := h.opts.Cfg.Auth
	writeJSON(w, http.StatusOK, AuthConfigResponse{
		Issuer:     cfg.Issuer(),
		Audience:   cfg.Audience,
		JWKSURI:    cfg.JWKSURL(),
		Algorithms: []string{"RS256"},
	})
}

// SessionResponse describes the caller on a route that allows anonymous access.
type SessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *models.User `json:"user,omitempty"`
}

func (h *handlers) session(w http.ResponseWriter, r *http.Request) error {
	user, ok := auth.UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, SessionResponse{Authenticated: ok, User: user})
	return nil
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) error {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return middleware.ErrAuthenticationRequired
	}
	writeJSON(w, http.StatusOK, user)
	return nil
}

// UserListResponse is one page of users.
type UserListResponse struct {
	Users  []models.User `json:"users"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

func (h *handlers) listUsers(w http.ResponseWriter, r *http.Request) error {
	limit, limitErr := queryInt(r, "limit", users.DefaultPageSize)
	offset, offsetErr := queryInt(r, "offset", 0)
	var details []apierr.FieldError
	if limitErr != nil {
		details = append(details, apierr.FieldError{Field: "limit", Message: "must be an integer"})
	}
	if offsetErr != nil {
		details = append(details, apierr.FieldError{Field: "offset", Message: "must be an integer"})
	}
	if len(details) > 0 {
		return apierr.Validation("invalid pagination", details...)
	}

	list, err := h.opts.Users.List(r.Context(), limit, offset)
	if err != nil {
		return err
	}
	if list == nil {
		list = []models.User{}
	}
	writeJSON(w, http.StatusOK, UserListResponse{Users: list, Limit: limit, Offset: offset})
	return nil
}

// SetRoleRequest is the body of PATCH /admin/users/{userID}/role.
type SetRoleRequest struct {
	Role models.Role `json:"role"`
}

func (h *handlers) setUserRole(w http.ResponseWriter, r *http.Request) error {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		return apierr.BadRequest("invalid user id", err)
	}

	var req SetRoleRequest
	if err := ingress.DecodeJSON(r, &req); err != nil {
		return err
	}
	if req.Role == "" {
		return apierr.Validation("invalid role", apierr.FieldError{Field: "role", Message: "is required"})
	}

	actor, _ := auth.UserFromContext(r.Context())
	updated, err := h.opts.Users.SetRole(r.Context(), actor.Subject, id, req.Role)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, updated)
	return nil
}

// ownedResource returns the record the ownership gate already loaded.
func (h *handlers) ownedResource(w http.ResponseWriter, r *http.Request) error {
	resource, ok := auth.ResourceFromContext[models.OwnedResource](r.Context())
	if !ok {
		return apierr.Internal(errors.New("ownership gate did not attach a resource"))
	}
	writeJSON(w, http.StatusOK, resource)
	return nil
}

func (h *handlers) upload(w http.ResponseWriter, r *http.Request) error {
	file, err := h.opts.Uploads.Validate(w, r, "file")
	if err != nil {
		return err
	}

	user, _ := auth.UserFromContext(r.Context())
	h.opts.Logger.WithFields(log.Fields{
		"identity_id": user.ID,
		"file":        file.Name,
		"size":        file.Size,
		"mime":        file.MIME,
	}).Info("upload accepted")
	writeJSON(w, http.StatusOK, map[string]any{"file": file})
	return nil
}

func (h *handlers) stripeWebhook(w http.ResponseWriter, r *http.Request) error {
	event, ok := webhook.EventFromContext(r.Context())
	if !ok {
		return apierr.Internal(errors.New("webhook verifier did not attach an event"))
	}

	h.opts.Logger.WithFields(log.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"livemode":   event.Livemode,
	}).Info("webhook received")
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
	return nil
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
