package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/apierr"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/config"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/db/models"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/ingress"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/middleware"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/repository"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/telemetry"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/upload"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/webhook"
)

// WebhookPrefix is the raw ingress path: bodies under it are never parsed as JSON.
const WebhookPrefix = "/webhooks/"

// UserAdmin is the user management used by the admin routes.
type UserAdmin interface {
	List(ctx context.Context, limit, offset int) ([]models.User, error)
	SetRole(ctx context.Context, actor string, id int64, role models.Role) (*models.User, error)
}

// RouterOptions carries every collaborator the routes need. Metrics fields may be nil.
type RouterOptions struct {
	Cfg           *config.Config
	Logger        log.FieldLogger
	Translator    *apierr.Translator
	Ingress       *ingress.Ingress
	Authenticator middleware.Authenticator
	Roles         middleware.RoleChecker
	Users         UserAdmin
	CloudAccounts repository.CloudAccountRepository
	Uploads       *upload.Validator
	Webhooks      *webhook.Verifier
	ServerMetrics *telemetry.ServerMetrics
	AuthMetrics   *telemetry.AuthMetrics
	CORSOptions   *cors.Options
	HealthCheck   func(ctx context.Context) error
}

// DefaultCORSOptions returns the browser policy for the configured origins.
func DefaultCORSOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

// ownedResourceRoutes mounts one ownership-gated GET per provider.
var ownedResourceRoutes = []struct {
	provider models.Provider
	pattern  string
	param    string
}{
	{models.ProviderAWS, "/aws/accounts/{accountID}", "accountID"},
	{models.ProviderGCP, "/gcp/projects/{projectID}", "projectID"},
	{models.ProviderAzure, "/azure/subscriptions/{subscriptionID}", "subscriptionID"},
}

// NewRouter assembles the API. Each route group states its credential policy
// explicitly; see middleware.CredentialPolicy.
func NewRouter(opts RouterOptions) chi.Router {
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	tr := opts.Translator
	h := &handlers{opts: opts}

	corsCfg := DefaultCORSOptions(opts.Cfg.CORSAllowedOrigins)
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}

	opts.Ingress.MarkRaw(WebhookPrefix)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(opts.Logger, opts.ServerMetrics))
	r.Use(tr.Middleware)
	r.Use(cors.Handler(corsCfg))
	r.Use(opts.Ingress.ParseJSON)

	// Public.
	r.Get("/health", h.health)
	r.Get("/auth/config", h.authConfig)

	// Anonymous callers allowed.
	r.With(middleware.Authenticate(opts.Authenticator, middleware.Optional, tr, opts.AuthMetrics)).
		Get("/session", tr.Handle(h.session))

	// Identity required.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(opts.Authenticator, middleware.Required, tr, opts.AuthMetrics))

		r.Get("/me", tr.Handle(h.me))
		r.Post("/uploads", tr.Handle(h.upload))

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(opts.Roles, models.RoleAdmin, tr))
			r.Get("/users", tr.Handle(h.listUsers))
			r.Patch("/users/{userID}/role", tr.Handle(h.setUserRole))
		})

		for _, route := range ownedResourceRoutes {
			r.With(middleware.RequireOwnership(route.provider, opts.CloudAccounts, route.param, opts.Cfg.DBTimeout, tr)).
				Get(route.pattern, tr.Handle(h.ownedResource))
		}
	})

	// Signed by the payment processor; never authenticated.
	r.Route("/webhooks", func(r chi.Router) {
		r.Use(opts.Ingress.CaptureRaw(opts.Cfg.Webhook.MaxBodyBytes))
		r.Use(opts.Webhooks.Middleware(tr))
		r.Post("/stripe", tr.Handle(h.stripeWebhook))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		tr.Respond(w, r, apierr.NotFound("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		tr.Respond(w, r, apierr.BadRequest("method not allowed", nil))
	})

	return r
}

// NewH2CHandler wraps the router with an h2c server so HTTP/2 clients can
// connect over cleartext behind a TLS-terminating proxy.
func NewH2CHandler(opts RouterOptions) http.Handler {
	return h2c.NewHandler(NewRouter(opts), &http2.Server{})
}
