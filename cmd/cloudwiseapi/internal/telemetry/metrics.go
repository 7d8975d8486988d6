package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	AttrHTTPMethod     = "http.method"
	AttrHTTPRoute      = "http.route"
	AttrHTTPStatusCode = "http.status_code"
	AttrDBOperation    = "db.operation"
	AttrAuthMode       = "auth.mode"
	AttrAuthOutcome    = "auth.outcome"
	AttrWebhookOutcome = "webhook.outcome"
)

// All recorders below are safe to call on a nil receiver, which records nothing.

// ServerMetrics holds HTTP server instruments.
type ServerMetrics struct {
	requests    metric.Int64Counter
	duration    metric.Float64Histogram
	connections metric.Int64UpDownCounter
	errors      metric.Int64Counter
}

// NewServerMetrics creates HTTP server instruments on the global meter provider.
func NewServerMetrics() (*ServerMetrics, error) {
	meter := otel.Meter("cloudwiseapi/http")

	requests, err := meter.Int64Counter("http.server.request.count",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000))
	if err != nil {
		return nil, err
	}
	connections, err := meter.Int64UpDownCounter("http.server.active_connections",
		metric.WithDescription("Number of active HTTP connections"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, err
	}
	errorCount, err := meter.Int64Counter("http.server.error.count",
		metric.WithDescription("Total number of HTTP server errors (5xx)"),
		metric.WithUnit("{error}"))
	if err != nil {
		return nil, err
	}

	return &ServerMetrics{requests: requests, duration: duration, connections: connections, errors: errorCount}, nil
}

// RecordRequest records one finished request.
func (m *ServerMetrics) RecordRequest(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPRoute, route),
		attribute.String(AttrHTTPStatusCode, strconv.Itoa(status)),
	)
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	if status >= 500 {
		m.errors.Add(ctx, 1, attrs)
	}
}

// ConnectionOpened increments the active connection gauge.
func (m *ServerMetrics) ConnectionOpened(ctx context.Context) {
	if m != nil {
		m.connections.Add(ctx, 1)
	}
}

// ConnectionClosed decrements the active connection gauge.
func (m *ServerMetrics) ConnectionClosed(ctx context.Context) {
	if m != nil {
		m.connections.Add(ctx, -1)
	}
}

// DatabaseMetrics is a bun query hook recording query counts, latency and errors.
type DatabaseMetrics struct {
	queries  metric.Int64Counter
	duration metric.Float64Histogram
	failures metric.Int64Counter
}

var _ bun.QueryHook = (*DatabaseMetrics)(nil)

// NewDatabaseMetrics creates database instruments. Register the result with db.AddQueryHook.
func NewDatabaseMetrics() (*DatabaseMetrics, error) {
	meter := otel.Meter("cloudwiseapi/database")

	queries, err := meter.Int64Counter("db.query.count",
		metric.WithDescription("Total number of database queries"),
		metric.WithUnit("{query}"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("db.query.duration",
		metric.WithDescription("Database query duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2000))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("db.query.error.count",
		metric.WithDescription("Total number of database query errors"),
		metric.WithUnit("{error}"))
	if err != nil {
		return nil, err
	}

	return &DatabaseMetrics{queries: queries, duration: duration, failures: failures}, nil
}

func (d *DatabaseMetrics) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

// AfterQuery records the finished query. sql.ErrNoRows is not a failure.
func (d *DatabaseMetrics) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if d == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttrDBOperation, event.Operation()))
	d.queries.Add(ctx, 1, attrs)
	d.duration.Record(ctx, float64(time.Since(event.StartTime).Microseconds())/1000, attrs)
	if event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows) {
		d.failures.Add(ctx, 1, attrs)
	}
}

// AuthMetrics holds authentication instruments.
type AuthMetrics struct {
	attempts metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
}

// NewAuthMetrics creates authentication instruments.
func NewAuthMetrics() (*AuthMetrics, error) {
	meter := otel.Meter("cloudwiseapi/auth")

	attempts, err := meter.Int64Counter("auth.attempt.count",
		metric.WithDescription("Total number of authentication attempts"),
		metric.WithUnit("{attempt}"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("auth.failure.count",
		metric.WithDescription("Total number of failed authentication attempts"),
		metric.WithUnit("{failure}"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("auth.duration",
		metric.WithDescription("Token verification and identity resolution duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000))
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{attempts: attempts, failures: failures, duration: duration}, nil
}

// RecordAuth records one authentication attempt. outcome is "ok", "anonymous",
// "invalid_token" or "error".
func (a *AuthMetrics) RecordAuth(ctx context.Context, mode, outcome string, elapsed time.Duration) {
	if a == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrAuthMode, mode),
		attribute.String(AttrAuthOutcome, outcome),
	)
	a.attempts.Add(ctx, 1, attrs)
	a.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	if outcome != "ok" && outcome != "anonymous" {
		a.failures.Add(ctx, 1, attrs)
	}
}

// WebhookMetrics counts webhook verification outcomes.
type WebhookMetrics struct {
	verifications metric.Int64Counter
}

// NewWebhookMetrics creates webhook instruments.
func NewWebhookMetrics() (*WebhookMetrics, error) {
	counter, err := otel.Meter("cloudwiseapi/webhook").Int64Counter("webhook.verification.count",
		metric.WithDescription("Webhook signature verifications by outcome"),
		metric.WithUnit("{verification}"))
	if err != nil {
		return nil, err
	}
	return &WebhookMetrics{verifications: counter}, nil
}

// RecordVerification records one verification outcome ("ok", "missing_signature",
// "mismatch", "replay", ...).
func (w *WebhookMetrics) RecordVerification(ctx context.Context, outcome string) {
	if w == nil {
		return
	}
	w.verifications.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrWebhookOutcome, outcome)))
}
