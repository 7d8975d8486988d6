// Package webhook authenticates payment processor callbacks. A callback is
// accepted only when its Stripe-Signature header carries an HMAC-SHA256 of
// "<t>.<raw body>" under the shared secret, t lies within the tolerance
// window, and the (t, signature) pair has not been seen before.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/apierr"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/ingress"
	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/telemetry"
)

// Client-facing failure messages.
const (
	MsgMissingSignature   = "missing webhook signature header"
	MsgMalformedSignature = "malformed webhook signature header"
	MsgRawBodyMissing     = "webhook raw body not captured"
	MsgSignatureMismatch  = "webhook signature verification failed"
	MsgOutsideTolerance   = "webhook timestamp outside tolerance window"
	MsgReplayed           = "webhook already received"
	MsgInvalidEvent       = "webhook payload is not a valid event"
)

// Options configure a Verifier.
type Options struct {
	Secret    string
	Tolerance time.Duration
	Replay    ReplayGuard
	Metrics   *telemetry.WebhookMetrics
	Logger    log.FieldLogger
}

// Verifier checks callback signatures. It performs no persistence beyond the
// replay guard.
type Verifier struct {
	secret    string
	tolerance time.Duration
	replay    ReplayGuard
	schema    *jsonschema.Schema
	metrics   *telemetry.WebhookMetrics
	logger    log.FieldLogger
	now       func() time.Time
}

// NewVerifier creates a Verifier. A nil Replay guard defaults to an
// in-memory guard remembering keys for twice the tolerance.
func NewVerifier(opts Options) (*Verifier, error) {
	if opts.Secret == "" {
		return nil, errors.New("webhook secret is required")
	}
	if opts.Tolerance <= 0 {
		return nil, errors.New("webhook tolerance must be positive")
	}
	if opts.Replay == nil {
		opts.Replay = NewMemoryReplayGuard(10000, ReplayTTL(opts.Tolerance))
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}

	schema, err := compileEventSchema()
	if err != nil {
		return nil, err
	}

	return &Verifier{
		secret:    opts.Secret,
		tolerance: opts.Tolerance,
		replay:    opts.Replay,
		schema:    schema,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		now:       time.Now,
	}, nil
}

// ReplayTTL is how long a replay guard must remember a key: a timestamp is
// accepted up to tolerance on either side of now.
func ReplayTTL(tolerance time.Duration) time.Duration {
	return 2 * tolerance
}

// Verify authenticates one callback. A nil payload means the raw body was
// not captured.
func (v *Verifier) Verify(ctx context.Context, header string, payload []byte) (*Event, error) {
	ctx, span := telemetry.StartSpan(ctx, "cloudwiseapi/webhook", "webhook.Verify")
	defer span.End()

	event, outcome, err := v.verify(ctx, header, payload)
	v.metrics.RecordVerification(ctx, outcome)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String(telemetry.AttrWebhookEvent, event.Type))
	return event, nil
}

func (v *Verifier) verify(ctx context.Context, header string, payload []byte) (*Event, string, error) {
	if header == "" {
		return nil, "missing_signature", apierr.BadRequest(MsgMissingSignature, nil)
	}
	if payload == nil {
		return nil, "raw_body_missing", apierr.BadRequest(MsgRawBodyMissing, nil)
	}

	signed, err := parseSignatureHeader(header)
	if err != nil {
		return nil, "malformed_signature", apierr.BadRequest(MsgMalformedSignature, err)
	}

	skew := v.now().Sub(signed.timestamp)
	if skew > v.tolerance || skew < -v.tolerance {
		return nil, "outside_tolerance", apierr.BadRequest(MsgOutsideTolerance, fmt.Errorf("skew %s exceeds %s", skew, v.tolerance))
	}

	sig, ok := signed.matchingSignature(computeSignature(v.secret, signed.rawT, payload))
	if !ok {
		return nil, "mismatch", apierr.BadRequest(MsgSignatureMismatch, nil)
	}

	event, err := decodeEvent(v.schema, payload)
	if err != nil {
		return nil, "invalid_event", apierr.BadRequest(MsgInvalidEvent, err)
	}

	first, err := v.replay.Claim(ctx, fmt.Sprintf("%s.%x", signed.rawT, sig))
	if err != nil {
		return nil, "error", apierr.Internal(err)
	}
	if !first {
		return nil, "replay", apierr.BadRequest(MsgReplayed, fmt.Errorf("event %s", event.ID))
	}

	return event, "ok", nil
}

type eventContextKey struct{}

// EventFromContext returns the event verified by Middleware.
func EventFromContext(ctx context.Context) (*Event, bool) {
	event, ok := ctx.Value(eventContextKey{}).(*Event)
	return event, ok && event != nil
}

// Middleware verifies the raw body captured by ingress.CaptureRaw and
// attaches the event to the request context.
func (v *Verifier) Middleware(translator *apierr.Translator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			payload, _ := ingress.RawBody(r.Context())

			event, err := v.Verify(r.Context(), r.Header.Get(SignatureHeader), payload)
			if err != nil {
				translator.Respond(w, r, err)
				return
			}

			v.logger.WithFields(log.Fields{
				"event_id":   event.ID,
				"event_type": event.Type,
			}).Debug("webhook verified")
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), eventContextKey{}, event)))
		})
	}
}
