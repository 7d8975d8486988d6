// Package ingress owns request body handling. Routes are split into two
// ingress paths: the generic JSON parser, and raw capture for routes whose
// bytes must reach the handler untouched (signed webhooks). A path marked raw
// is never read by the JSON parser, whatever order middleware is mounted in.
package ingress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/apierr"
)

type parsedBodyKey struct{}
type rawBodyKey struct{}

// Ingress routes request bodies to the JSON parser or to raw capture.
type Ingress struct {
	maxJSONBytes int64
	translator   *apierr.Translator

	mu          sync.RWMutex
	rawPrefixes []string
}

// New creates an Ingress whose JSON parser accepts bodies up to maxJSONBytes.
func New(maxJSONBytes int64, translator *apierr.Translator) *Ingress {
	return &Ingress{maxJSONBytes: maxJSONBytes, translator: translator}
}

// MarkRaw excludes every path starting with prefix from JSON parsing.
func (in *Ingress) MarkRaw(prefix string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.rawPrefixes = append(in.rawPrefixes, prefix)
}

// IsRaw reports whether path belongs to a raw ingress route.
func (in *Ingress) IsRaw(path string) bool {
	in.mu.RLock()
	defer in.mu.RUnlock()
	for _, prefix := range in.rawPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// ParseJSON reads and validates JSON request bodies on every non-raw route.
// The validated document is available through DecodeJSON; the original body
// is consumed.
func (in *Ingress) ParseJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if in.IsRaw(r.URL.Path) || !hasBody(r) || !isJSON(r.Header.Get("Content-Type")) {
			next.ServeHTTP(w, r)
			return
		}

		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, in.maxJSONBytes))
		if err != nil {
			in.translator.Respond(w, r, bodyReadError(err))
			return
		}
		if !json.Valid(data) {
			in.translator.Respond(w, r, apierr.BadRequest("malformed JSON body", nil))
			return
		}

		ctx := context.WithValue(r.Context(), parsedBodyKey{}, json.RawMessage(data))
		r = r.WithContext(ctx)
		r.Body = http.NoBody
		next.ServeHTTP(w, r)
	})
}

// CaptureRaw stores up to maxBytes of the unmodified request body for
// RawBody. When a parser already consumed the body nothing is captured, and
// downstream verification reports the missing raw body.
func (in *Ingress) CaptureRaw(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, parsed := r.Context().Value(parsedBodyKey{}).(json.RawMessage); parsed {
				next.ServeHTTP(w, r)
				return
			}

			data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
			if err != nil {
				in.translator.Respond(w, r, bodyReadError(err))
				return
			}

			r = r.WithContext(context.WithValue(r.Context(), rawBodyKey{}, data))
			r.Body = io.NopCloser(bytes.NewReader(data))
			next.ServeHTTP(w, r)
		})
	}
}

// RawBody returns the bytes captured by CaptureRaw.
func RawBody(ctx context.Context) ([]byte, bool) {
	data, ok := ctx.Value(rawBodyKey{}).([]byte)
	return data, ok
}

// DecodeJSON unmarshals the body validated by ParseJSON into v. Unknown
// fields are rejected.
func DecodeJSON(r *http.Request, v any) error {
	data, ok := r.Context().Value(parsedBodyKey{}).(json.RawMessage)
	if !ok {
		return apierr.BadRequest("request body must be JSON", nil)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apierr.BadRequest("malformed JSON body", err)
	}
	return nil
}

func hasBody(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return r.Body != nil && r.Body != http.NoBody
	}
	return false
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

func bodyReadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apierr.BadRequest(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), err)
	}
	return apierr.BadRequest("could not read request body", err)
}
