package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/Sompalkar/CloudWise-sub001/cmd/cloudwiseapi/internal/telemetry"
)

// requestLogger writes one access log line per request and records request
// metrics under the matched route pattern.
func requestLogger(logger log.FieldLogger, metrics *telemetry.ServerMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			elapsed := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			metrics.RecordRequest(r.Context(), r.Method, route, status, elapsed)

			entry := logger.WithFields(log.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"route":       route,
				"status":      status,
				"bytes":       ww.BytesWritten(),
				"duration_ms": float64(elapsed.Microseconds()) / 1000,
				"request_id":  chimiddleware.GetReqID(r.Context()),
			})
			if r.URL.Path == "/health" {
				entry.Debug("request")
				return
			}
			entry.Info("request")
		})
	}
}
