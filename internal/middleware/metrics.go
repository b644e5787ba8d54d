package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"limit-offer-api/internal/metrics"
)

// MetricsMiddleware records per-route request durations and a success/error
// counter. The chi route pattern is used as the label so path parameters do
// not explode the cardinality.
func MetricsMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}

			m.RecordRequestDuration(route, time.Since(start))
			if rw.statusCode >= 400 {
				m.IncrRequest("error")
			} else {
				m.IncrRequest("success")
			}
		})
	}
}
