package observability

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/snackhouse/api/internal/platform/observability"

// MetricsMiddleware records per-route request counts and latencies on the
// global meter provider. A no-op provider makes this middleware free.
func MetricsMiddleware() func(http.Handler) http.Handler {
	meter := otel.Meter(meterName)
	requests, _ := meter.Int64Counter("http.server.request.count",
		metric.WithDescription("Completed HTTP requests"))
	duration, _ := meter.Float64Histogram("http.server.request.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("HTTP request duration"))

	return func(next http.Handler) http.Handler {
		if next == nil {
			next = http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recorder := newResponseRecorder(w)
			start := time.Now()

			next.ServeHTTP(recorder, r)

			elapsed := time.Since(start)
			attrs := metric.WithAttributes(
				attribute.String("http.request.method", SanitizeMethod(r.Method)),
				attribute.String("http.route", SanitizeRoute(routePattern(r))),
				attribute.Int("http.response.status_code", recorder.Status()),
			)
			requests.Add(r.Context(), 1, attrs)
			duration.Record(r.Context(), float64(elapsed)/float64(time.Millisecond), attrs)
		})
	}
}
