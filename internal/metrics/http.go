package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// latencyBuckets in seconds. Encrypt and decrypt normally finish in a few
// milliseconds; rotations and audit verification can take seconds.
var latencyBuckets = []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

type httpMetrics struct {
	requests    metric.Int64Counter
	rateLimited metric.Int64Counter
	inFlight    metric.Int64UpDownCounter
	duration    metric.Float64Histogram
}

func newHTTPMetrics(meter metric.Meter, namespace string) (*httpMetrics, error) {
	m := &httpMetrics{}
	var errs [4]error

	m.requests, errs[0] = meter.Int64Counter(namespace+"_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"))
	m.rateLimited, errs[1] = meter.Int64Counter(namespace+"_http_rate_limited_total",
		metric.WithDescription("HTTP requests rejected by the per-site rate limiter"),
		metric.WithUnit("{request}"))
	m.inFlight, errs[2] = meter.Int64UpDownCounter(namespace+"_http_requests_in_flight",
		metric.WithDescription("HTTP requests currently being served"),
		metric.WithUnit("{request}"))
	m.duration, errs[3] = meter.Float64Histogram(namespace+"_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...))

	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}
	return m, nil
}

// HTTPMetricsMiddleware records request counts and latencies labelled by
// method, route pattern and status code. Routes are reported as registered
// (e.g. /v1/encryption/keys/:id) so key ids never become label values.
func HTTPMetricsMiddleware(meterProvider metric.MeterProvider, namespace string) gin.HandlerFunc {
	m, err := newHTTPMetrics(meterProvider.Meter(namespace), namespace)
	if err != nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		method := attribute.String("method", c.Request.Method)

		m.inFlight.Add(ctx, 1, metric.WithAttributes(method))
		start := time.Now()

		c.Next()

		elapsed := time.Since(start).Seconds()
		m.inFlight.Add(ctx, -1, metric.WithAttributes(method))

		path := attribute.String("path", sanitizePath(c.FullPath()))
		status := c.Writer.Status()
		attrs := metric.WithAttributes(method, path, attribute.String("status_code", strconv.Itoa(status)))

		m.requests.Add(ctx, 1, attrs)
		m.duration.Record(ctx, elapsed, attrs)
		if status == http.StatusTooManyRequests {
			m.rateLimited.Add(ctx, 1, metric.WithAttributes(path))
		}
	}
}

// sanitizePath returns "unknown" for unmatched routes.
func sanitizePath(fullPath string) string {
	if fullPath == "" {
		return "unknown"
	}
	return fullPath
}
