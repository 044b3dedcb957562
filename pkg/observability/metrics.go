package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal    = "ivtree.http.requests.total"
	metricRequestDuration  = "ivtree.http.request.duration.seconds"
	metricErrorsTotal      = "ivtree.http.errors.total"
	metricInflightRequests = "ivtree.http.inflight.requests"

	attrRoute  = "http.route"
	attrStatus = "http.status_class"

	statusClassServerError = "5xx"
	statusClassClientError = "4xx"
	statusClassOK          = "2xx"
)

// requestBucketBoundaries covers 100us to 5s; interval queries are
// usually sub-millisecond.
var requestBucketBoundaries = []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5}

// REDMetrics holds the Rate, Error, Duration instruments of the HTTP server.
type REDMetrics struct {
	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorsTotal      metric.Int64Counter
	inflightRequests metric.Int64UpDownCounter
}

// NewREDMetrics creates RED metric instruments from the given meter.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	b := newMetricBuilder(mt)

	red := &REDMetrics{
		requestsTotal: b.counter(metricRequestsTotal, "Total number of requests", "{request}"),
		requestDuration: b.histogram(metricRequestDuration, "Request duration in seconds", "s",
			requestBucketBoundaries...),
		errorsTotal:      b.counter(metricErrorsTotal, "Total number of failed requests", "{request}"),
		inflightRequests: b.upDownCounter(metricInflightRequests, "Number of in-flight requests", "{request}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return red, nil
}

// RecordRequest records a completed request.
func (rm *REDMetrics) RecordRequest(ctx context.Context, route string, statusCode int, duration time.Duration) {
	class := statusClass(statusCode)
	attrs := metric.WithAttributes(
		attribute.String(attrRoute, route),
		attribute.String(attrStatus, class),
	)

	rm.requestsTotal.Add(ctx, 1, attrs)
	rm.requestDuration.Record(ctx, duration.Seconds(), attrs)

	if class == statusClassServerError {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrRoute, route)))
	}
}

// TrackInflight increments the in-flight gauge and returns a function to decrement it.
func (rm *REDMetrics) TrackInflight(ctx context.Context, route string) func() {
	attrs := metric.WithAttributes(attribute.String(attrRoute, route))
	rm.inflightRequests.Add(ctx, 1, attrs)

	return func() {
		rm.inflightRequests.Add(ctx, -1, attrs)
	}
}

func statusClass(code int) string {
	switch {
	case code >= httpStatusServerError:
		return statusClassServerError
	case code >= httpStatusClientError:
		return statusClassClientError
	default:
		return statusClassOK
	}
}
