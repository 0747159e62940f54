package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BusinessMetrics records key lifecycle activity.
type BusinessMetrics interface {
	// RecordOperation counts one use case call, e.g. domain "keys", operation
	// "key_rotate", status "success" or "error".
	RecordOperation(ctx context.Context, domain, operation, status string)

	// RecordDuration observes the call latency in seconds.
	RecordDuration(ctx context.Context, domain, operation string, duration time.Duration, status string)

	// RecordKeyTransitions counts keys that entered status, e.g. "RETIRED" after
	// a rotation or "DESTROYED" after crypto-shredding.
	RecordKeyTransitions(ctx context.Context, status string, count int)
}

type businessMetrics struct {
	operations  metric.Int64Counter
	latency     metric.Float64Histogram
	transitions metric.Int64Counter
}

// NewBusinessMetrics builds the instruments on meterProvider. Instrument names
// carry the namespace prefix, e.g. "tenantkeys_operations_total".
func NewBusinessMetrics(meterProvider metric.MeterProvider, namespace string) (BusinessMetrics, error) {
	meter := meterProvider.Meter(namespace)
	name := func(suffix string) string { return fmt.Sprintf("%s_%s", namespace, suffix) }

	operations, err := meter.Int64Counter(
		name("operations_total"),
		metric.WithDescription("Key lifecycle use case calls"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	latency, err := meter.Float64Histogram(
		name("operation_duration_seconds"),
		metric.WithDescription("Key lifecycle use case latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	transitions, err := meter.Int64Counter(
		name("key_transitions_total"),
		metric.WithDescription("Encryption keys moved into a lifecycle status"),
		metric.WithUnit("{key}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transition counter: %w", err)
	}

	return &businessMetrics{operations: operations, latency: latency, transitions: transitions}, nil
}

func operationAttrs(domain, operation, status string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
}

func (b *businessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	b.operations.Add(ctx, 1, operationAttrs(domain, operation, status))
}

func (b *businessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	b.latency.Record(ctx, duration.Seconds(), operationAttrs(domain, operation, status))
}

func (b *businessMetrics) RecordKeyTransitions(ctx context.Context, status string, count int) {
	if count <= 0 {
		return
	}
	b.transitions.Add(ctx, int64(count), metric.WithAttributes(attribute.String("to_status", status)))
}

// NoOpBusinessMetrics is used when METRICS_ENABLED is false.
type NoOpBusinessMetrics struct{}

func NewNoOpBusinessMetrics() BusinessMetrics {
	return &NoOpBusinessMetrics{}
}

func (n *NoOpBusinessMetrics) RecordOperation(context.Context, string, string, string) {}

func (n *NoOpBusinessMetrics) RecordDuration(context.Context, string, string, time.Duration, string) {}

func (n *NoOpBusinessMetrics) RecordKeyTransitions(context.Context, string, int) {}
