package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics holds the pipeline's instruments. A nil *Metrics records nothing.
type Metrics struct {
	generations  metric.Int64Counter
	latency      metric.Float64Histogram
	tierServed   metric.Int64Counter
	fallthroughs metric.Int64Counter
	avatars      metric.Int64Counter
	quotaDenied  metric.Int64Counter
}

// NewMetrics creates every instrument on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var err error

	if m.generations, err = meter.Int64Counter("botnet.generation.requests",
		metric.WithDescription("Generation attempts by backend and outcome")); err != nil {
		return nil, err
	}
	if m.latency, err = meter.Float64Histogram("botnet.generation.latency",
		metric.WithDescription("Backend call latency"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.tierServed, err = meter.Int64Counter("botnet.tier.served",
		metric.WithDescription("Requests answered per degradation tier")); err != nil {
		return nil, err
	}
	if m.fallthroughs, err = meter.Int64Counter("botnet.tier.fallthrough",
		metric.WithDescription("Dependency failures that moved a request to a poorer tier")); err != nil {
		return nil, err
	}
	if m.avatars, err = meter.Int64Counter("botnet.avatar.resolved",
		metric.WithDescription("Avatar resolutions by serving provider")); err != nil {
		return nil, err
	}
	if m.quotaDenied, err = meter.Int64Counter("botnet.quota.denied",
		metric.WithDescription("Generation attempts denied for lack of credits")); err != nil {
		return nil, err
	}
	return &m, nil
}

// NoopMetrics returns instruments that discard everything
func NoopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter("noop"))
	return m
}

// Generation records one backend call
func (m *Metrics) Generation(ctx context.Context, backend, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("backend", backend), attribute.String("outcome", outcome))
	m.generations.Add(ctx, 1, attrs)
	m.latency.Record(ctx, took.Seconds(), metric.WithAttributes(attribute.String("backend", backend)))
}

// TierServed records which tier answered op
func (m *Metrics) TierServed(ctx context.Context, tier, op string) {
	if m == nil {
		return
	}
	m.tierServed.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier), attribute.String("op", op)))
}

// Fallthrough records a dependency failure on tier
func (m *Metrics) Fallthrough(ctx context.Context, tier, op string) {
	if m == nil {
		return
	}
	m.fallthroughs.Add(ctx, 1, metric.WithAttributes(attribute.String("tier", tier), attribute.String("op", op)))
}

// AvatarResolved records the provider that served an avatar
func (m *Metrics) AvatarResolved(ctx context.Context, provider string) {
	if m == nil {
		return
	}
	m.avatars.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider)))
}

// QuotaDenied records a denied TryConsume
func (m *Metrics) QuotaDenied(ctx context.Context) {
	if m == nil {
		return
	}
	m.quotaDenied.Add(ctx, 1)
}
