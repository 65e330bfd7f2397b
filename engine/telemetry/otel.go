package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// OTelProvider backs Provider with an OpenTelemetry MeterProvider.
type OTelProvider struct {
	mp    *sdkmetric.MeterProvider
	meter metric.Meter
}

// NewOTelProvider returns a zero-config provider; callers that need real
// exporters construct their own *sdkmetric.MeterProvider and wrap it with
// NewOTelProviderFrom instead.
func NewOTelProvider() *OTelProvider {
	mp := sdkmetric.NewMeterProvider()
	return &OTelProvider{mp: mp, meter: mp.Meter("fortitude")}
}

// NewOTelProviderFrom wraps a caller-supplied MeterProvider, e.g. one wired
// to a real exporter.
func NewOTelProviderFrom(mp *sdkmetric.MeterProvider) *OTelProvider {
	return &OTelProvider{mp: mp, meter: mp.Meter("fortitude")}
}

func otelName(c CommonOpts) string {
	name := c.Name
	if c.Subsystem != "" {
		name = c.Subsystem + "." + name
	}
	if c.Namespace != "" {
		name = c.Namespace + "." + name
	}
	return name
}

func (p *OTelProvider) NewCounter(opts CounterOpts) Counter {
	inst, err := p.meter.Float64Counter(otelName(opts.CommonOpts), metric.WithDescription(opts.Help))
	if err != nil {
		return noopCounter{}
	}
	return &otelCounter{c: inst, labelKeys: opts.Labels}
}

func (p *OTelProvider) NewGauge(opts GaugeOpts) Gauge {
	inst, err := p.meter.Float64UpDownCounter(otelName(opts.CommonOpts), metric.WithDescription(opts.Help))
	if err != nil {
		return noopGauge{}
	}
	return &otelGauge{g: inst, labelKeys: opts.Labels}
}

func (p *OTelProvider) NewHistogram(opts HistogramOpts) Histogram {
	hopts := []metric.Float64HistogramOption{metric.WithDescription(opts.Help)}
	if len(opts.Buckets) > 0 {
		hopts = append(hopts, metric.WithExplicitBucketBoundaries(opts.Buckets...))
	}
	inst, err := p.meter.Float64Histogram(otelName(opts.CommonOpts), hopts...)
	if err != nil {
		return noopHistogram{}
	}
	return &otelHistogram{h: inst, labelKeys: opts.Labels}
}

func (p *OTelProvider) Health(ctx context.Context) error {
	return p.mp.ForceFlush(ctx)
}

func attrsFor(keys, values []string) []attribute.KeyValue {
	n := len(keys)
	if len(values) < n {
		n = len(values)
	}
	attrs := make([]attribute.KeyValue, n)
	for i := 0; i < n; i++ {
		attrs[i] = attribute.String(keys[i], values[i])
	}
	return attrs
}

type otelCounter struct {
	c         metric.Float64Counter
	labelKeys []string
}

func (c *otelCounter) Inc(delta float64, labels ...string) {
	c.c.Add(context.Background(), delta, metric.WithAttributes(attrsFor(c.labelKeys, labels)...))
}

type otelGauge struct {
	g         metric.Float64UpDownCounter
	labelKeys []string
}

func (g *otelGauge) Set(value float64, labels ...string) {
	// An UpDownCounter has no native Set; callers relying on absolute gauge
	// semantics should read the value back from their own bookkeeping.
	g.g.Add(context.Background(), value, metric.WithAttributes(attrsFor(g.labelKeys, labels)...))
}

func (g *otelGauge) Add(delta float64, labels ...string) {
	g.g.Add(context.Background(), delta, metric.WithAttributes(attrsFor(g.labelKeys, labels)...))
}

type otelHistogram struct {
	h         metric.Float64Histogram
	labelKeys []string
}

func (h *otelHistogram) Observe(value float64, labels ...string) {
	h.h.Record(context.Background(), value, metric.WithAttributes(attrsFor(h.labelKeys, labels)...))
}
