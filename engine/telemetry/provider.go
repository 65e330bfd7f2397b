// Package telemetry implements Monitoring (C12): a dual-backed
// Counter/Gauge/Histogram provider abstraction adapted from the teacher's
// engine/telemetry/metrics Provider interface, plus a Recorder that tracks
// the domain-specific counters named in §4.12 (requests served, successes,
// failures by kind, EMA latency, per-endpoint/tool breakdowns) within a
// bounded sample budget.
package telemetry

import "context"

// Counter is a monotonically increasing value.
type Counter interface {
	Inc(delta float64, labels ...string)
}

// Gauge is a value that can move in either direction.
type Gauge interface {
	Set(value float64, labels ...string)
	Add(delta float64, labels ...string)
}

// Histogram records observations for later percentile/summary computation.
type Histogram interface {
	Observe(value float64, labels ...string)
}

// CommonOpts is embedded into every metric's options struct.
type CommonOpts struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string
	Labels    []string
}

type CounterOpts struct{ CommonOpts }
type GaugeOpts struct{ CommonOpts }
type HistogramOpts struct {
	CommonOpts
	Buckets []float64
}

// Provider is the top-level metrics backend abstraction; Prometheus, OTel,
// and noop implementations satisfy it identically.
type Provider interface {
	NewCounter(opts CounterOpts) Counter
	NewGauge(opts GaugeOpts) Gauge
	NewHistogram(opts HistogramOpts) Histogram
	Health(ctx context.Context) error
}

type noopProvider struct{}

// NewNoopProvider returns a Provider that silently discards every metric,
// the fallback when no backend is configured.
func NewNoopProvider() Provider { return noopProvider{} }

func (noopProvider) NewCounter(CounterOpts) Counter     { return noopCounter{} }
func (noopProvider) NewGauge(GaugeOpts) Gauge           { return noopGauge{} }
func (noopProvider) NewHistogram(HistogramOpts) Histogram { return noopHistogram{} }
func (noopProvider) Health(context.Context) error       { return nil }

type noopCounter struct{}
type noopGauge struct{}
type noopHistogram struct{}

func (noopCounter) Inc(float64, ...string)       {}
func (noopGauge) Set(float64, ...string)         {}
func (noopGauge) Add(float64, ...string)         {}
func (noopHistogram) Observe(float64, ...string) {}
