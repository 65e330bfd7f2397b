package telemetry

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	fortitude "github.com/99souls/fortitude"
)

// DefaultSampleCap bounds how many duration samples are retained per
// endpoint for percentile computation, §4.12.
const DefaultSampleCap = 10_000

// EMAFactor is the smoothing factor for the rolling latency average.
const EMAFactor = 0.2

// EndpointSummary is the per-endpoint/tool breakdown in Summary, §4.12.
type EndpointSummary struct {
	Requests   int64
	Successes  int64
	Failures   int64
	EMALatency time.Duration
	P50        time.Duration
	P95        time.Duration
	P99        time.Duration
}

// Summary is the aggregate view returned by Recorder.Summary.
type Summary struct {
	TotalRequests   int64
	TotalSuccesses  int64
	FailuresByKind  map[fortitude.ErrorKind]int64
	ByEndpoint      map[string]EndpointSummary
}

type endpointState struct {
	requests, successes, failures int64
	emaLatency                    time.Duration
	samples                       []time.Duration
}

// Recorder tracks the domain counters named in §4.12 on top of a Provider,
// with a bounded per-endpoint sample window for percentile computation.
type Recorder struct {
	provider Provider
	sampleCap int

	requests Counter
	failures Counter
	latency  Histogram

	mu             sync.Mutex
	byEndpoint     map[string]*endpointState
	failuresByKind map[fortitude.ErrorKind]int64
}

// NewRecorder wires the standard counters/histogram onto provider.
func NewRecorder(provider Provider, sampleCap int) *Recorder {
	if provider == nil {
		provider = NewNoopProvider()
	}
	if sampleCap <= 0 {
		sampleCap = DefaultSampleCap
	}
	return &Recorder{
		provider:  provider,
		sampleCap: sampleCap,
		requests: provider.NewCounter(CounterOpts{CommonOpts{
			Namespace: "fortitude", Name: "requests_total", Help: "requests served", Labels: []string{"endpoint", "outcome"},
		}}),
		failures: provider.NewCounter(CounterOpts{CommonOpts{
			Namespace: "fortitude", Name: "failures_total", Help: "requests failed by kind", Labels: []string{"endpoint", "kind"},
		}}),
		latency: provider.NewHistogram(HistogramOpts{CommonOpts: CommonOpts{
			Namespace: "fortitude", Name: "request_duration_seconds", Help: "request latency", Labels: []string{"endpoint"},
		}}),
		byEndpoint:     make(map[string]*endpointState),
		failuresByKind: make(map[fortitude.ErrorKind]int64),
	}
}

// Record logs one completed operation against endpoint. O(1) amortized:
// the only unbounded-looking step, percentile computation, happens in
// Summary, not here.
func (r *Recorder) Record(endpoint string, d time.Duration, err error) {
	outcome := "success"
	var kind fortitude.ErrorKind
	if err != nil {
		outcome = "failure"
		var fe *fortitude.Error
		if errors.As(err, &fe) {
			kind = fe.Kind
		} else {
			kind = fortitude.ErrQueryFailed
		}
	}
	r.requests.Inc(1, endpoint, outcome)
	if err != nil {
		r.failures.Inc(1, endpoint, string(kind))
	}
	r.latency.Observe(d.Seconds(), endpoint)

	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.byEndpoint[endpoint]
	if !ok {
		st = &endpointState{}
		r.byEndpoint[endpoint] = st
	}
	st.requests++
	if err != nil {
		st.failures++
		r.failuresByKind[kind]++
	} else {
		st.successes++
	}
	if st.emaLatency == 0 {
		st.emaLatency = d
	} else {
		st.emaLatency = time.Duration(EMAFactor*float64(d) + (1-EMAFactor)*float64(st.emaLatency))
	}
	st.samples = append(st.samples, d)
	if len(st.samples) > r.sampleCap {
		st.samples = st.samples[len(st.samples)-r.sampleCap:]
	}
}

// Summary computes the aggregate + per-endpoint view. Percentile
// computation sorts at most sampleCap samples per endpoint, bounding the
// work regardless of total recorded volume, §4.12.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := Summary{
		FailuresByKind: make(map[fortitude.ErrorKind]int64, len(r.failuresByKind)),
		ByEndpoint:     make(map[string]EndpointSummary, len(r.byEndpoint)),
	}
	for k, v := range r.failuresByKind {
		out.FailuresByKind[k] = v
	}
	for name, st := range r.byEndpoint {
		out.TotalRequests += st.requests
		out.TotalSuccesses += st.successes

		sorted := append([]time.Duration(nil), st.samples...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		out.ByEndpoint[name] = EndpointSummary{
			Requests:   st.requests,
			Successes:  st.successes,
			Failures:   st.failures,
			EMALatency: st.emaLatency,
			P50:        percentile(sorted, 0.50),
			P95:        percentile(sorted, 0.95),
			P99:        percentile(sorted, 0.99),
		}
	}
	return out
}

// Health delegates to the underlying provider, so callers holding only a
// Recorder can still probe exporter connectivity.
func (r *Recorder) Health(ctx context.Context) error {
	return r.provider.Health(ctx)
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
