package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	fortitude "github.com/99souls/fortitude"
)

func TestRecorder_TracksSuccessAndFailureCounts(t *testing.T) {
	r := NewRecorder(NewNoopProvider(), 0)

	r.Record("search", 10*time.Millisecond, nil)
	r.Record("search", 20*time.Millisecond, nil)
	r.Record("search", 30*time.Millisecond, fortitude.New(fortitude.ErrTimeout, "timed out"))

	s := r.Summary()
	assert.Equal(t, int64(3), s.TotalRequests)
	assert.Equal(t, int64(2), s.TotalSuccesses)
	assert.Equal(t, int64(1), s.FailuresByKind[fortitude.ErrTimeout])

	ep := s.ByEndpoint["search"]
	assert.Equal(t, int64(3), ep.Requests)
	assert.Equal(t, int64(2), ep.Successes)
	assert.Equal(t, int64(1), ep.Failures)
}

func TestRecorder_UnwrappedErrorFallsBackToQueryFailed(t *testing.T) {
	r := NewRecorder(NewNoopProvider(), 0)
	r.Record("x", time.Millisecond, assert.AnError)

	s := r.Summary()
	assert.Equal(t, int64(1), s.FailuresByKind[fortitude.ErrQueryFailed])
}

func TestRecorder_PercentilesReflectRecordedSamples(t *testing.T) {
	r := NewRecorder(NewNoopProvider(), 0)
	for i := 1; i <= 100; i++ {
		r.Record("ep", time.Duration(i)*time.Millisecond, nil)
	}

	ep := r.Summary().ByEndpoint["ep"]
	assert.InDelta(t, 50*time.Millisecond, ep.P50, float64(5*time.Millisecond))
	assert.InDelta(t, 95*time.Millisecond, ep.P95, float64(5*time.Millisecond))
	assert.True(t, ep.P99 >= ep.P95)
}

func TestRecorder_SampleWindowIsBoundedByCap(t *testing.T) {
	r := NewRecorder(NewNoopProvider(), 5)
	for i := 1; i <= 50; i++ {
		r.Record("ep", time.Duration(i)*time.Millisecond, nil)
	}

	st := r.byEndpoint["ep"]
	assert.Len(t, st.samples, 5, "samples slice should be capped regardless of total recorded volume")
	// the retained samples should be the most recent ones
	assert.Equal(t, 50*time.Millisecond, st.samples[len(st.samples)-1])
}

func TestRecorder_EMALatencySmoothsTowardRecentValues(t *testing.T) {
	r := NewRecorder(NewNoopProvider(), 0)
	r.Record("ep", 100*time.Millisecond, nil)
	first := r.byEndpoint["ep"].emaLatency
	assert.Equal(t, 100*time.Millisecond, first)

	r.Record("ep", 0, nil)
	second := r.byEndpoint["ep"].emaLatency
	assert.True(t, second < first, "a zero-duration sample should pull the EMA down")
}

func TestRecorder_MultipleEndpointsAreIndependent(t *testing.T) {
	r := NewRecorder(NewNoopProvider(), 0)
	r.Record("a", time.Millisecond, nil)
	r.Record("b", time.Millisecond, fortitude.New(fortitude.ErrRateLimitExceeded, "slow down"))

	s := r.Summary()
	assert.Equal(t, int64(1), s.ByEndpoint["a"].Successes)
	assert.Equal(t, int64(0), s.ByEndpoint["a"].Failures)
	assert.Equal(t, int64(1), s.ByEndpoint["b"].Failures)
	assert.Equal(t, int64(1), s.FailuresByKind[fortitude.ErrRateLimitExceeded])
}
