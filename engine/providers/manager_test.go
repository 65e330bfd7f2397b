package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fortitude "github.com/99souls/fortitude"
	"github.com/99souls/fortitude/engine/models"
)

func taskFor(query string) *models.ResearchTask {
	return &models.ResearchTask{
		ID:       "t1",
		External: &models.ExternalRequest{Query: query},
		Priority: models.PriorityMedium,
	}
}

// trackingProvider counts ResearchQuery invocations so a test can assert a
// candidate was actually attempted, not silently skipped by ordering.
type trackingProvider struct {
	*MockProvider
	calls int
}

func (p *trackingProvider) ResearchQuery(ctx context.Context, query string) (string, error) {
	p.calls++
	return p.MockProvider.ResearchQuery(ctx, query)
}

// E4: provider fallback, in static priority (registration) order. A(quota_exceeded,
// non-retryable) must be tried first and skipped, then B succeeds, and C is
// never attempted - even though B and C's quality priors would rank above A's
// under a score-sorted ordering. Registration order, not score, is what the
// Priority strategy promises, §4.5.
func TestManager_E4_FallsOverOnNonRetryableError(t *testing.T) {
	m := NewManager(DefaultConfig())

	a := &trackingProvider{MockProvider: NewMockProvider("A").WithError(fortitude.New(fortitude.ErrQuotaExceeded, "quota exceeded"))}
	b := NewMockProvider("B").WithResponse("from B")
	c := &trackingProvider{MockProvider: NewMockProvider("C").WithResponse("from C")}

	m.Register(a, 0)
	m.Register(b, 0.9)
	m.Register(c, 0.8)

	res, err := m.Execute(context.Background(), taskFor("hello"))
	require.NoError(t, err)
	assert.Equal(t, "B", res.Provider)
	assert.Equal(t, 1, a.calls, "A must be attempted first despite scoring below B and C")
	assert.Equal(t, 0, c.calls, "C must never be attempted once B succeeds")
}

func TestManager_NoProvidersRegisteredIsServiceUnavailable(t *testing.T) {
	m := NewManager(DefaultConfig())
	_, err := m.Execute(context.Background(), taskFor("anything"))
	require.Error(t, err)
	kind, ok := fortitude.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, fortitude.ErrServiceUnavailable, kind)
}

// A retryable error (e.g. a transient timeout) is not retried locally by
// the Manager: it surfaces immediately so the Scheduler's own
// AwaitingRetry/backoff path (C4) drives the retry across a later Execute
// call, §4.4/§4.5. See TestScheduler_E5_RateLimitBackoffThenSucceeds for the
// end-to-end retry-then-succeed behavior.
func TestManager_RetryableErrorSurfacesImmediatelyWithoutLocalRetry(t *testing.T) {
	m := NewManager(DefaultConfig())

	attempts := 0
	flaky := &flakyProvider{
		MockProvider: NewMockProvider("flaky"),
		failTimes:    1,
		onCall: func() {
			attempts++
		},
	}
	m.Register(flaky, 0.5)

	_, err := m.Execute(context.Background(), taskFor("retry me"))
	require.Error(t, err)
	kind, ok := fortitude.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, fortitude.ErrTimeout, kind)
	assert.Equal(t, 1, attempts, "Execute must make exactly one attempt and return the retryable error, not retry in place")
}

func TestManager_CrossValidationKeepsHigherQualityResponse(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableCrossValidation = true
	m := NewManager(cfg)

	terse := NewMockProvider("terse").WithResponse("ok")
	rich := NewMockProvider("rich").WithResponse(
		"# Detailed Answer\n\nThis response is considerably longer, includes a heading, " +
			"cites https://example.com/source, and develops the topic with specific numbers like 42 and 2024.",
	)
	m.Register(terse, 0.5)
	m.Register(rich, 0.5)

	res, err := m.Execute(context.Background(), taskFor("give me detail on this topic please"))
	require.NoError(t, err)
	assert.Equal(t, "rich", res.Provider)
}

// flakyProvider fails its first N calls then succeeds.
type flakyProvider struct {
	*MockProvider
	failTimes int
	calls     int
	onCall    func()
}

func (f *flakyProvider) Name() string { return f.MockProvider.Name() }

func (f *flakyProvider) ResearchQuery(ctx context.Context, query string) (string, error) {
	if f.onCall != nil {
		f.onCall()
	}
	f.calls++
	if f.calls <= f.failTimes {
		return "", fortitude.New(fortitude.ErrTimeout, "simulated timeout")
	}
	return "flaky recovered", nil
}
