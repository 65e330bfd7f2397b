package providers

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	fortitude "github.com/99souls/fortitude"
	"github.com/99souls/fortitude/engine/models"
	"github.com/99souls/fortitude/engine/quality"
	"github.com/99souls/fortitude/engine/ratelimit"
	"github.com/99souls/fortitude/engine/tasks"
)

// providerState bundles a Provider with its per-provider circuit breaker,
// rate limiters, concurrency semaphore, and rolling stats, §4.5.
type providerState struct {
	provider Provider

	breaker *gobreaker.CircuitBreaker
	rpm     *ratelimit.TokenBucket
	inTok   *ratelimit.TokenBucket
	outTok  *ratelimit.TokenBucket
	sem     chan struct{}

	mu    sync.Mutex
	stats models.RollingStats
}

func newProviderState(p Provider, cfg Config, now time.Time, qualityPrior float64) *providerState {
	meta := p.Metadata()
	limits := meta.Limits
	if limits.RequestsPerMinute <= 0 {
		limits.RequestsPerMinute = 60
	}
	if limits.MaxConcurrent <= 0 {
		limits.MaxConcurrent = 1
	}

	breakerSettings := gobreaker.Settings{
		Name:        meta.Name,
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerTripThreshold
		},
	}

	ps := &providerState{
		provider: p,
		breaker:  gobreaker.NewCircuitBreaker(breakerSettings),
		rpm:      ratelimit.New(float64(limits.RequestsPerMinute), float64(limits.RequestsPerMinute)/60.0, now),
		sem:      make(chan struct{}, limits.MaxConcurrent),
	}
	if limits.InputTokensPerMin > 0 {
		ps.inTok = ratelimit.New(float64(limits.InputTokensPerMin), float64(limits.InputTokensPerMin)/60.0, now)
	}
	if limits.OutputTokensPerMin > 0 {
		ps.outTok = ratelimit.New(float64(limits.OutputTokensPerMin), float64(limits.OutputTokensPerMin)/60.0, now)
	}
	if qualityPrior > 0 {
		ps.stats.QualityEMA = qualityPrior
		ps.stats.QualitySamples = 1
	}
	return ps
}

// wouldRejectImmediately reports whether a call right now would be turned
// away purely by local admission control (no concurrency slot, or any of
// the RPM/token buckets are empty for the estimated cost), without
// consuming any budget.
func (ps *providerState) wouldRejectImmediately(now time.Time, cost models.CostEstimate) bool {
	if len(ps.sem) >= cap(ps.sem) {
		return true
	}
	if ps.rpm.Available(now) < 1 {
		return true
	}
	if ps.inTok != nil && ps.inTok.Available(now) < float64(cost.InputTokens) {
		return true
	}
	if ps.outTok != nil && ps.outTok.Available(now) < float64(cost.OutputTokens) {
		return true
	}
	return false
}

func (ps *providerState) inFlight() int {
	return len(ps.sem)
}

func (ps *providerState) snapshot() models.RollingStats {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	s := ps.stats
	s.InFlight = ps.inFlight()
	return s
}

// recordOutcome updates call-level stats (success/failure counts, the
// rolling average latency over the last 50 requests, §4.5). Quality EMA is
// updated separately via recordQuality once a composite score is available.
func (ps *providerState) recordOutcome(latency time.Duration, ok bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ok {
		ps.stats.Successes++
	} else {
		ps.stats.Failures++
	}
	ps.stats.SampleCount++
	if ps.stats.SampleCount == 1 {
		ps.stats.AvgLatency = latency
	} else {
		n := ps.stats.SampleCount
		if n > 50 {
			n = 50
		}
		ps.stats.AvgLatency = (ps.stats.AvgLatency*time.Duration(n-1) + latency) / time.Duration(n)
	}
}

// recordQuality applies the §4.6 EMA update (factor 0.2) once a composite
// quality score is known for a completed call.
func (ps *providerState) recordQuality(composite float64) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	const emaFactor = 0.2
	if ps.stats.QualitySamples == 0 {
		ps.stats.QualityEMA = composite
	} else {
		ps.stats.QualityEMA = emaFactor*composite + (1-emaFactor)*ps.stats.QualityEMA
	}
	ps.stats.QualitySamples++
}

// Manager selects among a pool of Providers per call, enforcing rate limits,
// circuit breaking, fallback, and optional cross-validation, §4.5. It
// satisfies tasks.Executor, dispatched to directly by the Scheduler (C4).
type Manager struct {
	cfg    Config
	scorer *quality.Scorer
	clock  func() time.Time

	mu        sync.Mutex
	order     []string // registration order, the Priority strategy's static order
	providers map[string]*providerState
	rrCursor  int
}

// NewManager constructs a Manager with no providers registered; call
// Register for each backend before Execute is invoked.
func NewManager(cfg Config) *Manager {
	return &Manager{
		cfg:       cfg,
		scorer:    quality.New(),
		clock:     time.Now,
		providers: make(map[string]*providerState),
	}
}

// Register adds a provider to the pool, seeding its quality EMA from
// qualityPrior (0 means "no prior", and the first real outcome sets it).
func (m *Manager) Register(p Provider, qualityPrior float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name := p.Name()
	m.providers[name] = newProviderState(p, m.cfg, m.clock(), qualityPrior)
	m.order = append(m.order, name)
}

// UsageStats returns a snapshot of every registered provider's rolling stats.
func (m *Manager) UsageStats() []UsageStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]UsageStats, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, UsageStats{Provider: name, Stats: m.providers[name].snapshot()})
	}
	return out
}

// candidate is a provider scored and ordered for one call.
type candidate struct {
	name  string
	state *providerState
	score float64
}

// Execute implements tasks.Executor: it selects a provider (or cross-
// validates the top two), runs the query once per candidate with fallback
// past non-retryable errors (a retryable error is returned at once), and
// returns the winning text, §4.5. Scoring (C6) and persistence (C11)
// happen outside Execute, composed by the engine facade around the
// Scheduler's Executor.
func (m *Manager) Execute(ctx context.Context, task *models.ResearchTask) (tasks.ExecutionResult, error) {
	query := task.Query()
	now := m.clock()

	candidates := m.rankedCandidates(query, now)
	if len(candidates) == 0 {
		return tasks.ExecutionResult{}, fortitude.New(fortitude.ErrServiceUnavailable, "no healthy provider available")
	}

	if m.cfg.EnableCrossValidation && len(candidates) >= 2 {
		if res, err := m.crossValidate(ctx, query, candidates[:2]); err == nil {
			return res, nil
		}
	}

	var lastErr error
	for _, c := range candidates {
		res, err := m.callOnce(ctx, c.state, c.name, query)
		if err == nil {
			return res, nil
		}

		var fe *fortitude.Error
		if errors.As(err, &fe) && fe.Retryable() {
			// A retryable failure (rate limit, timeout, transient
			// unavailability) is surfaced immediately instead of being
			// retried here: the Scheduler (C4) owns retry scheduling via
			// its own AwaitingRetry/backoff path, §4.4/§7, so the task is
			// requeued and Execute is called again later rather than this
			// call blocking on a local sleep.
			return tasks.ExecutionResult{}, err
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = fortitude.New(fortitude.ErrServiceUnavailable, "all providers exhausted")
	}
	return tasks.ExecutionResult{}, lastErr
}

// rankedCandidates filters out unhealthy/locally-rejecting providers and
// orders the rest per the configured fallback strategy, §4.5 step 1-2. live
// is built by walking names (registration order), so it already is in
// static-priority order before any strategy-specific reordering below.
func (m *Manager) rankedCandidates(query string, now time.Time) []candidate {
	m.mu.Lock()
	names := append([]string(nil), m.order...)
	m.mu.Unlock()

	var live []candidate
	for _, name := range names {
		m.mu.Lock()
		ps := m.providers[name]
		m.mu.Unlock()
		if ps == nil {
			continue
		}
		if ps.wouldRejectImmediately(now, ps.provider.EstimateCost(query)) {
			continue
		}
		health := ps.provider.HealthCheck(context.Background())
		if health.Kind == models.HealthUnhealthy {
			continue
		}
		live = append(live, candidate{name: name, state: ps, score: m.selectionScore(ps, query)})
	}

	switch m.cfg.Strategy {
	case StrategyRoundRobin:
		m.mu.Lock()
		cursor := m.rrCursor
		m.rrCursor++
		m.mu.Unlock()
		if len(live) > 0 {
			cursor = cursor % len(live)
			live = append(live[cursor:], live[:cursor]...)
		}
	case StrategyLeastLoaded:
		sort.SliceStable(live, func(i, j int) bool {
			return live[i].state.inFlight() < live[j].state.inFlight()
		})
	case StrategyFastestResponse:
		sort.SliceStable(live, func(i, j int) bool {
			return live[i].state.snapshot().AvgLatency < live[j].state.snapshot().AvgLatency
		})
	default: // StrategyPriority: registration order, §4.5 ("static order") -
		// live is already in that order, so no reordering here. score is
		// still computed and stored on each candidate, but it never drives
		// try-order for this strategy.
	}
	return live
}

// selectionScore implements the §4.5 step 2 formula.
func (m *Manager) selectionScore(ps *providerState, query string) float64 {
	stats := ps.snapshot()
	meta := ps.provider.Metadata()
	cost := ps.provider.EstimateCost(query)

	normalizedCost := 0.0
	if cost.InputTokens+cost.OutputTokens > 0 {
		normalizedCost = clamp01(float64(cost.InputTokens+cost.OutputTokens) / 10000.0)
	}

	contextBonus := 0.0
	if len(query) > 100 {
		contextBonus += 0.05
	}
	if meta.Specialization != "" && strings.Contains(strings.ToLower(query), strings.ToLower(meta.Specialization)) {
		contextBonus += 0.1
	}

	return m.cfg.QualityPriorityWeight*stats.QualityEMA +
		m.cfg.CostPriorityWeight*(1-normalizedCost) +
		contextBonus
}

// crossValidate issues the query to both candidates in parallel and keeps
// the higher-quality-scored response, §4.5 step 3.
func (m *Manager) crossValidate(ctx context.Context, query string, top []candidate) (tasks.ExecutionResult, error) {
	type attempt struct {
		res tasks.ExecutionResult
		q   float64
		err error
	}
	results := make([]attempt, len(top))
	var wg sync.WaitGroup
	for i, c := range top {
		wg.Add(1)
		go func(i int, c candidate) {
			defer wg.Done()
			res, err := m.callOnce(ctx, c.state, c.name, query)
			if err != nil {
				results[i] = attempt{err: err}
				return
			}
			score, scoreErr := m.scorer.Score(query, res.Text, m.cfg.CrossValidationWeights, nil)
			if scoreErr != nil {
				results[i] = attempt{res: res, err: scoreErr}
				return
			}
			results[i] = attempt{res: res, q: score.Composite}
		}(i, c)
	}
	wg.Wait()

	best := -1
	for i, a := range results {
		if a.err != nil {
			continue
		}
		if best == -1 || a.q > results[best].q {
			best = i
		}
	}
	if best == -1 {
		return tasks.ExecutionResult{}, fortitude.New(fortitude.ErrServiceUnavailable, "cross-validation: both providers failed")
	}
	m.RecordQuality(results[best].res.Provider, results[best].q)
	return results[best].res, nil
}

// callOnce performs exactly one rate-limited, circuit-broken attempt.
func (m *Manager) callOnce(ctx context.Context, ps *providerState, name, query string) (tasks.ExecutionResult, error) {
	now := m.clock()
	if !ps.rpm.Allow(now) {
		return tasks.ExecutionResult{}, fortitude.New(fortitude.ErrRateLimitExceeded, "provider %s exceeded requests-per-minute limit", name).WithProvider(name)
	}

	cost := ps.provider.EstimateCost(query)
	if ps.inTok != nil && !ps.inTok.AllowN(now, float64(cost.InputTokens)) {
		return tasks.ExecutionResult{}, fortitude.New(fortitude.ErrRateLimitExceeded, "provider %s exceeded input-tokens-per-minute limit", name).WithProvider(name)
	}
	if ps.outTok != nil && !ps.outTok.AllowN(now, float64(cost.OutputTokens)) {
		return tasks.ExecutionResult{}, fortitude.New(fortitude.ErrRateLimitExceeded, "provider %s exceeded output-tokens-per-minute limit", name).WithProvider(name)
	}

	select {
	case ps.sem <- struct{}{}:
	default:
		return tasks.ExecutionResult{}, fortitude.New(fortitude.ErrRateLimitExceeded, "provider %s at max concurrency", name).WithProvider(name)
	}
	defer func() { <-ps.sem }()

	start := m.clock()
	raw, err := ps.breaker.Execute(func() (interface{}, error) {
		return ps.provider.ResearchQuery(ctx, query)
	})
	latency := m.clock().Sub(start)
	text, _ := raw.(string)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fortitude.Wrap(fortitude.ErrUnhealthy, err, "provider %s circuit open", name).WithProvider(name)
		}
		ps.recordOutcome(latency, false)
		return tasks.ExecutionResult{}, err
	}

	ps.recordOutcome(latency, true)
	return tasks.ExecutionResult{Text: text, Provider: name}, nil
}

// RecordQuality feeds a composite score (typically computed by the Quality
// Scorer after Execute returns) back into provider's rolling EMA, §4.6. The
// engine facade calls this once per completed task, after scoring.
func (m *Manager) RecordQuality(provider string, composite float64) {
	m.mu.Lock()
	ps := m.providers[provider]
	m.mu.Unlock()
	if ps == nil {
		return
	}
	ps.recordQuality(composite)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
