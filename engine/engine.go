// Package engine composes C1-C12 behind a single facade, the way the
// teacher's root engine.Engine composes its pipeline/resources/telemetry
// subsystems: construct with New, drive the ingest loop with Start, read
// state with Snapshot/HealthSnapshot, and shut everything down with Stop.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	fortitude "github.com/99souls/fortitude"
	"github.com/99souls/fortitude/engine/config"
	"github.com/99souls/fortitude/engine/gaps"
	"github.com/99souls/fortitude/engine/knowledge"
	"github.com/99souls/fortitude/engine/models"
	"github.com/99souls/fortitude/engine/monitor"
	"github.com/99souls/fortitude/engine/notify"
	"github.com/99souls/fortitude/engine/preferences"
	"github.com/99souls/fortitude/engine/progress"
	"github.com/99souls/fortitude/engine/providers"
	"github.com/99souls/fortitude/engine/quality"
	"github.com/99souls/fortitude/engine/state"
	"github.com/99souls/fortitude/engine/tasks"
	"github.com/99souls/fortitude/engine/telemetry"
	"github.com/99souls/fortitude/engine/validator"
)

// Config aggregates every subsystem's configuration plus the proactive-mode
// runtime config, §6.
type Config struct {
	Proactive  config.ProactiveConfig
	Monitor    monitor.Config
	Gaps       gaps.Config
	Validator  validator.Config
	Scheduler  tasks.Config
	Providers  providers.Config
	State      state.Config
	Knowledge  knowledge.Config
	Notify     notify.Config
	SampleCap  int
}

// DefaultConfig wires every subsystem's own defaults together.
func DefaultConfig() Config {
	return Config{
		Proactive: config.DefaultProactiveConfig(),
		Monitor:   monitor.Default(),
		Gaps:      gaps.DefaultConfig(),
		Validator: validator.Default(),
		Scheduler: tasks.DefaultConfig(),
		Providers: providers.DefaultConfig(),
		State:     state.DefaultConfig(),
		Knowledge: knowledge.DefaultConfig(),
		Notify:    notify.DefaultConfig(),
		SampleCap: telemetry.DefaultSampleCap,
	}
}

// PendingGap is a validated, above-threshold gap awaiting manual execution
// because auto_execute_high_priority is false, §6.
type PendingGap struct {
	ID  string
	Gap models.ValidatedGap
}

// Engine composes the proactive research pipeline end to end.
type Engine struct {
	cfg config.ProactiveConfig

	monitor    *monitor.Monitor
	detector   *gaps.Detector
	validator  *validator.Validator
	scheduler  *tasks.Scheduler
	providers  *providers.Manager
	scorer     *quality.Scorer
	knowledge  *knowledge.Adapter
	state      *state.Manager
	progress   *progress.Tracker
	notifier   *notify.Manager
	prefs      *preferences.Manager
	telemetry  *telemetry.Recorder

	startedAt time.Time

	mu      sync.Mutex
	pending map[string]PendingGap
	nextID  int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires every component together. backend is the caller's knowledge
// storage implementation (vector DB, etc.); provider registration is left
// to the caller via RegisterProvider before Start.
func New(ctx context.Context, cfg Config, backend knowledge.Backend, prefsDir string, telemetryProvider telemetry.Provider) (*Engine, error) {
	sm, err := state.New(cfg.State)
	if err != nil {
		return nil, fortitude.Wrap(fortitude.ErrNotInitialized, err, "constructing state manager")
	}
	prefsMgr, err := preferences.New(prefsDir)
	if err != nil {
		return nil, fortitude.Wrap(fortitude.ErrNotInitialized, err, "constructing preference manager")
	}

	kadapter := knowledge.New(backend, cfg.Knowledge)
	v := validator.New(cfg.Validator, kadapter)
	pm := providers.NewManager(cfg.Providers)
	rec := telemetry.NewRecorder(telemetryProvider, cfg.SampleCap)

	e := &Engine{
		cfg:       cfg.Proactive,
		detector:  gaps.New(cfg.Gaps),
		validator: v,
		providers: pm,
		scorer:    quality.New(),
		knowledge: kadapter,
		state:     sm,
		progress:  progress.New(),
		notifier:  notify.NewManager(prefsMgr, cfg.Notify),
		prefs:     prefsMgr,
		telemetry: rec,
		pending:   make(map[string]PendingGap),
	}

	ectx, cancel := context.WithCancel(ctx)
	e.ctx = ectx
	e.cancel = cancel
	e.scheduler = tasks.New(ectx, cfg.Scheduler, &compositeExecutor{e: e}, sm)

	if cfg.Proactive.Enabled {
		m, err := monitor.New(ectx, []string{cfg.Proactive.BaseDirectory}, cfg.Monitor)
		if err != nil {
			cancel()
			return nil, fortitude.Wrap(fortitude.ErrNotInitialized, err, "constructing file monitor")
		}
		e.monitor = m
	}

	return e, nil
}

// RegisterProvider adds a research provider to the pool, §4.5.
func (e *Engine) RegisterProvider(p providers.Provider, qualityPrior float64) {
	e.providers.Register(p, qualityPrior)
}

// Start launches the notification dispatcher and, if proactive mode is
// enabled, the file-event ingest loop.
func (e *Engine) Start() {
	e.startedAt = time.Now()
	e.notifier.Start()
	if e.monitor == nil {
		return
	}
	e.wg.Add(1)
	go e.ingestLoop()
}

func (e *Engine) ingestLoop() {
	defer e.wg.Done()
	for {
		ev, err := e.monitor.NextEvent(e.ctx)
		if err != nil {
			return
		}
		if !ev.ShouldAnalyze {
			continue
		}
		e.handleFileEvent(ev)
	}
}

func (e *Engine) handleFileEvent(ev models.FileEvent) {
	detected, err := e.detector.AnalyzeFile(ev.Path)
	if err != nil || len(detected) == 0 {
		return
	}

	validated, err := e.validator.ValidateBatch(e.ctx, detected)
	if err != nil {
		return
	}

	for _, vg := range validated {
		if !vg.IsValidated {
			continue
		}
		e.considerGap(vg)
	}
}

// considerGap applies the §6 priority_threshold/auto_execute_high_priority
// policy: gaps below threshold are dropped, gaps at or above threshold are
// either submitted immediately (auto-execute) or parked for manual
// confirmation via ExecutePendingGap.
func (e *Engine) considerGap(vg models.ValidatedGap) {
	normalized := float64(vg.EnhancedPriority) / 10.0
	if normalized < e.cfg.PriorityThreshold {
		return
	}

	priority := models.PriorityMedium
	switch {
	case vg.EnhancedPriority >= 8:
		priority = models.PriorityHigh
	case vg.EnhancedPriority <= 3:
		priority = models.PriorityLow
	}

	if e.cfg.AutoExecuteHighPriority {
		_, _, _ = e.scheduler.SubmitGap(&vg, priority)
		return
	}

	e.mu.Lock()
	e.nextID++
	id := fmt.Sprintf("pending-%d", e.nextID)
	e.pending[id] = PendingGap{ID: id, Gap: vg}
	e.mu.Unlock()
}

// PendingGaps returns every gap parked awaiting manual confirmation.
func (e *Engine) PendingGaps() []PendingGap {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]PendingGap, 0, len(e.pending))
	for _, pg := range e.pending {
		out = append(out, pg)
	}
	return out
}

// ExecutePendingGap submits a previously parked gap as a research task.
func (e *Engine) ExecutePendingGap(id string) (string, tasks.SubmitOutcome, error) {
	e.mu.Lock()
	pg, ok := e.pending[id]
	if ok {
		delete(e.pending, id)
	}
	e.mu.Unlock()
	if !ok {
		return "", "", fortitude.New(fortitude.ErrInvalidInput, "unknown pending gap %s", id)
	}
	return e.scheduler.SubmitGap(&pg.Gap, models.PriorityMedium)
}

// RequestResearch submits a directly-requested research task, §6.
func (e *Engine) RequestResearch(req models.ExternalRequest) (string, tasks.SubmitOutcome, error) {
	return e.scheduler.SubmitExternal(req)
}

// TaskStatus returns a task's current state.
func (e *Engine) TaskStatus(id string) (models.ResearchTask, bool) {
	return e.scheduler.Get(id)
}

// CancelTask cancels a queued or in-flight task, §4.4.
func (e *Engine) CancelTask(ctx context.Context, id string) error {
	return e.scheduler.Cancel(ctx, id)
}

// Progress returns a task's stepwise progress summary, §4.8.
func (e *Engine) Progress(id string) (progress.Summary, bool) {
	return e.progress.Get(id)
}

// Notify sends a notification through the preference-filtered dispatcher,
// §4.9/§4.10.
func (e *Engine) Notify(ctx context.Context, profileID string, n models.Notification) (notify.Outcome, error) {
	return e.notifier.Send(ctx, profileID, n)
}

// Preferences exposes the Preference Manager (C10) for profile CRUD.
func (e *Engine) Preferences() *preferences.Manager { return e.prefs }

// Snapshot is the aggregate read model across scheduler, provider, and
// telemetry state.
type Snapshot struct {
	StartedAt      time.Time
	Uptime         time.Duration
	PendingTasks   int
	ProviderUsage  []providers.UsageStats
	StateMetrics   state.Metrics
	Telemetry      telemetry.Summary
}

// Snapshot returns a unified view of engine state, mirroring the teacher's
// Engine.Snapshot read model.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		StartedAt:     e.startedAt,
		Uptime:        time.Since(e.startedAt),
		PendingTasks:  e.scheduler.PendingCount(),
		ProviderUsage: e.providers.UsageStats(),
		StateMetrics:  e.state.Metrics(),
		Telemetry:     e.telemetry.Summary(),
	}
}

// HealthSnapshot reports whether the telemetry backend itself is healthy.
func (e *Engine) HealthSnapshot(ctx context.Context) error {
	return e.telemetry.Health(ctx)
}

// Stop drains the scheduler, persists state, and stops every background
// loop, bounded by ctx.
func (e *Engine) Stop(ctx context.Context) error {
	e.cancel()
	if e.monitor != nil {
		_ = e.monitor.Shutdown()
	}
	e.wg.Wait()
	if err := e.notifier.Stop(ctx); err != nil {
		return err
	}
	return e.state.Shutdown(ctx)
}

// compositeExecutor chains C5 (Provider Manager) -> C6 (Quality Scorer) ->
// C11 (Knowledge Store) around a single task execution, resolving the
// scheduler's own note that scoring/persistence happen outside Execute.
type compositeExecutor struct {
	e *Engine
}

func (c *compositeExecutor) Execute(ctx context.Context, task *models.ResearchTask) (tasks.ExecutionResult, error) {
	start := time.Now()
	_ = c.e.progress.RecordStep(task.ID, progress.StageProviderSelection, 10, nil)

	res, err := c.e.providers.Execute(ctx, task)
	if err != nil {
		c.e.telemetry.Record("execute", time.Since(start), err)
		return tasks.ExecutionResult{}, err
	}
	_ = c.e.progress.RecordStep(task.ID, progress.StageResearchExecution, 60, nil)

	score, err := c.e.scorer.Score(task.Query(), res.Text, models.DefaultWeights(), nil)
	if err != nil {
		c.e.telemetry.Record("execute", time.Since(start), err)
		return tasks.ExecutionResult{}, err
	}
	res.Score = &score
	c.e.providers.RecordQuality(res.Provider, score.Composite)
	_ = c.e.progress.RecordStep(task.ID, progress.StageScoring, 80, nil)

	_, err = c.e.knowledge.Store(ctx, res.Text, models.DocumentMetadata{
		ContentType:  "research_result",
		QualityScore: score.Composite,
		Source:       res.Provider,
	})
	if err != nil {
		c.e.telemetry.Record("execute", time.Since(start), err)
		return tasks.ExecutionResult{}, err
	}
	_ = c.e.progress.RecordStep(task.ID, progress.StageResultProcessing, 100, nil)
	c.e.progress.Complete(task.ID)

	c.e.telemetry.Record("execute", time.Since(start), nil)
	return res, nil
}
