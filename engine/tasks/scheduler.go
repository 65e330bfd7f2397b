// Package tasks implements the Task Store & Scheduler (C4): a priority
// queue of ResearchTasks with concurrency limits, deduplication, retries,
// and backpressure, §4.4.
package tasks

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	fortitude "github.com/99souls/fortitude"
	"github.com/99souls/fortitude/engine/models"
)

// ExecutionResult is what a Provider Manager returns for a completed attempt.
type ExecutionResult struct {
	Text     string
	Provider string
	Score    *models.QualityScore
}

// Executor is the capability the Scheduler dispatches ready tasks to (C5).
type Executor interface {
	Execute(ctx context.Context, task *models.ResearchTask) (ExecutionResult, error)
}

// StateSink is the capability the Scheduler reports lifecycle events to (C7).
type StateSink interface {
	TrackCreation(task *models.ResearchTask)
	Transition(ctx context.Context, taskID string, to models.TaskState, actor, reason string) error
}

// Config controls scheduling limits, §4.4.
type Config struct {
	MaxConcurrent int
	SoftLimit     int
	HardLimit     int
	MaxAttempts   int
	Backoff       BackoffPolicy
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 5,
		SoftLimit:     50,
		HardLimit:     200,
		MaxAttempts:   3,
		Backoff:       DefaultBackoffPolicy(),
	}
}

// SubmitOutcome reports backpressure signalling from §4.4.
type SubmitOutcome string

const (
	SubmitAccepted   SubmitOutcome = "accepted"
	SubmitQueuedDeep SubmitOutcome = "queued_deep"
)

// Scheduler owns the task store, the ready-queue, and the background
// dispatch loop, §4.4.
type Scheduler struct {
	cfg      Config
	executor Executor
	state    StateSink
	clock    func() time.Time
	rng      *rand.Rand

	mu       sync.Mutex
	byID     map[string]*models.ResearchTask
	byFP     map[string]string // fingerprint -> task id, non-terminal only
	queue    *readyQueue
	executing int

	wake chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closed bool
}

// New constructs a Scheduler and starts its background dispatch loop.
func New(ctx context.Context, cfg Config, executor Executor, state StateSink) *Scheduler {
	sctx, cancel := context.WithCancel(ctx)
	s := &Scheduler{
		cfg:      cfg,
		executor: executor,
		state:    state,
		clock:    time.Now,
		rng:      rand.New(rand.NewSource(1)),
		byID:     make(map[string]*models.ResearchTask),
		byFP:     make(map[string]string),
		queue:    newReadyQueue(),
		wake:     make(chan struct{}, 1),
		ctx:      sctx,
		cancel:   cancel,
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// SubmitGap submits a validated gap as a task, returning its (possibly
// pre-existing) id, §4.4.
func (s *Scheduler) SubmitGap(vg *models.ValidatedGap, priority models.Priority) (string, SubmitOutcome, error) {
	fp := Fingerprint(vg.GapType, vg.FilePath, vg.Description)
	return s.submit(fp, priority, func(id string) *models.ResearchTask {
		return &models.ResearchTask{
			ID:          id,
			OriginKind:  models.OriginValidatedGap,
			Gap:         vg,
			Priority:    priority,
			State:       models.StatePending,
			CreatedAt:   s.clock(),
			NotBefore:   s.clock(),
			MaxAttempts: s.cfg.MaxAttempts,
			Fingerprint: fp,
		}
	})
}

// SubmitExternal submits a directly-requested research task, §6.
func (s *Scheduler) SubmitExternal(req models.ExternalRequest) (string, SubmitOutcome, error) {
	fp := FingerprintExternal(req.Query)
	priority := models.PriorityMedium
	if req.Priority != nil {
		priority = *req.Priority
	}
	return s.submit(fp, priority, func(id string) *models.ResearchTask {
		r := req
		return &models.ResearchTask{
			ID:          id,
			OriginKind:  models.OriginExternalRequest,
			External:    &r,
			Priority:    priority,
			State:       models.StatePending,
			CreatedAt:   s.clock(),
			NotBefore:   s.clock(),
			MaxAttempts: s.cfg.MaxAttempts,
			Fingerprint: fp,
		}
	})
}

func (s *Scheduler) submit(fp string, priority models.Priority, build func(id string) *models.ResearchTask) (string, SubmitOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", "", fortitude.New(fortitude.ErrNotInitialized, "scheduler is shut down")
	}

	if existingID, ok := s.byFP[fp]; ok {
		existing := s.byID[existingID]
		if priority > existing.Priority {
			existing.Priority = priority
			s.queue.Remove(existing.ID)
			if !existing.State.Terminal() && existing.State != models.StateExecuting {
				s.queue.PushTask(existing)
			}
		}
		s.signal()
		return existingID, SubmitAccepted, nil
	}

	pending := s.pendingCountLocked()
	if pending >= s.cfg.HardLimit {
		return "", "", fortitude.New(fortitude.ErrQueueFull, "scheduler queue is at hard limit (%d)", s.cfg.HardLimit)
	}

	id := uuid.NewString()
	task := build(id)
	s.byID[id] = task
	s.byFP[fp] = id
	s.queue.PushTask(task)
	if s.state != nil {
		s.state.TrackCreation(task)
	}

	outcome := SubmitAccepted
	if pending+1 >= s.cfg.SoftLimit {
		outcome = SubmitQueuedDeep
	}

	s.signal()
	return id, outcome, nil
}

func (s *Scheduler) pendingCountLocked() int {
	n := 0
	for _, t := range s.byID {
		if !t.State.Terminal() {
			n++
		}
	}
	return n
}

// Get returns a copy of the task's current state, or false if unknown.
func (s *Scheduler) Get(id string) (models.ResearchTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return models.ResearchTask{}, false
	}
	return *t, true
}

// Cancel marks a task Cancelled, observing the §4.4 semantics for
// queued-vs-executing tasks.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	t, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return fortitude.New(fortitude.ErrInvalidInput, "unknown task %s", id)
	}
	if t.State == models.StateExecuting {
		t.CancelRequested = true
		s.mu.Unlock()
		return nil
	}
	s.queue.Remove(id)
	prev := t.State
	t.State = models.StateCancelled
	delete(s.byFP, t.Fingerprint)
	s.mu.Unlock()

	if s.state != nil {
		return s.state.Transition(ctx, id, models.StateCancelled, "user", "cancel requested while "+string(prev))
	}
	return nil
}

// PendingCount returns the number of non-terminal tasks.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingCountLocked()
}

// ExecutingCount returns the number of tasks currently in flight.
func (s *Scheduler) ExecutingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executing
}

func (s *Scheduler) loop() {
	defer s.wg.Done()
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		s.dispatchReady()

		wait := time.Hour
		s.mu.Lock()
		if nb, ok := s.queue.NextNotBefore(); ok {
			if d := nb.Sub(s.clock()); d > 0 {
				wait = d
			} else {
				wait = time.Millisecond
			}
		}
		s.mu.Unlock()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-s.ctx.Done():
			return
		case <-s.wake:
		case <-timer.C:
		}
	}
}

func (s *Scheduler) dispatchReady() {
	for {
		s.mu.Lock()
		if s.executing >= s.cfg.MaxConcurrent {
			s.mu.Unlock()
			return
		}
		task := s.queue.PopReady(s.clock())
		if task == nil {
			s.mu.Unlock()
			return
		}
		task.State = models.StateScheduled
		s.executing++
		s.mu.Unlock()

		if s.state != nil {
			_ = s.state.Transition(s.ctx, task.ID, models.StateScheduled, "scheduler", "dispatched")
		}

		s.wg.Add(1)
		go s.run(task)
	}
}

func (s *Scheduler) run(task *models.ResearchTask) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		s.executing--
		s.mu.Unlock()
		s.signal()
	}()

	s.mu.Lock()
	task.State = models.StateExecuting
	task.Attempts++
	cancelRequested := task.CancelRequested
	s.mu.Unlock()

	if s.state != nil {
		_ = s.state.Transition(s.ctx, task.ID, models.StateExecuting, "scheduler", "attempt start")
	}

	if cancelRequested {
		s.finishAs(task, models.StateCancelled, "cancelled before execution")
		return
	}

	result, err := s.executor.Execute(s.ctx, task)

	s.mu.Lock()
	cancelled := task.CancelRequested
	s.mu.Unlock()
	if cancelled {
		s.finishAs(task, models.StateCancelled, "cancelled during execution")
		return
	}

	if err == nil {
		// Scoring and knowledge-store persistence happen inside the Executor
		// (the engine facade wires C5 -> C6 -> C11 into one Executor), so the
		// scheduler itself has nothing left to do with result on success.
		_ = result
		s.finishAs(task, models.StateCompleted, "execution succeeded")
		return
	}

	retryable := false
	var fe *fortitude.Error
	if errors.As(err, &fe) {
		retryable = fe.Retryable()
	}

	s.mu.Lock()
	exhausted := task.Attempts >= task.MaxAttempts
	s.mu.Unlock()

	if retryable && !exhausted {
		delay := s.cfg.Backoff.Delay(task.Attempts, s.rng)
		if fe != nil && fe.RetryAfter > delay {
			delay = fe.RetryAfter
		}
		s.mu.Lock()
		task.State = models.StateAwaitingRetry
		task.NotBefore = s.clock().Add(delay)
		s.queue.PushTask(task)
		s.mu.Unlock()

		if s.state != nil {
			_ = s.state.Transition(s.ctx, task.ID, models.StateAwaitingRetry, "scheduler", err.Error())
		}
		return
	}

	s.finishAs(task, models.StateFailed, errString(err))
}

func (s *Scheduler) finishAs(task *models.ResearchTask, state models.TaskState, reason string) {
	s.mu.Lock()
	task.State = state
	if state.Terminal() {
		delete(s.byFP, task.Fingerprint)
	}
	s.mu.Unlock()

	if s.state != nil {
		_ = s.state.Transition(s.ctx, task.ID, state, "scheduler", reason)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Shutdown stops the scheduler, refusing further submits.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}
