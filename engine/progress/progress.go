// Package progress implements the Progress Tracker (C8): transient,
// in-memory step tracking per task, read on demand under a lock the way the
// engine facade's own Snapshot/ResourceSnapshot read-model works, §4.8.
package progress

import (
	"sync"
	"time"

	fortitude "github.com/99souls/fortitude"
)

// Step is one recorded stage of a task's execution.
type Step struct {
	Stage     string
	Percent   int
	StartedAt time.Time
	EndedAt   *time.Time
	Metadata  map[string]string
}

// Summary is the read model returned by Get.
type Summary struct {
	TaskID         string
	CurrentStage   string
	OverallPercent int
	Steps          []Step
}

// Standard stage names, §4.8. The enum is open-ended; callers may record
// any stage name.
const (
	StageGapIdentification = "gap_identification"
	StageProviderSelection = "provider_selection"
	StageResearchExecution = "research_execution"
	StageScoring           = "scoring"
	StageResultProcessing  = "result_processing"
)

type taskProgress struct {
	steps []Step
}

// Tracker holds progress for in-flight tasks; nothing here is persisted
// across restarts.
type Tracker struct {
	clock func() time.Time

	mu    sync.RWMutex
	tasks map[string]*taskProgress
}

// New constructs an empty Tracker.
func New() *Tracker {
	return &Tracker{clock: time.Now, tasks: make(map[string]*taskProgress)}
}

// RecordStep appends a new step for taskID, rejecting a percent that would
// regress the task's monotonic progress invariant, §8 invariant 5.
func (t *Tracker) RecordStep(taskID, stage string, percent int, metadata map[string]string) error {
	if percent < 0 || percent > 100 {
		return fortitude.New(fortitude.ErrInvalidInput, "percent %d out of range [0,100]", percent)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	tp, ok := t.tasks[taskID]
	if !ok {
		tp = &taskProgress{}
		t.tasks[taskID] = tp
	}
	if len(tp.steps) > 0 {
		prev := &tp.steps[len(tp.steps)-1]
		if prev.EndedAt == nil {
			now := t.clock()
			prev.EndedAt = &now
		}
		if percent < prev.Percent {
			return fortitude.New(fortitude.ErrInvalidInput, "progress must be monotonic: %d < previous %d", percent, prev.Percent)
		}
	}
	tp.steps = append(tp.steps, Step{
		Stage:     stage,
		Percent:   percent,
		StartedAt: t.clock(),
		Metadata:  metadata,
	})
	return nil
}

// Complete marks the task's final step as ended without adding a new one.
func (t *Tracker) Complete(taskID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tp, ok := t.tasks[taskID]
	if !ok || len(tp.steps) == 0 {
		return
	}
	last := &tp.steps[len(tp.steps)-1]
	if last.EndedAt == nil {
		now := t.clock()
		last.EndedAt = &now
	}
}

// Get returns the current progress summary for taskID.
func (t *Tracker) Get(taskID string) (Summary, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tp, ok := t.tasks[taskID]
	if !ok {
		return Summary{}, false
	}
	steps := append([]Step(nil), tp.steps...)
	summary := Summary{TaskID: taskID, Steps: steps}
	if len(steps) > 0 {
		last := steps[len(steps)-1]
		summary.CurrentStage = last.Stage
		summary.OverallPercent = last.Percent
	}
	return summary, true
}

// Executing returns a summary for every task currently tracked with an
// open (unended) final step.
func (t *Tracker) Executing() []Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Summary
	for id, tp := range t.tasks {
		if len(tp.steps) == 0 {
			continue
		}
		last := tp.steps[len(tp.steps)-1]
		if last.EndedAt != nil {
			continue
		}
		out = append(out, Summary{
			TaskID:         id,
			CurrentStage:   last.Stage,
			OverallPercent: last.Percent,
			Steps:          append([]Step(nil), tp.steps...),
		})
	}
	return out
}

// Forget drops all progress for taskID, e.g. once its terminal state has
// been durably recorded elsewhere.
func (t *Tracker) Forget(taskID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tasks, taskID)
}
