// Package state implements the State Manager (C7): the authoritative task
// lifecycle store, with snapshot-plus-journal persistence adapted from the
// resource manager's buffered-channel checkpoint loop, §4.7.
package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	fortitude "github.com/99souls/fortitude"
	"github.com/99souls/fortitude/engine/models"
)

// StateEvent is published on every successful transition, §4.7.
type StateEvent struct {
	TaskID    string
	From      models.TaskState
	To        models.TaskState
	Actor     string
	Reason    string
	At        time.Time
}

// Metrics is the aggregate view returned by Manager.Metrics.
type Metrics struct {
	TotalTransitions int
	Successful       int
	Failed           int
	AvgLatency       time.Duration
	ByState          map[models.TaskState]int
}

// lifecycleRecord is the in-memory + journaled representation of one task.
type lifecycleRecord struct {
	Task        models.ResearchTask       `json:"task"`
	Transitions []models.StateTransition  `json:"transitions"`
}

// Config controls persistence cadence and bounds, §4.7.
type Config struct {
	SnapshotPath      string
	SnapshotInterval  time.Duration
	MaxHistoryEntries int
	SubscriberBuffer  int
}

// DefaultConfig matches the teacher's checkpoint cadence in tests.
func DefaultConfig() Config {
	return Config{
		SnapshotInterval:  100 * time.Millisecond,
		MaxHistoryEntries: 100,
		SubscriberBuffer:  256,
	}
}

// Manager is the authoritative lifecycle store, §4.7.
type Manager struct {
	cfg   Config
	clock func() time.Time

	mu        sync.RWMutex
	records   map[string]*lifecycleRecord
	dirty     bool
	started   bool

	subMu sync.Mutex
	subs  []chan StateEvent

	totalTransitions int
	successful       int
	failed           int
	latencySum       time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New constructs a Manager. If cfg.SnapshotPath is set, a prior snapshot is
// loaded synchronously and a background goroutine periodically persists
// further changes.
func New(cfg Config) (*Manager, error) {
	if cfg.MaxHistoryEntries <= 0 {
		cfg.MaxHistoryEntries = 100
	}
	m := &Manager{
		cfg:     cfg,
		clock:   time.Now,
		records: make(map[string]*lifecycleRecord),
		stopCh:  make(chan struct{}),
		started: true,
	}
	if cfg.SnapshotPath != "" {
		if err := m.loadSnapshot(); err != nil {
			return nil, err
		}
		m.wg.Add(1)
		go m.snapshotLoop()
	}
	return m, nil
}

// TrackCreation registers a newly submitted task at its initial state.
func (m *Manager) TrackCreation(task *models.ResearchTask) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *task
	m.records[task.ID] = &lifecycleRecord{Task: cp}
	m.dirty = true
}

// Transition validates and applies a state change, §4.7.
func (m *Manager) Transition(ctx context.Context, taskID string, to models.TaskState, actor, reason string) error {
	if !m.started {
		return fortitude.New(fortitude.ErrNotInitialized, "state manager is shut down")
	}

	m.mu.Lock()
	rec, ok := m.records[taskID]
	if !ok {
		m.mu.Unlock()
		return fortitude.New(fortitude.ErrInvalidInput, "unknown task %s", taskID)
	}
	from := rec.Task.State
	if !models.IsAllowedTransition(from, to) {
		m.mu.Unlock()
		return fortitude.New(fortitude.ErrInvalidTransition, "cannot transition %s -> %s", from, to)
	}

	now := m.clock()
	rec.Task.State = to
	rec.Transitions = append(rec.Transitions, models.StateTransition{
		TaskID: taskID, From: from, To: to, Actor: actor, Reason: reason, At: now,
	})
	if len(rec.Transitions) > m.cfg.MaxHistoryEntries {
		rec.Transitions = rec.Transitions[len(rec.Transitions)-m.cfg.MaxHistoryEntries:]
	}
	m.dirty = true

	m.totalTransitions++
	if to.Terminal() {
		if to == models.StateCompleted {
			m.successful++
		} else {
			m.failed++
		}
	}
	if len(rec.Transitions) > 0 {
		m.latencySum += now.Sub(rec.Task.CreatedAt)
	}
	m.mu.Unlock()

	m.publish(StateEvent{TaskID: taskID, From: from, To: to, Actor: actor, Reason: reason, At: now})
	return nil
}

// Lifecycle returns the current state, transitions, and per-state durations
// for one task.
func (m *Manager) Lifecycle(taskID string) (models.TaskState, []models.StateTransition, map[models.TaskState]time.Duration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[taskID]
	if !ok {
		return "", nil, nil, false
	}
	durations := stateDurations(rec, m.clock())
	out := append([]models.StateTransition(nil), rec.Transitions...)
	return rec.Task.State, out, durations, true
}

func stateDurations(rec *lifecycleRecord, now time.Time) map[models.TaskState]time.Duration {
	durations := make(map[models.TaskState]time.Duration)
	cursor := rec.Task.CreatedAt
	state := models.StatePending
	for _, t := range rec.Transitions {
		durations[state] += t.At.Sub(cursor)
		cursor = t.At
		state = t.To
	}
	if !state.Terminal() {
		durations[state] += now.Sub(cursor)
	}
	return durations
}

// TasksByState lists task ids currently in state s.
func (m *Manager) TasksByState(s models.TaskState) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, rec := range m.records {
		if rec.Task.State == s {
			ids = append(ids, id)
		}
	}
	return ids
}

// CountByState returns len(TasksByState(s)) without allocating the slice.
func (m *Manager) CountByState(s models.TaskState) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, rec := range m.records {
		if rec.Task.State == s {
			n++
		}
	}
	return n
}

// Subscribe returns a bounded channel of StateEvents. A slow subscriber sees
// drops; it never blocks Transition.
func (m *Manager) Subscribe() <-chan StateEvent {
	buf := m.cfg.SubscriberBuffer
	if buf <= 0 {
		buf = 256
	}
	ch := make(chan StateEvent, buf)
	m.subMu.Lock()
	m.subs = append(m.subs, ch)
	m.subMu.Unlock()
	return ch
}

func (m *Manager) publish(evt StateEvent) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Metrics summarizes transition volume and outcomes across all tasks.
func (m *Manager) Metrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byState := make(map[models.TaskState]int)
	for _, rec := range m.records {
		byState[rec.Task.State]++
	}
	avg := time.Duration(0)
	if m.totalTransitions > 0 {
		avg = m.latencySum / time.Duration(m.totalTransitions)
	}
	return Metrics{
		TotalTransitions: m.totalTransitions,
		Successful:       m.successful,
		Failed:           m.failed,
		AvgLatency:       avg,
		ByState:          byState,
	}
}

// Shutdown stops the snapshot goroutine (if any) after a final flush and
// rejects further writes.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.started = false
	m.mu.Unlock()

	if m.cfg.SnapshotPath == "" {
		return nil
	}
	close(m.stopCh)
	done := make(chan struct{})
	go func() { m.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		return fortitude.New(fortitude.ErrShutdownTimeout, "state manager did not flush in time")
	}
	return m.writeSnapshot()
}

func (m *Manager) snapshotLoop() {
	defer m.wg.Done()
	interval := m.cfg.SnapshotInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			dirty := m.dirty
			m.dirty = false
			m.mu.Unlock()
			if dirty {
				_ = m.writeSnapshot()
			}
		case <-m.stopCh:
			return
		}
	}
}

// snapshotFile is the on-disk shape for a full periodic snapshot.
type snapshotFile struct {
	Records map[string]*lifecycleRecord `json:"records"`
}

// writeSnapshot persists the full in-memory state atomically: it writes to
// a temp file in the same directory, then renames over the target, so a
// reader never observes a partially written snapshot.
func (m *Manager) writeSnapshot() error {
	m.mu.RLock()
	snap := snapshotFile{Records: make(map[string]*lifecycleRecord, len(m.records))}
	for id, rec := range m.records {
		cp := *rec
		snap.Records[id] = &cp
	}
	m.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return fortitude.Wrap(fortitude.ErrStorageError, err, "marshal state snapshot")
	}

	dir := filepath.Dir(m.cfg.SnapshotPath)
	tmp, err := os.CreateTemp(dir, ".state-snapshot-*.tmp")
	if err != nil {
		return fortitude.Wrap(fortitude.ErrStorageError, err, "create temp snapshot file")
	}
	tmpPath := tmp.Name()
	writer := bufio.NewWriter(tmp)
	if _, err := writer.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fortitude.Wrap(fortitude.ErrStorageError, err, "write temp snapshot file")
	}
	if err := writer.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fortitude.Wrap(fortitude.ErrStorageError, err, "flush temp snapshot file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fortitude.Wrap(fortitude.ErrStorageError, err, "close temp snapshot file")
	}
	if err := os.Rename(tmpPath, m.cfg.SnapshotPath); err != nil {
		os.Remove(tmpPath)
		return fortitude.Wrap(fortitude.ErrStorageError, err, "rename snapshot into place")
	}
	return nil
}

func (m *Manager) loadSnapshot() error {
	data, err := os.ReadFile(m.cfg.SnapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fortitude.Wrap(fortitude.ErrStorageError, err, "read state snapshot")
	}
	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return fortitude.Wrap(fortitude.ErrStorageError, err, fmt.Sprintf("parse state snapshot %s", m.cfg.SnapshotPath))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, rec := range snap.Records {
		m.records[id] = rec
	}
	return nil
}
