// Package notify implements the Notification System (C9): effective-settings
// resolution, quiet-hours and frequency handling, and per-channel isolated
// delivery, §4.9. It depends only on the engine/models types and the
// preferences package's read surface, never the other way around.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	fortitude "github.com/99souls/fortitude"
	"github.com/99souls/fortitude/engine/models"
	"github.com/99souls/fortitude/engine/notify/channels"
)

// Outcome reports what Send did with a notification.
type Outcome string

const (
	OutcomeDelivered Outcome = "Delivered"
	OutcomeFiltered  Outcome = "Filtered"
	OutcomeDeferred  Outcome = "Deferred"
	OutcomeDropped   Outcome = "Dropped"
)

// ProfileStore is the read surface the Preference Manager provides.
type ProfileStore interface {
	Get(profileID string) (models.UserProfile, bool)
}

// ChannelCounters tracks per-channel delivery outcomes.
type ChannelCounters struct {
	Success int
	Failure int
}

// Config controls the Manager's background loops.
type Config struct {
	// SchedulePollInterval controls how often Scheduled queues are checked
	// against their cron expression. Defaults to one second.
	SchedulePollInterval time.Duration
}

func DefaultConfig() Config {
	return Config{SchedulePollInterval: time.Second}
}

type batchKey struct {
	profileID string
	size      int
	timeout   time.Duration
}

type pendingItem struct {
	n                  models.Notification
	channelList        []models.Channel
	channelSettings    map[models.ChannelKind]models.ChannelSettings
	overrideQuietHours bool
	globalQuietHours   *models.TimeWindow
}

type batchQueue struct {
	mu    sync.Mutex
	items []pendingItem
	timer *time.Timer
}

type scheduleQueue struct {
	mu       sync.Mutex
	schedule cron.Schedule
	items    []pendingItem
}

// Manager resolves, filters, batches, and delivers notifications.
type Manager struct {
	cfg   Config
	clock func() time.Time

	store    ProfileStore
	channels map[models.ChannelKind]channels.Deliverer

	mu       sync.Mutex
	started  bool
	batches  map[batchKey]*batchQueue
	schedule map[string]*scheduleQueue
	counters map[models.ChannelKind]*ChannelCounters

	filtered          int
	droppedQuietHours int

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewManager builds a Manager with the standard four channels wired in.
func NewManager(store ProfileStore, cfg Config) *Manager {
	if cfg.SchedulePollInterval <= 0 {
		cfg.SchedulePollInterval = time.Second
	}
	return &Manager{
		cfg:   cfg,
		clock: time.Now,
		store: store,
		channels: map[models.ChannelKind]channels.Deliverer{
			models.ChannelCLI:   channels.NewCLI(),
			models.ChannelFile:  channels.NewFile(),
			models.ChannelAPI:   channels.NewAPI(),
			models.ChannelSlack: channels.NewSlack(),
		},
		batches:  make(map[batchKey]*batchQueue),
		schedule: make(map[string]*scheduleQueue),
		counters: make(map[models.ChannelKind]*ChannelCounters),
	}
}

// WithChannel overrides or adds a channel deliverer, e.g. for tests.
func (m *Manager) WithChannel(kind models.ChannelKind, d channels.Deliverer) *Manager {
	m.channels[kind] = d
	return m
}

// Start makes the Manager accept Send calls and begins its schedule poller.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.stopCh = make(chan struct{})
	m.mu.Unlock()

	m.wg.Add(1)
	go m.scheduleLoop()
}

// Stop drains in-flight deliveries with a bounded timeout and rejects
// further Send calls.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	close(m.stopCh)
	m.mu.Unlock()

	done := make(chan struct{})
	go func() { m.wg.Wait(); close(done) }()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fortitude.New(fortitude.ErrShutdownTimeout, "notification manager did not drain in time")
	}
}

// Send resolves effective settings for profileID and routes n accordingly.
func (m *Manager) Send(ctx context.Context, profileID string, n models.Notification) (Outcome, error) {
	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if !started {
		return "", fortitude.New(fortitude.ErrNotInitialized, "notification manager is not started")
	}

	profile, ok := m.store.Get(profileID)
	if !ok {
		return "", fortitude.New(fortitude.ErrInvalidInput, "unknown profile %s", profileID)
	}

	effective := resolveEffective(profile.Preferences, n)
	if !effective.Enabled {
		m.mu.Lock()
		m.filtered++
		m.mu.Unlock()
		return OutcomeFiltered, nil
	}

	item := pendingItem{
		n:                  n,
		channelList:        effective.Channels,
		channelSettings:    profile.Preferences.ChannelSettings,
		overrideQuietHours: effective.OverrideQuietHours,
		globalQuietHours:   effective.GlobalQuietHours,
	}

	switch effective.Frequency.Kind {
	case models.FrequencyDisabled:
		return OutcomeDropped, nil
	case models.FrequencyBatched:
		m.enqueueBatch(profileID, effective.Frequency, item)
		return OutcomeDeferred, nil
	case models.FrequencyScheduled:
		m.enqueueSchedule(effective.Frequency.Cron, item)
		return OutcomeDeferred, nil
	default: // Immediate
		m.dispatch(ctx, item)
		return OutcomeDelivered, nil
	}
}

func (m *Manager) enqueueBatch(profileID string, freq models.Frequency, item pendingItem) {
	key := batchKey{profileID: profileID, size: freq.Size, timeout: freq.Timeout}

	m.mu.Lock()
	q, ok := m.batches[key]
	if !ok {
		q = &batchQueue{}
		m.batches[key] = q
	}
	m.mu.Unlock()

	q.mu.Lock()
	q.items = append(q.items, item)
	flush := len(q.items) >= freq.Size
	if !flush && q.timer == nil {
		q.timer = time.AfterFunc(freq.Timeout, func() { m.flushBatch(key) })
	}
	q.mu.Unlock()

	if flush {
		m.flushBatch(key)
	}
}

func (m *Manager) flushBatch(key batchKey) {
	m.mu.Lock()
	q, ok := m.batches[key]
	m.mu.Unlock()
	if !ok {
		return
	}

	q.mu.Lock()
	items := q.items
	q.items = nil
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.mu.Unlock()

	for _, it := range items {
		m.dispatch(context.Background(), it)
	}
}

func (m *Manager) enqueueSchedule(cronExpr string, item pendingItem) {
	m.mu.Lock()
	q, ok := m.schedule[cronExpr]
	if !ok {
		sched, err := cron.ParseStandard(cronExpr)
		if err != nil {
			m.mu.Unlock()
			return
		}
		q = &scheduleQueue{schedule: sched}
		m.schedule[cronExpr] = q
	}
	m.mu.Unlock()

	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

// scheduleLoop periodically checks every Scheduled queue against its cron
// expression and flushes queues whose next tick has arrived.
func (m *Manager) scheduleLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.SchedulePollInterval)
	defer ticker.Stop()

	lastRun := make(map[string]time.Time)
	for {
		select {
		case <-ticker.C:
			m.pollSchedules(m.clock(), lastRun)
		case <-m.stopCh:
			return
		}
	}
}

func (m *Manager) pollSchedules(now time.Time, lastRun map[string]time.Time) {
	m.mu.Lock()
	queues := make(map[string]*scheduleQueue, len(m.schedule))
	for expr, q := range m.schedule {
		queues[expr] = q
	}
	m.mu.Unlock()

	for expr, q := range queues {
		last, ok := lastRun[expr]
		if !ok {
			last = now.Add(-m.cfg.SchedulePollInterval)
		}
		next := q.schedule.Next(last)
		if next.After(now) {
			continue
		}
		lastRun[expr] = now

		q.mu.Lock()
		items := q.items
		q.items = nil
		q.mu.Unlock()
		for _, it := range items {
			m.dispatch(context.Background(), it)
		}
	}
}

// dispatch delivers item to every resolved channel, applying per-channel
// quiet-hours suppression and updating that channel's counters.
func (m *Manager) dispatch(ctx context.Context, item pendingItem) {
	now := m.clock()
	for _, target := range item.channelList {
		cs := item.channelSettings[target.Kind]
		quiet := !item.overrideQuietHours && (inQuietWindow(now, item.globalQuietHours) || inQuietWindow(now, cs.QuietHours))
		if quiet && cs.DropDuringQuiet {
			m.mu.Lock()
			m.droppedQuietHours++
			m.mu.Unlock()
			continue
		}

		d, ok := m.channels[target.Kind]
		if !ok {
			continue
		}
		err := d.Deliver(ctx, item.n, target)
		m.recordOutcome(target.Kind, err == nil)
	}
}

func (m *Manager) recordOutcome(kind models.ChannelKind, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, exists := m.counters[kind]
	if !exists {
		c = &ChannelCounters{}
		m.counters[kind] = c
	}
	if ok {
		c.Success++
	} else {
		c.Failure++
	}
}

// ChannelStats returns a snapshot of per-channel delivery counters.
func (m *Manager) ChannelStats() map[models.ChannelKind]ChannelCounters {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[models.ChannelKind]ChannelCounters, len(m.counters))
	for k, v := range m.counters {
		out[k] = *v
	}
	return out
}

// Filtered returns how many Send calls were dropped by a disabled effective
// setting (step 2 of the send algorithm).
func (m *Manager) Filtered() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filtered
}

// DroppedQuietHours returns how many channel deliveries were dropped for
// arriving during quiet hours with drop_during_quiet=true.
func (m *Manager) DroppedQuietHours() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.droppedQuietHours
}
