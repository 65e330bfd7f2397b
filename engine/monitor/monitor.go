// Package monitor implements the File-Change Monitor (C1): a debounced,
// rate-limited, priority-classified stream of file events from watched
// roots, §4.1.
package monitor

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	fortitude "github.com/99souls/fortitude"
	"github.com/99souls/fortitude/engine/models"
)

// Monitor watches a set of root directories and emits a prioritized,
// debounced, filtered stream of FileEvent.
type Monitor struct {
	cfg    Config
	clock  Clock
	filter *filter

	watcher *fsnotify.Watcher
	queue   *bandQueue
	limiter *tokenBucket
	limMu   sync.Mutex

	debouncer *debouncer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	notify chan struct{} // signalled whenever queue gains an item

	closeOnce sync.Once
}

// New constructs a Monitor over the given roots. Call Shutdown to stop it.
func New(ctx context.Context, roots []string, cfg Config) (*Monitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fortitude.Wrap(fortitude.ErrStorageError, err, "create fsnotify watcher")
	}

	mctx, cancel := context.WithCancel(ctx)
	m := &Monitor{
		cfg:     cfg,
		clock:   SystemClock,
		filter:  newFilter(cfg),
		watcher: watcher,
		queue:   newBandQueue(cfg.MaxQueue),
		limiter: newTokenBucket(float64(cfg.MaxEventsPerSecond), time.Now()),
		ctx:     mctx,
		cancel:  cancel,
		notify:  make(chan struct{}, 1),
	}
	m.debouncer = newDebouncer(cfg.debounceDuration(), m.clock, m.onDebouncedFlush)

	for _, root := range roots {
		if err := m.AddPath(root); err != nil {
			log.Printf("monitor: failed to watch root %q: %v", root, err)
		}
	}

	m.wg.Add(1)
	go m.loop()

	return m, nil
}

// AddPath registers an additional directory for watching at runtime.
func (m *Monitor) AddPath(path string) error {
	if err := m.watcher.Add(path); err != nil {
		return fortitude.Wrap(fortitude.ErrStorageError, err, "watch path %s", path)
	}
	return nil
}

func (m *Monitor) loop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.ctx.Done():
			m.debouncer.Stop()
			return
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			m.onRawEvent(ev)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			if err != nil {
				log.Printf("monitor: watcher error: %v", err)
			}
		}
	}
}

func (m *Monitor) onRawEvent(ev fsnotify.Event) {
	op := classifyOp(ev)
	recentlyCreated := wasRecentlyCreated(ev.Name, m.clock.Now())
	m.debouncer.Notify(ev.Name, op, recentlyCreated)
}

func classifyOp(ev fsnotify.Event) string {
	switch {
	case ev.Op&fsnotify.Create != 0:
		return "create"
	case ev.Op&fsnotify.Write != 0:
		return "write"
	case ev.Op&fsnotify.Remove != 0:
		return "remove"
	case ev.Op&fsnotify.Rename != 0:
		return "rename"
	default:
		return "other"
	}
}

// wasRecentlyCreated reports whether path exists and its modification time
// is less than 5s before now. The kind mapping itself is in resolveKind.
func wasRecentlyCreated(path string, now time.Time) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return now.Sub(info.ModTime()) < 5*time.Second
}

func (m *Monitor) onDebouncedFlush(path, lastOp string, recentlyCreatedAtNotify bool) {
	kind := resolveKind(path, lastOp)

	if !m.filter.Allowed(path) {
		return
	}

	now := m.clock.Now()

	m.limMu.Lock()
	allowed := m.limiter.Allow(now)
	m.limMu.Unlock()
	if !allowed {
		log.Printf("monitor: rate limit exceeded, dropping event for %s", path)
		return
	}

	if info, err := os.Stat(path); err == nil {
		maxBytes := m.cfg.MaxFileSizeMB * 1024 * 1024
		if maxBytes > 0 && info.Size() > maxBytes {
			return
		}
	}

	ev := models.NewFileEvent(path, kind, now)
	ev.ShouldAnalyze = m.filter.Allowed(path)
	m.queue.Push(ev)

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// resolveKind re-derives the final EventKind at flush time per §4.1 step 1:
// consult current existence and creation recency.
func resolveKind(path, lastOp string) models.EventKind {
	if lastOp == "rename" {
		return models.EventRename
	}
	info, err := os.Stat(path)
	if err != nil {
		return models.EventRemove
	}
	if time.Since(info.ModTime()) < 5*time.Second && lastOp == "create" {
		return models.EventCreate
	}
	return models.EventWrite
}

// NextEvent returns the next event in strict High>Normal>Low FIFO order,
// blocking until one is available or ctx is done.
func (m *Monitor) NextEvent(ctx context.Context) (models.FileEvent, error) {
	for {
		if ev, ok := m.queue.Pop(); ok {
			return ev, nil
		}
		select {
		case <-ctx.Done():
			return models.FileEvent{}, fortitude.New(fortitude.ErrCancelled, "next event cancelled")
		case <-m.ctx.Done():
			return models.FileEvent{}, fortitude.New(fortitude.ErrNotInitialized, "monitor shut down")
		case <-m.notify:
		}
	}
}

// QueueDepth returns the total number of buffered, not-yet-consumed events.
func (m *Monitor) QueueDepth() int { return m.queue.Len() }

// DroppedCount returns the cumulative count of events dropped for backpressure.
func (m *Monitor) DroppedCount() int64 { return m.queue.Dropped() }

// Shutdown stops the watcher, awaiting the background loop with a 500ms
// timeout per §4.1's failure semantics.
func (m *Monitor) Shutdown() error {
	var shutdownErr error
	m.closeOnce.Do(func() {
		m.cancel()
		_ = m.watcher.Close()

		done := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(500 * time.Millisecond):
			shutdownErr = fortitude.New(fortitude.ErrShutdownTimeout, "monitor shutdown exceeded 500ms grace period")
		}
	})
	return shutdownErr
}
