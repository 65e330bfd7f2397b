package monitor

import (
	"sync"
	"time"
)

// debouncer coalesces a burst of raw filesystem notifications for the same
// path into a single flush after `window` has elapsed with no further
// activity, §4.1 step 1.
type debouncer struct {
	window time.Duration
	clock  Clock

	mu      sync.Mutex
	pending map[string]*pendingEntry
	timers  map[string]*time.Timer
	flush   func(path string, lastOp string, createdRecently bool)
}

type pendingEntry struct {
	lastOp    string
	firstSeen time.Time
}

func newDebouncer(window time.Duration, clock Clock, flush func(path, lastOp string, createdRecently bool)) *debouncer {
	if clock == nil {
		clock = SystemClock
	}
	return &debouncer{
		window:  window,
		clock:   clock,
		pending: make(map[string]*pendingEntry),
		timers:  make(map[string]*time.Timer),
		flush:   flush,
	}
}

// Notify records a raw OS event for path with the detected op
// ("create"/"write"/"remove"/"rename"); it (re)starts the debounce timer.
func (d *debouncer) Notify(path, op string, recentlyCreated bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.pending[path]
	if !ok {
		entry = &pendingEntry{firstSeen: d.clock.Now()}
		d.pending[path] = entry
	}
	entry.lastOp = op

	if timer, ok := d.timers[path]; ok {
		timer.Stop()
	}
	d.timers[path] = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		e, ok := d.pending[path]
		if !ok {
			d.mu.Unlock()
			return
		}
		delete(d.pending, path)
		delete(d.timers, path)
		d.mu.Unlock()
		d.flush(path, e.lastOp, recentlyCreated)
	})
}

// Stop cancels all pending timers without flushing them.
func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.timers {
		t.Stop()
	}
	d.pending = make(map[string]*pendingEntry)
	d.timers = make(map[string]*time.Timer)
}
