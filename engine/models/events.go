// Package models holds the entity types shared across every component of
// the proactive research engine (§3 of the design spec).
package models

import "time"

// EventKind classifies a filesystem change observed by the File-Change Monitor.
type EventKind string

const (
	EventCreate EventKind = "Create"
	EventWrite  EventKind = "Write"
	EventRemove EventKind = "Remove"
	EventRename EventKind = "Rename"
	EventOther  EventKind = "Other"
)

// basePriority maps an EventKind to its default priority, per §4.1 step 4.
func (k EventKind) basePriority() int {
	switch k {
	case EventCreate:
		return 8
	case EventWrite:
		return 6
	case EventRename:
		return 5
	case EventRemove:
		return 4
	default:
		return 3
	}
}

// FileEvent is a single, debounced, filtered, priority-assigned file change.
type FileEvent struct {
	Path          string
	Kind          EventKind
	Timestamp     time.Time
	Priority      int
	ShouldAnalyze bool
}

// NewFileEvent builds a FileEvent with the default priority for its kind.
func NewFileEvent(path string, kind EventKind, at time.Time) FileEvent {
	return FileEvent{
		Path:          path,
		Kind:          kind,
		Timestamp:     at,
		Priority:      kind.basePriority(),
		ShouldAnalyze: true,
	}
}

// Band returns which of the Monitor's three priority bands this event falls
// into: High 8-10, Normal 4-7, Low <=3.
func (e FileEvent) Band() string {
	switch {
	case e.Priority >= 8:
		return "high"
	case e.Priority >= 4:
		return "normal"
	default:
		return "low"
	}
}
