package tasks

import (
	"container/heap"
	"time"

	"github.com/99souls/fortitude/engine/models"
)

// readyQueue orders tasks by (priority desc, not_before asc, created_at asc), §4.4.
type readyQueue struct {
	items []*models.ResearchTask
}

func newReadyQueue() *readyQueue { return &readyQueue{} }

func (q *readyQueue) Len() int { return len(q.items) }

func (q *readyQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.NotBefore.Equal(b.NotBefore) {
		return a.NotBefore.Before(b.NotBefore)
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

func (q *readyQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *readyQueue) Push(x any) { q.items = append(q.items, x.(*models.ResearchTask)) }

func (q *readyQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	q.items = old[:n-1]
	return item
}

// PushTask inserts t into the heap.
func (q *readyQueue) PushTask(t *models.ResearchTask) { heap.Push(q, t) }

// PopReady removes and returns the highest-priority task whose not_before is
// <= now, or nil if none qualifies yet.
func (q *readyQueue) PopReady(now time.Time) *models.ResearchTask {
	best := -1
	for i, t := range q.items {
		if t.NotBefore.After(now) {
			continue
		}
		if best == -1 || q.Less(i, best) {
			best = i
		}
	}
	if best == -1 {
		return nil
	}
	return heap.Remove(q, best).(*models.ResearchTask)
}

// NextNotBefore returns the earliest not_before among queued tasks, used to
// size the scheduler's timer wait.
func (q *readyQueue) NextNotBefore() (time.Time, bool) {
	if q.Len() == 0 {
		return time.Time{}, false
	}
	earliest := q.items[0].NotBefore
	for _, t := range q.items[1:] {
		if t.NotBefore.Before(earliest) {
			earliest = t.NotBefore
		}
	}
	return earliest, true
}

// Remove deletes a task by id, used for cancellation of queued tasks.
func (q *readyQueue) Remove(id string) bool {
	for i, t := range q.items {
		if t.ID == id {
			heap.Remove(q, i)
			return true
		}
	}
	return false
}
