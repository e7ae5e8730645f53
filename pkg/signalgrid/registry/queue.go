package registry

import (
	"sync"
	"time"

	"github.com/signalgrid/signalgrid/pkg/signalgrid/event"
)

// Queue is a bounded FIFO of events with its own lock, so delivery to
// unrelated consumers never serializes. Push fails when full rather than
// blocking; the router records the drop as an overflow.
type Queue struct {
	mu       sync.Mutex
	items    []*event.Event
	capacity int
}

// NewQueue creates a queue with the given fixed capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{capacity: capacity}
}

// Push appends an event. Returns false when the queue is full.
func (q *Queue) Push(evt *event.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.capacity {
		return false
	}
	q.items = append(q.items, evt)
	return true
}

// Pop removes and returns the oldest event.
func (q *Queue) Pop() (*event.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	evt := q.items[0]
	q.items = q.items[1:]
	return evt, true
}

// Len returns the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Cap returns the fixed capacity.
func (q *Queue) Cap() int {
	return q.capacity
}

// Utilization returns depth/capacity in [0,1].
func (q *Queue) Utilization() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return float64(len(q.items)) / float64(q.capacity)
}

// PruneOlderThan drops entries created before cutoff from the front of the
// queue and returns how many were removed. Pruning stops at the first fresh
// entry; FIFO order of survivors is preserved.
func (q *Queue) PruneOlderThan(cutoff time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for n < len(q.items) && q.items[n].CreatedAt.Before(cutoff) {
		n++
	}
	if n > 0 {
		q.items = q.items[n:]
	}
	return n
}
