package router

import (
	"sync"
	"time"

	"github.com/signalgrid/signalgrid/pkg/signalgrid/event"
)

// DefaultHistoryCapacity bounds the routing history ring buffer.
const DefaultHistoryCapacity = 1000

// HistoryEntry records one completed dispatch.
type HistoryEntry struct {
	EventID    string
	Category   event.Category
	Origin     string
	Delivered  []string
	RuleID     string
	HopCount   int
	RecordedAt time.Time
}

// History is an append-only fixed-capacity ring buffer of routing records.
// Once full, the oldest entry is evicted per append. A single producer's
// successive dispatches appear in call order.
type History struct {
	mu       sync.Mutex
	entries  []HistoryEntry
	capacity int
	start    int // index of oldest entry
	count    int
}

// NewHistory creates a ring with the given capacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		entries:  make([]HistoryEntry, capacity),
		capacity: capacity,
	}
}

// Append records an entry, evicting the oldest when full.
func (h *History) Append(e HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	idx := (h.start + h.count) % h.capacity
	h.entries[idx] = e
	if h.count < h.capacity {
		h.count++
	} else {
		h.start = (h.start + 1) % h.capacity
	}
}

// Len returns the number of retained entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Entries returns retained entries, oldest first.
func (h *History) Entries() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]HistoryEntry, h.count)
	for i := 0; i < h.count; i++ {
		out[i] = h.entries[(h.start+i)%h.capacity]
	}
	return out
}
