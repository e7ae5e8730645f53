package router

import (
	"sort"
	"sync"
	"time"
)

// DefaultLatencyWindow is how many recent dispatch latencies feed the
// average and p95 figures.
const DefaultLatencyWindow = 1000

// latencyWindow keeps the last N dispatch latencies in a ring.
type latencyWindow struct {
	mu       sync.Mutex
	samples  []time.Duration
	capacity int
	next     int
	count    int
}

func newLatencyWindow(capacity int) *latencyWindow {
	if capacity <= 0 {
		capacity = DefaultLatencyWindow
	}
	return &latencyWindow{
		samples:  make([]time.Duration, capacity),
		capacity: capacity,
	}
}

func (w *latencyWindow) add(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples[w.next] = d
	w.next = (w.next + 1) % w.capacity
	if w.count < w.capacity {
		w.count++
	}
}

// stats returns the average and p95 latency over the retained samples.
func (w *latencyWindow) stats() (avg, p95 time.Duration) {
	w.mu.Lock()
	snapshot := make([]time.Duration, w.count)
	copy(snapshot, w.samples[:w.count])
	w.mu.Unlock()

	if len(snapshot) == 0 {
		return 0, 0
	}

	var total time.Duration
	for _, d := range snapshot {
		total += d
	}
	avg = total / time.Duration(len(snapshot))

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i] < snapshot[j] })
	idx := (len(snapshot)*95 + 99) / 100
	if idx > 0 {
		idx--
	}
	p95 = snapshot[idx]
	return avg, p95
}
