package series

import (
	"sort"
	"sync"

	"blocklag/internal/model"
)

// DefaultCapacity is the number of samples the window retains.
const DefaultCapacity = 30

// RedrawFunc receives the authoritative window after every mutation.
// It runs on the mutating goroutine and must not call back into
// Monitor.Select or Ring methods.
type RedrawFunc func(Snapshot)

// Snapshot is a point-in-time copy of the window plus lifetime counters.
type Snapshot struct {
	Samples  []model.Sample // Oldest first
	Capacity int            // Window capacity
	Pushed   uint64         // Samples accepted since construction
	Evicted  uint64         // Samples dropped to honor the capacity
	Resets   uint64         // Times the window was cleared
}

// Ring is a bounded FIFO of the most recent latency samples. When full,
// the oldest sample is dropped to make room. All methods are safe for
// concurrent use.
type Ring struct {
	mu      sync.Mutex
	samples []model.Sample
	cap     int
	redraw  RedrawFunc

	pushed  uint64
	evicted uint64
	resets  uint64
}

// NewRing creates a window holding at most capacity samples. A capacity
// of zero or less falls back to DefaultCapacity. redraw may be nil.
func NewRing(capacity int, redraw RedrawFunc) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{
		samples: make([]model.Sample, 0, capacity),
		cap:     capacity,
		redraw:  redraw,
	}
}

// Push appends s, evicting the oldest entry when the window is full,
// then triggers a redraw with the resulting snapshot.
func (r *Ring) Push(s model.Sample) {
	r.mu.Lock()
	if len(r.samples) == r.cap {
		copy(r.samples, r.samples[1:])
		r.samples[len(r.samples)-1] = s
		r.evicted++
	} else {
		r.samples = append(r.samples, s)
	}
	r.pushed++
	snap := r.snapshotLocked()
	r.mu.Unlock()

	if r.redraw != nil {
		r.redraw(snap)
	}
}

// Reset empties the window and triggers a redraw reflecting the empty
// state.
func (r *Ring) Reset() {
	r.mu.Lock()
	r.samples = r.samples[:0]
	r.resets++
	snap := r.snapshotLocked()
	r.mu.Unlock()

	if r.redraw != nil {
		r.redraw(snap)
	}
}

// Snapshot returns a copy of the current window and counters.
func (r *Ring) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Len returns the number of samples currently held.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

// Cap returns the window capacity.
func (r *Ring) Cap() int {
	return r.cap
}

func (r *Ring) snapshotLocked() Snapshot {
	out := make([]model.Sample, len(r.samples))
	copy(out, r.samples)
	return Snapshot{
		Samples:  out,
		Capacity: r.cap,
		Pushed:   r.pushed,
		Evicted:  r.evicted,
		Resets:   r.resets,
	}
}

// Latest returns the newest sample in the snapshot.
func (s Snapshot) Latest() (model.Sample, bool) {
	if len(s.Samples) == 0 {
		return model.Sample{}, false
	}
	return s.Samples[len(s.Samples)-1], true
}

// Min returns the smallest latency in the window, in seconds. Zero when
// the window is empty.
func (s Snapshot) Min() float64 {
	if len(s.Samples) == 0 {
		return 0
	}
	min := s.Samples[0].Latency
	for _, sm := range s.Samples[1:] {
		if sm.Latency < min {
			min = sm.Latency
		}
	}
	return min
}

// Max returns the largest latency in the window, in seconds. Zero when
// the window is empty.
func (s Snapshot) Max() float64 {
	if len(s.Samples) == 0 {
		return 0
	}
	max := s.Samples[0].Latency
	for _, sm := range s.Samples[1:] {
		if sm.Latency > max {
			max = sm.Latency
		}
	}
	return max
}

// Avg returns the mean latency of the window, in seconds. Zero when the
// window is empty.
func (s Snapshot) Avg() float64 {
	if len(s.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, sm := range s.Samples {
		sum += sm.Latency
	}
	return sum / float64(len(s.Samples))
}

// P95 returns the 95th-percentile latency of the window, in seconds.
// Zero when the window is empty.
func (s Snapshot) P95() float64 {
	if len(s.Samples) == 0 {
		return 0
	}
	vals := make([]float64, len(s.Samples))
	for i, sm := range s.Samples {
		vals[i] = sm.Latency
	}
	sort.Float64s(vals)

	idx := int(float64(len(vals)) * 0.95)
	if idx >= len(vals) {
		idx = len(vals) - 1
	}
	return vals[idx]
}
