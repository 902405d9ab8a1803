package download

import (
	"sync"
)

// Snapshot is the tracker state handed to a Renderer after each completion
type Snapshot struct {
	Stats
	Workers int
	Percent float64
	Label   string
	Last    Outcome
}

// Renderer displays progress snapshots.
// Render is always called with the tracker lock held, so calls never overlap.
type Renderer interface {
	Render(s Snapshot)
	Finish(s Snapshot)
}

// NopRenderer discards all progress output
type NopRenderer struct{}

func (NopRenderer) Render(Snapshot) {}
func (NopRenderer) Finish(Snapshot) {}

// Tracker counts completed tasks for a batch and renders progress.
// All counters are guarded by a single mutex.
type Tracker struct {
	mu       sync.Mutex
	stats    Stats
	workers  int
	renderer Renderer
}

// NewTracker creates a tracker for a pool of the given size.
// A nil renderer disables output.
func NewTracker(workers int, renderer Renderer) *Tracker {
	if renderer == nil {
		renderer = NopRenderer{}
	}
	return &Tracker{
		workers:  workers,
		renderer: renderer,
	}
}

// RecordTotal sets the number of discovered tasks. Call it before any worker starts.
func (t *Tracker) RecordTotal(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stats.Total = n
}

// RecordCompletion counts one finished task and renders the new state.
// The increment and the render happen under the same lock.
func (t *Tracker) RecordCompletion(label string, res Result) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.Completed++
	switch res.Outcome {
	case OutcomeSkipped:
		t.stats.Skipped++
	case OutcomeFetched:
		t.stats.Fetched++
		t.stats.Bytes += res.Bytes
	case OutcomeFailed:
		t.stats.Failed++
	}

	snap := t.snapshotLocked()
	snap.Label = label
	snap.Last = res.Outcome
	t.renderer.Render(snap)
}

// Finish hands the final state to the renderer
func (t *Tracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.renderer.Finish(t.snapshotLocked())
}

// Snapshot returns a copy of the current state
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Stats returns the current counters
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// snapshotLocked builds a snapshot (must hold lock)
func (t *Tracker) snapshotLocked() Snapshot {
	return Snapshot{
		Stats:   t.stats,
		Workers: t.workers,
		Percent: Percent(t.stats.Completed, t.stats.Total),
	}
}

// Percent returns completed/total as a percentage, or 0 when total is 0
func Percent(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}
