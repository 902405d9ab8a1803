package download

import (
	"errors"
	"math"
	"sync"
	"testing"
)

type recordingRenderer struct {
	snaps    []Snapshot
	finished *Snapshot
}

func (r *recordingRenderer) Render(s Snapshot) {
	r.snaps = append(r.snaps, s)
}

func (r *recordingRenderer) Finish(s Snapshot) {
	r.finished = &s
}

func TestPercent(t *testing.T) {
	tests := []struct {
		completed, total int
		expected         float64
	}{
		{0, 0, 0},
		{5, 0, 0},
		{0, 10, 0},
		{5, 10, 50},
		{10, 10, 100},
		{1, 3, 100.0 / 3},
	}

	for _, tt := range tests {
		if got := Percent(tt.completed, tt.total); math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("Percent(%d, %d) = %v, want %v", tt.completed, tt.total, got, tt.expected)
		}
	}
}

func TestTracker_RecordCompletion(t *testing.T) {
	r := &recordingRenderer{}
	tr := NewTracker(50, r)
	tr.RecordTotal(4)

	tr.RecordCompletion("a.png", Result{Outcome: OutcomeFetched, Bytes: 100})
	tr.RecordCompletion("b.png", Result{Outcome: OutcomeSkipped})
	tr.RecordCompletion("c.png", Result{Outcome: OutcomeFailed, Err: errors.New("boom")})
	tr.RecordCompletion("d.png", Result{Outcome: OutcomeFetched, Bytes: 50})

	if len(r.snaps) != 4 {
		t.Fatalf("rendered %d times, want 4", len(r.snaps))
	}

	for i, snap := range r.snaps {
		if snap.Completed != i+1 {
			t.Errorf("snaps[%d].Completed = %d, want %d", i, snap.Completed, i+1)
		}
		if snap.Total != 4 {
			t.Errorf("snaps[%d].Total = %d, want 4", i, snap.Total)
		}
		if snap.Workers != 50 {
			t.Errorf("snaps[%d].Workers = %d, want 50", i, snap.Workers)
		}
	}

	if r.snaps[1].Label != "b.png" || r.snaps[1].Last != OutcomeSkipped {
		t.Errorf("snaps[1] = %+v, want label b.png and skipped", r.snaps[1])
	}
	if r.snaps[1].Percent != 50 {
		t.Errorf("snaps[1].Percent = %v, want 50", r.snaps[1].Percent)
	}

	stats := tr.Stats()
	want := Stats{Total: 4, Completed: 4, Fetched: 2, Skipped: 1, Failed: 1, Bytes: 150}
	if stats != want {
		t.Errorf("Stats() = %+v, want %+v", stats, want)
	}

	tr.Finish()
	if r.finished == nil || r.finished.Percent != 100 {
		t.Errorf("Finish snapshot = %+v, want 100%%", r.finished)
	}
}

func TestTracker_ZeroTotal(t *testing.T) {
	tr := NewTracker(10, nil)
	tr.RecordTotal(0)

	snap := tr.Snapshot()
	if snap.Percent != 0 {
		t.Errorf("Percent = %v, want 0", snap.Percent)
	}

	// Finish on an empty batch must not panic with a nil renderer
	tr.Finish()
}

func TestTracker_ConcurrentCompletions(t *testing.T) {
	r := &recordingRenderer{}
	tr := NewTracker(8, r)
	tr.RecordTotal(800)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				tr.RecordCompletion("x.png", Result{Outcome: OutcomeFetched, Bytes: 1})
			}
		}()
	}
	wg.Wait()

	stats := tr.Stats()
	if stats.Completed != 800 || stats.Fetched != 800 || stats.Bytes != 800 {
		t.Errorf("Stats() = %+v, want 800 completed/fetched/bytes", stats)
	}

	// Each render observed a distinct, increasing count
	for i, snap := range r.snaps {
		if snap.Completed != i+1 {
			t.Fatalf("snaps[%d].Completed = %d, want %d", i, snap.Completed, i+1)
		}
	}
}
