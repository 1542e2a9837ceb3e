package batch

import "sync"

// Totals accumulates results across a run. It is safe for concurrent use.
type Totals struct {
	mu   sync.Mutex
	snap TotalsSnapshot
}

// TotalsSnapshot is a point-in-time copy of Totals.
type TotalsSnapshot struct {
	Processed int   `json:"processed"`
	Skipped   int   `json:"skipped"`
	Failed    int   `json:"failed"`
	Before    int64 `json:"before_bytes"`
	After     int64 `json:"after_bytes"`
	Delta     int64 `json:"delta_bytes"`
}

// Add folds r into the totals. Only processed results contribute bytes.
func (t *Totals) Add(r Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch r.Kind {
	case KindProcessed:
		t.snap.Processed++
		t.snap.Before += r.Before
		t.snap.After += r.After
		t.snap.Delta += r.Delta
	case KindSkipped:
		t.snap.Skipped++
	case KindFailed:
		t.snap.Failed++
	}
}

// Snapshot returns the current totals.
func (t *Totals) Snapshot() TotalsSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}
