package supervisor

// Verdict is the watchdog's decision after one CPU sample.
type Verdict int

const (
	// Continue lets the child keep running.
	Continue Verdict = iota
	// Stall means the child has been idle for too long and must be killed.
	Stall
)

func (v Verdict) String() string {
	if v == Stall {
		return "stall"
	}
	return "continue"
}

// Watchdog counts consecutive idle CPU samples. A sample strictly below
// Threshold percent is idle; anything else resets the count. Once the count
// exceeds Limit the watchdog trips and reports Stall exactly once.
type Watchdog struct {
	Threshold float64
	Limit     int

	idle    int
	tripped bool
}

// NewWatchdog returns a watchdog with the given idle threshold (percent) and
// the number of idle samples tolerated before tripping.
func NewWatchdog(threshold float64, limit int) *Watchdog {
	return &Watchdog{Threshold: threshold, Limit: limit}
}

// Observe feeds one sample and returns the resulting verdict.
func (w *Watchdog) Observe(percent float64) Verdict {
	if w.tripped {
		return Continue
	}
	if percent < w.Threshold {
		w.idle++
	} else {
		w.idle = 0
	}
	if w.idle > w.Limit {
		w.tripped = true
		return Stall
	}
	return Continue
}

// Idle returns the current run of consecutive idle samples.
func (w *Watchdog) Idle() int {
	return w.idle
}

// Tripped reports whether Observe has returned Stall.
func (w *Watchdog) Tripped() bool {
	return w.tripped
}
