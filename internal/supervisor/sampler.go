package supervisor

import (
	"context"
	"errors"
	"time"

	psprocess "github.com/shirou/gopsutil/v4/process"
)

// ErrProcessGone reports that the sampled process exited between the
// liveness check and the measurement.
var ErrProcessGone = errors.New("process exited before sampling")

// Sampler measures a process's CPU usage in percent. Implementations may
// block for their sampling interval.
type Sampler interface {
	Sample(ctx context.Context, pid int) (float64, error)
}

// Clock abstracts time for the monitor loop.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// CPUSampler measures CPU percent over Interval using gopsutil. Values above
// 100 are possible on multi-core machines.
type CPUSampler struct {
	Interval time.Duration
}

// Sample implements Sampler.
func (s CPUSampler) Sample(ctx context.Context, pid int) (float64, error) {
	proc, err := psprocess.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		if errors.Is(err, psprocess.ErrorProcessNotRunning) {
			return 0, ErrProcessGone
		}
		return 0, err
	}
	interval := s.Interval
	if interval <= 0 {
		interval = time.Second
	}
	percent, err := proc.PercentWithContext(ctx, interval)
	if err != nil {
		if running, runErr := proc.IsRunningWithContext(ctx); runErr == nil && !running {
			return 0, ErrProcessGone
		}
		return 0, err
	}
	return percent, nil
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var (
	_ Sampler = CPUSampler{}
	_ Clock   = realClock{}
)
