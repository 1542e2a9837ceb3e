//go:build unix

package supervisor

import (
	"runtime"

	"golang.org/x/sys/unix"
)

const childPrioritySupported = true

func platformSetChildPriority(pid, nice int) error {
	return unix.Setpriority(unix.PRIO_PROCESS, pid, nice)
}

func platformLowerOwnPriority(nice int) (func() error, error) {
	current, err := ownNice()
	if err != nil {
		return nil, err
	}
	if err := unix.Setpriority(unix.PRIO_PROCESS, 0, nice); err != nil {
		return nil, err
	}
	return func() error {
		return unix.Setpriority(unix.PRIO_PROCESS, 0, current)
	}, nil
}

// ownNice returns the calling process's nice value. The Linux syscall
// reports 20 - nice.
func ownNice() (int, error) {
	p, err := unix.Getpriority(unix.PRIO_PROCESS, 0)
	if err != nil {
		return 0, err
	}
	if runtime.GOOS == "linux" {
		return 20 - p, nil
	}
	return p, nil
}
