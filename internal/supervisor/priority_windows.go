//go:build windows

package supervisor

import (
	"fmt"

	"golang.org/x/sys/windows"
)

const childPrioritySupported = true

// priorityClass maps a unix-style nice value onto a Windows priority class.
func priorityClass(nice int) uint32 {
	if nice >= 10 {
		return windows.IDLE_PRIORITY_CLASS
	}
	return windows.BELOW_NORMAL_PRIORITY_CLASS
}

func platformSetChildPriority(pid, nice int) error {
	handle, err := windows.OpenProcess(windows.PROCESS_SET_INFORMATION, false, uint32(pid))
	if err != nil {
		return fmt.Errorf("open process %d: %w", pid, err)
	}
	defer windows.CloseHandle(handle) //nolint:errcheck
	return windows.SetPriorityClass(handle, priorityClass(nice))
}

func platformLowerOwnPriority(nice int) (func() error, error) {
	self := windows.CurrentProcess()
	current, err := windows.GetPriorityClass(self)
	if err != nil {
		return nil, err
	}
	if err := windows.SetPriorityClass(self, priorityClass(nice)); err != nil {
		return nil, err
	}
	return func() error {
		return windows.SetPriorityClass(self, current)
	}, nil
}
