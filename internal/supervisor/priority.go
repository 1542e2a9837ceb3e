package supervisor

import (
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"reencode/internal/logging"
)

// Priority modes.
const (
	PriorityChild  = "child"
	PriorityParent = "parent"
)

var errPriorityUnsupported = errors.New("process priority is not supported on this platform")

// Platform hooks; tests replace them.
var (
	setChildPriority = platformSetChildPriority
	lowerOwnPriority = platformLowerOwnPriority
)

// parentPriorityMu serialises the lower/spawn/restore window so concurrent
// workers never restore each other's priority mid-spawn.
var parentPriorityMu sync.Mutex

// startWithParentPriority lowers this process's priority, runs start so the
// child inherits it, then restores the original priority. The lock is held
// for the whole window and released even when start fails.
//
// On Linux the nice value belongs to the calling thread, so the goroutine is
// pinned to one OS thread from the lowering through the restore.
func startWithParentPriority(nice int, start func() error, logger *slog.Logger) error {
	parentPriorityMu.Lock()
	defer parentPriorityMu.Unlock()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	restore, err := lowerOwnPriority(nice)
	if err != nil {
		logging.WarnWithContext(logger, "could not lower priority before spawn", "priority_lower_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "encode runs at normal priority"),
			logging.String(logging.FieldErrorHint, "set priority.mode = \"child\" or priority.enabled = false"),
		)
	}
	startErr := start()
	if restore != nil {
		if err := restore(); err != nil {
			logging.WarnWithContext(logger, "could not restore priority after spawn", "priority_restore_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "reencode keeps running at reduced priority"),
				logging.String(logging.FieldErrorHint, "raising priority back usually needs privileges; prefer priority.mode = \"child\""),
			)
		}
	}
	return startErr
}

func applyChildPriority(pid, nice int, logger *slog.Logger) {
	if err := setChildPriority(pid, nice); err != nil {
		logging.WarnWithContext(logger, "could not lower encoder priority", "priority_child_failed",
			logging.Int("pid", pid),
			logging.Int("nice", nice),
			logging.Error(err),
			logging.String(logging.FieldImpact, "encode competes with other work at normal priority"),
		)
		return
	}
	logger.Debug("encoder priority lowered", logging.Int("pid", pid), logging.Int("nice", nice))
}
