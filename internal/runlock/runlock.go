package runlock

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"reencode/internal/textutil"
)

// ErrBusy means another run holds the lock for the same tree.
var ErrBusy = errors.New("another run is processing this tree")

const maxTokenLen = 48

// Lock is a held per-tree lock.
type Lock struct {
	path string
	root string
	lock *flock.Flock
}

// PathFor returns the lock file used for root under stateDir/locks.
func PathFor(stateDir, root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", root, err)
	}
	sum := sha1.Sum([]byte(filepath.Clean(abs)))
	token := textutil.SanitizeToken(abs)
	if len(token) > maxTokenLen {
		token = token[len(token)-maxTokenLen:]
	}
	name := token + "-" + hex.EncodeToString(sum[:])[:12] + ".lock"
	return filepath.Join(stateDir, "locks", name), nil
}

// Acquire takes the lock for root without blocking.
func Acquire(stateDir, root string) (*Lock, error) {
	path, err := PathFor(stateDir, root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s (lock %s)", ErrBusy, root, path)
	}
	return &Lock{path: path, root: root, lock: fl}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks. The lock file is left in place; removing it would race a
// concurrent Acquire on the same path.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
