//go:build !unix && !windows

package supervisor

const childPrioritySupported = false

func platformSetChildPriority(int, int) error {
	return errPriorityUnsupported
}

func platformLowerOwnPriority(int) (func() error, error) {
	return nil, errPriorityUnsupported
}
