//go:build unix && !linux

package endpoint

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// pipe marks both ends close-on-exec under ForkLock so a concurrent
// exec cannot inherit them.
func pipe(fds []int) error {
	syscall.ForkLock.RLock()
	defer syscall.ForkLock.RUnlock()

	if err := unix.Pipe(fds); err != nil {
		return err
	}
	unix.CloseOnExec(fds[0])
	unix.CloseOnExec(fds[1])
	return nil
}
