//go:build !windows

package roomlock

import (
	"errors"
	"os"
	"syscall"
)

// tryLockFile attempts an exclusive non-blocking flock on the file.
// Returns errLockBusy if another process holds the lock.
func tryLockFile(f *os.File) error {
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		if errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN) {
			return errLockBusy
		}
		return err
	}
	return nil
}

// unlockFile releases a lock previously acquired with tryLockFile.
func unlockFile(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}
