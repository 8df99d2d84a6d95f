//go:build windows

package roomlock

import (
	"errors"
	"os"

	"golang.org/x/sys/windows"
)

// tryLockFile attempts an exclusive non-blocking lock using LockFileEx.
// Returns errLockBusy if another process holds the lock.
// Locks the first byte of the file (offset 0, length 1).
func tryLockFile(f *os.File) error {
	ol := &windows.Overlapped{}
	err := windows.LockFileEx(
		windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0,
		1,
		0,
		ol,
	)
	if err != nil {
		if errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
			return errLockBusy
		}
		return err
	}
	return nil
}

// unlockFile releases a lock previously acquired with tryLockFile.
func unlockFile(f *os.File) error {
	ol := &windows.Overlapped{}
	return windows.UnlockFileEx(
		windows.Handle(f.Fd()),
		0,
		1,
		0,
		ol,
	)
}
