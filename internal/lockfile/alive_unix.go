//go:build !windows

package lockfile

import (
	"errors"
	"os"
	"syscall"
)

// IsProcessAlive checks if a process with the given PID is still running.
func IsProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix, sending signal 0 checks if process exists
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}

	// EPERM means the process exists but is owned by another user
	return errors.Is(err, syscall.EPERM)
}
