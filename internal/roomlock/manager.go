// Package roomlock arbitrates exclusive ownership of a conversation room
// between independent worker processes on the same host.
//
// The mutual exclusion primitive is an OS advisory lock on a per-room
// file; the JSON record inside the file is metadata for diagnostics and
// for the expiry/orphan safety nets. A worker that loses the race gets
// false back from Acquire and must abandon the room - there is no queue.
package roomlock

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/matt/roomlock/internal/lockfile"
	"github.com/puzpuzpuz/xsync/v3"
)

const (
	lockFilePrefix = "room_"
	lockFileSuffix = ".lock"

	// pollInterval is how long a contender sleeps between non-blocking
	// lock attempts inside its Acquire budget.
	pollInterval = 100 * time.Millisecond

	// lockTTL is the hard safety-net expiry written into every record.
	// There is no renewal mechanism: a legitimate holder running longer
	// than this can be evicted by a sweep. Known limitation.
	lockTTL = time.Hour
)

// errLockBusy reports that the advisory lock is held by another process.
// Expected outcome during contention, never surfaced to callers.
var errLockBusy = errors.New("lock held by another process")

// unsafeChars maps path-unsafe room name characters to underscores.
// Two distinct rooms can collide on the same file name; accepted
// limitation, not handled.
var unsafeChars = strings.NewReplacer("/", "_", ":", "_")

// heldLock tracks a lock this process currently holds. The open file
// descriptor keeps the advisory lock alive until Release.
type heldLock struct {
	file   *os.File
	path   string
	record lockfile.Record
}

// Manager drives the acquire/release/sweep protocol for one lock
// directory. It is safe for concurrent use from multiple goroutines;
// construct one per process and pass it to whatever needs it.
type Manager struct {
	lockDir string
	held    *xsync.MapOf[string, *heldLock]
}

// New creates a manager rooted at lockDir, creating the directory if
// needed. An empty lockDir selects a subpath of the platform temp
// directory.
func New(lockDir string) (*Manager, error) {
	if lockDir == "" {
		lockDir = DefaultLockDir()
	}
	if err := os.MkdirAll(lockDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	return &Manager{
		lockDir: lockDir,
		held:    xsync.NewMapOf[string, *heldLock](),
	}, nil
}

// DefaultLockDir returns the lock directory used when none is configured.
func DefaultLockDir() string {
	return filepath.Join(os.TempDir(), "roomlock")
}

// LockDir returns the directory holding this manager's lock files.
func (m *Manager) LockDir() string {
	return m.lockDir
}

// sessionKey identifies a held lock in the local registry.
func sessionKey(userID, room string) string {
	return userID + ":" + room
}

func (m *Manager) lockFilePath(room string) string {
	return filepath.Join(m.lockDir, lockFilePrefix+unsafeChars.Replace(room)+lockFileSuffix)
}

// Acquire attempts to take exclusive ownership of a room for the given
// job and user, polling for up to timeout. It returns true only if this
// process now holds the lock; false means another holder is active or
// the environment is faulty (unwritable directory, failed flush), and
// the caller must not proceed with the room.
//
// The returned ownership is valid until Release or until the record's
// expiry; among racing callers exactly one wins, with no fairness order.
func (m *Manager) Acquire(room, jobID, userID string, timeout time.Duration) bool {
	if timeout <= 0 {
		fmt.Fprintf(os.Stderr, "Warning: acquire for room %s called with non-positive timeout %v\n", room, timeout)
		return false
	}

	key := sessionKey(userID, room)

	// A second acquire without a release is a caller bug; recover by
	// dropping the stale hold before racing for the file.
	if _, ok := m.held.Load(key); ok {
		fmt.Fprintf(os.Stderr, "Warning: session %s already holds a lock - releasing it before reacquiring\n", key)
		m.Release(room, userID)
	}

	path := m.lockFilePath(room)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		// Environment fault: not retried
		fmt.Fprintf(os.Stderr, "Warning: could not open lock file %s: %v\n", path, err)
		acquireErrors.Inc()
		return false
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		err := tryLockFile(f)
		if errors.Is(err, errLockBusy) {
			time.Sleep(pollInterval)
			continue
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: lock attempt on %s failed: %v\n", path, err)
			f.Close()
			acquireErrors.Inc()
			return false
		}

		now := time.Now().UTC()
		rec := lockfile.Record{
			RoomName:   room,
			JobID:      jobID,
			UserID:     userID,
			PID:        os.Getpid(),
			AcquiredAt: now,
			ExpiresAt:  now.Add(lockTTL),
		}
		if err := writeRecord(f, rec); err != nil {
			// Never leave a half-written record under a held lock
			fmt.Fprintf(os.Stderr, "Warning: failed to write lock record for room %s: %v\n", room, err)
			if uerr := unlockFile(f); uerr != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to release lock on %s: %v\n", path, uerr)
			}
			f.Close()
			acquireErrors.Inc()
			return false
		}

		m.held.Store(key, &heldLock{file: f, path: path, record: rec})
		acquireTotal.Inc()
		return true
	}

	// Budget exhausted. We never held the lock, so just close the handle
	// and report who does hold it.
	f.Close()
	contendedTotal.Inc()
	m.logCurrentHolder(room, path)
	return false
}

// writeRecord rewrites the lock file with a fresh record and flushes it
// to disk. Must only be called while holding the advisory lock on f.
func writeRecord(f *os.File, rec lockfile.Record) error {
	data, err := lockfile.Encode(rec)
	if err != nil {
		return err
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// logCurrentHolder does a best-effort diagnostic read after a lost race.
// Empty or corrupt files are deleted proactively; this can race with a
// holder rewriting the same file, which is an accepted inefficiency
// because the next acquire recreates it.
func (m *Manager) logCurrentHolder(room, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: could not read lock file for room %s: %v\n", room, err)
		}
		return
	}

	if len(bytes.TrimSpace(data)) == 0 {
		fmt.Fprintf(os.Stderr, "Warning: lock file for room %s is empty - removing it\n", room)
		m.removeLockFile(path)
		return
	}

	rec, err := lockfile.Decode(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: lock file for room %s is corrupt - removing it (%v)\n", room, err)
		m.removeLockFile(path)
		return
	}

	fmt.Fprintf(os.Stderr, "Warning: room %s is held by job %s (pid %d)\n", room, rec.JobID, rec.PID)
}

// Release gives up a lock held by this process and deletes its file.
// Releasing a room this process does not hold is a logged no-op, so the
// call is idempotent.
func (m *Manager) Release(room, userID string) {
	key := sessionKey(userID, room)

	held, ok := m.held.LoadAndDelete(key)
	if !ok {
		fmt.Fprintf(os.Stderr, "Warning: release for session %s ignored - not held by this process\n", key)
		return
	}

	if err := unlockFile(held.file); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to release file lock for room %s: %v\n", room, err)
	}
	if err := held.file.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close lock file for room %s: %v\n", room, err)
	}

	// The file may already be gone if a sweep beat us to it
	if err := os.Remove(held.path); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: failed to remove lock file %s: %v\n", held.path, err)
	}

	releaseTotal.Inc()
}

// IsLocked reports whether a valid holder currently owns the room. It
// is advisory: the answer can be stale by the time the caller acts on
// it, so it must never gate acquisition. As a side effect it deletes
// stale lock files it encounters, so stale state decays even without a
// sweep pass.
func (m *Manager) IsLocked(room string) bool {
	path := m.lockFilePath(room)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false
		}
		fmt.Fprintf(os.Stderr, "Warning: could not read lock file for room %s, removing it: %v\n", room, err)
		m.removeLockFile(path)
		return false
	}

	rec, status := lockfile.ClassifyBytes(data, time.Now().UTC(), lockfile.IsProcessAlive)
	if status == lockfile.StatusValid {
		return true
	}

	switch status {
	case lockfile.StatusOrphaned:
		fmt.Fprintf(os.Stderr, "Warning: removing lock for room %s - holder pid %d no longer exists\n", room, rec.PID)
	case lockfile.StatusExpired:
		fmt.Fprintf(os.Stderr, "Warning: removing expired lock for room %s (expired %s)\n", room, rec.ExpiresAt.Format(time.RFC3339))
	default:
		fmt.Fprintf(os.Stderr, "Warning: removing %s lock file for room %s\n", status, room)
	}
	m.removeLockFile(path)
	return false
}

// SweepExpired scans every lock file in the directory and deletes those
// that are no longer valid. It takes no locks during the scan; a file
// caught mid-rewrite decodes as corrupt and is removed, which the next
// acquire simply recreates. Returns how many expired/orphaned locks and
// how many corrupted/empty files were removed.
func (m *Manager) SweepExpired() (cleaned, corrupted int) {
	pattern := filepath.Join(m.lockDir, lockFilePrefix+"*"+lockFileSuffix)
	paths, err := filepath.Glob(pattern)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to scan lock directory %s: %v\n", m.lockDir, err)
		return 0, 0
	}

	now := time.Now().UTC()
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				// Released between the scan and the read
				continue
			}
			fmt.Fprintf(os.Stderr, "Warning: removing unreadable lock file %s: %v\n", path, err)
			m.removeLockFile(path)
			corrupted++
			sweepCorrupt.Inc()
			continue
		}

		rec, status := lockfile.ClassifyBytes(data, now, lockfile.IsProcessAlive)
		switch status {
		case lockfile.StatusValid:
			continue
		case lockfile.StatusExpired:
			fmt.Fprintf(os.Stderr, "Warning: removing lock %s (expired %s)\n", filepath.Base(path), rec.ExpiresAt.Format(time.RFC3339))
			cleaned++
			sweepExpired.Inc()
		case lockfile.StatusOrphaned:
			fmt.Fprintf(os.Stderr, "Warning: removing lock %s (pid %d no longer exists)\n", filepath.Base(path), rec.PID)
			cleaned++
			sweepOrphaned.Inc()
		case lockfile.StatusEmpty:
			fmt.Fprintf(os.Stderr, "Warning: removing lock %s (empty file)\n", filepath.Base(path))
			corrupted++
			sweepEmpty.Inc()
		case lockfile.StatusCorrupt:
			fmt.Fprintf(os.Stderr, "Warning: removing lock %s (corrupt record)\n", filepath.Base(path))
			corrupted++
			sweepCorrupt.Inc()
		}
		m.removeLockFile(path)
	}

	return cleaned, corrupted
}

// Entry describes one lock file as seen during a read-only scan.
type Entry struct {
	Path   string          `json:"path"`
	Status string          `json:"status"`
	Record lockfile.Record `json:"record,omitempty"`
}

// Scan enumerates all lock files without modifying anything. Intended
// for status display; the result is a point-in-time snapshot.
func (m *Manager) Scan() ([]Entry, error) {
	pattern := filepath.Join(m.lockDir, lockFilePrefix+"*"+lockFileSuffix)
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to scan lock directory %s: %w", m.lockDir, err)
	}

	now := time.Now().UTC()
	entries := make([]Entry, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			entries = append(entries, Entry{Path: path, Status: lockfile.StatusCorrupt.String()})
			continue
		}
		rec, status := lockfile.ClassifyBytes(data, now, lockfile.IsProcessAlive)
		entries = append(entries, Entry{Path: path, Status: status.String(), Record: rec})
	}
	return entries, nil
}

// ActiveSessions returns the records of all locks this process holds.
// The registry is bookkeeping, not authority: the files and their
// advisory locks decide ownership.
func (m *Manager) ActiveSessions() []lockfile.Record {
	var records []lockfile.Record
	m.held.Range(func(_ string, h *heldLock) bool {
		records = append(records, h.record)
		return true
	})
	return records
}

func (m *Manager) removeLockFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: failed to remove lock file %s: %v\n", path, err)
	}
}
