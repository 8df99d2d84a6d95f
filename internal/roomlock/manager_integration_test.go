package roomlock

import (
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/matt/roomlock/internal/lockfile"
)

// Integration tests that exercise the full lock lifecycle under
// concurrent contention.

func TestMutualExclusionUnderContention(t *testing.T) {
	dir := t.TempDir()
	const contenders = 5

	var wg sync.WaitGroup
	results := make([]bool, contenders)
	managers := make([]*Manager, contenders)

	for i := 0; i < contenders; i++ {
		m, err := New(dir)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		managers[i] = m
	}

	// All contenders race for the same room. Each uses its own manager
	// and file descriptor, so the flock arbitrates between them exactly
	// as it would between separate processes.
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			job := fmt.Sprintf("job-%d", i)
			user := fmt.Sprintf("user-%d", i)
			results[i] = managers[i].Acquire("shared-room", job, user, 400*time.Millisecond)
		}(i)
	}
	wg.Wait()

	winners := 0
	winner := -1
	for i, ok := range results {
		if ok {
			winners++
			winner = i
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly 1 winner, got %d", winners)
	}

	// Once the holder releases, a new race can be won
	managers[winner].Release("shared-room", fmt.Sprintf("user-%d", winner))

	loser := (winner + 1) % contenders
	if !managers[loser].Acquire("shared-room", "job-retry", fmt.Sprintf("user-%d", loser), 2*time.Second) {
		t.Fatal("acquire should succeed after the winner releases")
	}
	managers[loser].Release("shared-room", fmt.Sprintf("user-%d", loser))
}

func TestFullLifecycle(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// 1. Fresh directory, nothing locked
	if m.IsLocked("lifecycle-room") {
		t.Fatal("fresh room should not be locked")
	}

	// 2. Acquire and verify visibility through every read path
	if !m.Acquire("lifecycle-room", "job-1", "user-1", time.Second) {
		t.Fatal("acquire failed")
	}
	if !m.IsLocked("lifecycle-room") {
		t.Error("IsLocked should report the held lock")
	}
	entries, err := m.Scan()
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Status != "valid" {
		t.Errorf("Scan should show one valid entry, got %+v", entries)
	}
	if len(m.ActiveSessions()) != 1 {
		t.Error("ActiveSessions should show the held lock")
	}

	// 3. A sweep must not touch the valid lock
	cleaned, corrupted := m.SweepExpired()
	if cleaned != 0 || corrupted != 0 {
		t.Errorf("sweep removed a valid lock: (%d, %d)", cleaned, corrupted)
	}
	if !m.IsLocked("lifecycle-room") {
		t.Error("lock should survive the sweep")
	}

	// 4. Release and verify everything decays
	m.Release("lifecycle-room", "user-1")
	if m.IsLocked("lifecycle-room") {
		t.Error("room should be unlocked after release")
	}
	if len(m.ActiveSessions()) != 0 {
		t.Error("registry should be empty after release")
	}

	// 5. Reacquire to prove the room is reusable
	if !m.Acquire("lifecycle-room", "job-2", "user-2", time.Second) {
		t.Fatal("reacquire after release failed")
	}
	m.Release("lifecycle-room", "user-2")
}

func TestSweepRecoversAfterSimulatedCrash(t *testing.T) {
	dir := t.TempDir()
	m, err := New(dir)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	// A crashed worker leaves behind a record with a dead pid and no
	// flock. The sweep is the primary defense against these.
	now := time.Now().UTC()
	rec := lockfile.Record{
		RoomName:   "crashed-room",
		JobID:      "job-crashed",
		UserID:     "user-crashed",
		PID:        99999999,
		AcquiredAt: now,
		ExpiresAt:  now.Add(time.Hour),
	}
	data, err := lockfile.Encode(rec)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if err := os.WriteFile(m.lockFilePath("crashed-room"), data, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cleaned, corrupted := m.SweepExpired()
	if cleaned != 1 || corrupted != 0 {
		t.Errorf("sweep = (%d, %d), want (1, 0)", cleaned, corrupted)
	}

	if !m.Acquire("crashed-room", "job-new", "user-new", time.Second) {
		t.Fatal("acquire should succeed after the crash is swept")
	}
	m.Release("crashed-room", "user-new")
}
