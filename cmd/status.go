package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [room]",
	Short: "Check whether a room is currently locked",
	Long: `Check whether a room is currently held by a live worker.

The answer is advisory: it can be stale by the time you act on it, so
never use it to decide an acquisition - only a worker's own acquire
result is authoritative. Stale lock files found during the check
(empty, corrupted, expired, or left by a dead process) are removed.`,
	Example: `  # Check a room
  roomlock status room-42

  # Check a room in a specific lock directory
  roomlock status room-42 --lock-dir /var/run/roomlock`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		room := args[0]

		mgr, err := newManager()
		if err != nil {
			return err
		}

		if !mgr.IsLocked(room) {
			color.New(color.FgGreen).Printf("unlocked")
			fmt.Printf("  %s\n", room)
			return nil
		}

		color.New(color.FgRed).Printf("locked")
		fmt.Printf("    %s\n", room)

		// Show the holder if the record is still readable
		entries, err := mgr.Scan()
		if err != nil {
			return nil
		}
		for _, e := range entries {
			if e.Record.RoomName != room {
				continue
			}
			held := time.Since(e.Record.AcquiredAt).Round(time.Second)
			fmt.Printf("  Held by job %s (pid %d, user %s) for %s, expires %s\n",
				e.Record.JobID, e.Record.PID, e.Record.UserID, held,
				e.Record.ExpiresAt.Local().Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
