package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var listQuiet bool
var listFormat string

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List lock files in the lock directory",
	Long: `List every room lock file with its holder and validity.

This is a read-only scan: nothing is cleaned up. Use 'roomlock sweep'
to remove the files shown as expired, orphaned, corrupt, or empty.`,
	Example: `  # List all lock files
  roomlock list

  # Output only room names (useful for scripting)
  roomlock list -q

  # Output as JSON
  roomlock list --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager()
		if err != nil {
			return err
		}

		entries, err := mgr.Scan()
		if err != nil {
			return fmt.Errorf("failed to scan lock directory: %w", err)
		}

		if len(entries) == 0 {
			if listQuiet {
				return nil
			}
			fmt.Printf("No lock files found in %s.\n", mgr.LockDir())
			return nil
		}

		// Quiet mode: output only room names, one per line
		if listQuiet {
			for _, e := range entries {
				if e.Record.RoomName != "" {
					fmt.Println(e.Record.RoomName)
				} else {
					fmt.Println(filepath.Base(e.Path))
				}
			}
			return nil
		}

		// JSON format output
		if listFormat == "json" {
			output, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal entries to JSON: %w", err)
			}
			fmt.Println(string(output))
			return nil
		}

		// Column widths
		const (
			colRoom   = 24
			colStatus = 10
			colJob    = 20
			colPID    = 8
		)

		header := color.New(color.Bold)
		header.Printf("%-*s  %-*s  %-*s  %-*s  %s\n",
			colRoom, "ROOM", colStatus, "STATUS", colJob, "JOB", colPID, "PID", "ACQUIRED")

		for _, e := range entries {
			statusColor := color.New(color.FgWhite)
			switch e.Status {
			case "valid":
				statusColor = color.New(color.FgGreen)
			case "expired", "orphaned":
				statusColor = color.New(color.FgYellow)
			case "corrupt", "empty":
				statusColor = color.New(color.FgRed)
			}

			room := e.Record.RoomName
			if room == "" {
				room = filepath.Base(e.Path)
			}
			if len(room) > colRoom {
				room = room[:colRoom-3] + "..."
			}

			job := e.Record.JobID
			if job == "" {
				job = "-"
			}
			if len(job) > colJob {
				job = job[:colJob-3] + "..."
			}

			acquired := "-"
			if !e.Record.AcquiredAt.IsZero() {
				acquired = fmt.Sprintf("%s ago", time.Since(e.Record.AcquiredAt).Round(time.Second))
			}

			fmt.Printf("%-*s  ", colRoom, room)
			statusColor.Printf("%-*s", colStatus, e.Status)
			fmt.Printf("  %-*s  %-*d  %s\n", colJob, job, colPID, e.Record.PID, acquired)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVarP(&listQuiet, "quiet", "q", false, "Output only room names")
	listCmd.Flags().StringVar(&listFormat, "format", "", "Output format (json)")
	rootCmd.AddCommand(listCmd)
}
