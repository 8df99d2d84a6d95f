package cmd

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/matt/roomlock/internal/config"
	"github.com/matt/roomlock/internal/roomlock"
	"github.com/spf13/cobra"
)

// appConfig holds the loaded configuration (global + project merged)
var appConfig *config.Config

// lockDirFlag overrides the configured lock directory
var lockDirFlag string

var rootCmd = &cobra.Command{
	Use:   "roomlock",
	Short: "Roomlock - coordinate room ownership between worker processes",
	Long: `Roomlock inspects and maintains the file-based room locks that
worker processes use to guarantee a single active owner per room.

Workers acquire and release locks through the library; this CLI is the
operator's view of the lock directory:
  - Check whether a specific room is currently held
  - List all lock files with their holder and validity
  - Sweep away expired, corrupted, and orphaned locks`,
	Example: `  # Check a single room
  roomlock status room-42

  # List every lock file in the lock directory
  roomlock list

  # Remove stale lock files once
  roomlock sweep

  # Run the sweeper continuously with a Prometheus endpoint
  roomlock sweep --interval 30s --metrics-addr :9090`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env files are optional; missing ones are not an error
		_ = godotenv.Load(".env")

		var err error
		appConfig, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if lockDirFlag != "" {
			appConfig.LockDir = lockDirFlag
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&lockDirFlag, "lock-dir", "d", "", "Directory holding room lock files (overrides config and ROOMLOCK_DIR)")
}

// newManager creates a lock manager for the configured lock directory.
func newManager() (*roomlock.Manager, error) {
	mgr, err := roomlock.New(appConfig.LockDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize lock manager: %w", err)
	}
	return mgr, nil
}
