package cmd

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"
)

var (
	sweepInterval    time.Duration
	sweepMetricsAddr string
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired, corrupted, and orphaned lock files",
	Long: `Scan the lock directory and delete every lock file that no longer
represents a live holder: expired records, records whose owning process
is gone, and empty or corrupted files.

Locks abandoned by crashed workers are recovered this way without any
operator intervention. By default one pass runs and the command exits;
with --interval the sweep repeats until interrupted, optionally serving
Prometheus metrics.`,
	Example: `  # One-shot cleanup
  roomlock sweep

  # Sweep every 30 seconds
  roomlock sweep --interval 30s

  # Sweep daemon with a metrics endpoint
  roomlock sweep --interval 30s --metrics-addr :9090`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := newManager()
		if err != nil {
			return err
		}

		interval := sweepInterval
		metricsAddr := sweepMetricsAddr

		// Flags beat the config file
		if interval == 0 {
			interval, err = appConfig.Sweep.ParseInterval()
			if err != nil {
				return err
			}
		}
		if metricsAddr == "" {
			metricsAddr = appConfig.Sweep.MetricsAddr
		}

		runSweep := func() {
			cleaned, corrupted := mgr.SweepExpired()
			if cleaned == 0 && corrupted == 0 {
				fmt.Println("No cleanup needed - all lock files are valid.")
				return
			}
			fmt.Printf("Removed %d stale and %d corrupted lock file(s).\n", cleaned, corrupted)
		}

		if interval == 0 {
			runSweep()
			return nil
		}

		if metricsAddr != "" {
			http.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
				metrics.WritePrometheus(w, true)
			})
			go func() {
				if err := http.ListenAndServe(metricsAddr, nil); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: metrics endpoint failed: %v\n", err)
				}
			}()
			fmt.Printf("Serving metrics on %s/metrics\n", metricsAddr)
		}

		fmt.Printf("Sweeping %s every %s...\n", mgr.LockDir(), interval)
		runSweep()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			runSweep()
		}
		return nil
	},
}

func init() {
	sweepCmd.Flags().DurationVar(&sweepInterval, "interval", 0, "Repeat the sweep at this interval (e.g., 30s); 0 runs once")
	sweepCmd.Flags().StringVar(&sweepMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while sweeping")
	rootCmd.AddCommand(sweepCmd)
}
