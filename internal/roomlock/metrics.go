package roomlock

import "github.com/VictoriaMetrics/metrics"

// Counters live in the default metrics set, so the sweep daemon can
// expose them with metrics.WritePrometheus.
var (
	acquireTotal   = metrics.NewCounter(`roomlock_acquire_total`)
	contendedTotal = metrics.NewCounter(`roomlock_acquire_contended_total`)
	acquireErrors  = metrics.NewCounter(`roomlock_acquire_errors_total`)
	releaseTotal   = metrics.NewCounter(`roomlock_release_total`)

	sweepExpired  = metrics.NewCounter(`roomlock_sweep_removed_total{reason="expired"}`)
	sweepOrphaned = metrics.NewCounter(`roomlock_sweep_removed_total{reason="orphaned"}`)
	sweepEmpty    = metrics.NewCounter(`roomlock_sweep_removed_total{reason="empty"}`)
	sweepCorrupt  = metrics.NewCounter(`roomlock_sweep_removed_total{reason="corrupt"}`)
)
