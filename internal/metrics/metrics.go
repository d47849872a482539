// Package metrics provides application-level counters using stdlib expvar.
// Counters are automatically exported on the /debug/vars HTTP endpoint
// when net/http/pprof is imported in the main binary.
package metrics

import "expvar"

// Simulation counters.
var (
	TicksTotal        = expvar.NewInt("wardsim_ticks_total")
	MovesTotal        = expvar.NewInt("wardsim_moves_total")
	MovesRejected     = expvar.NewInt("wardsim_moves_rejected_total")
	ExaminationsTotal = expvar.NewInt("wardsim_examinations_total")
	PreloadsTotal     = expvar.NewInt("wardsim_preloads_total")
	PreloadsWasted    = expvar.NewInt("wardsim_preloads_wasted_total")
	PredictionHits    = expvar.NewInt("wardsim_prediction_hits_total")
	PredictionMisses  = expvar.NewInt("wardsim_prediction_misses_total")
)

// Sink counters.
var (
	EventsPublished = expvar.NewInt("wardsim_events_published_total")
	EventsDropped   = expvar.NewInt("wardsim_events_dropped_total")
	SinkErrors      = expvar.NewInt("wardsim_sink_errors_total")
)

// Inc increments the given counter by 1.
func Inc(counter *expvar.Int) { counter.Add(1) }

// Add increments the given counter by n. Non-positive n is ignored.
func Add(counter *expvar.Int, n int) {
	if n > 0 {
		counter.Add(int64(n))
	}
}
