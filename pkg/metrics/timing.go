// Package metrics instruments the apply pipeline.
//
// Each pipeline step (fetch, evaluate, project, layout, chart) accumulates
// its durations in a Step. Snapshot reads them for the headless report and
// debug output; Collector exposes them, plus apply counters, to Prometheus.
// Set RP_METRICS=0 to stop recording step timings.
package metrics

import (
	"os"
	"sync/atomic"
	"time"
)

var enabled atomic.Bool

func init() {
	enabled.Store(os.Getenv("RP_METRICS") != "0")
}

// Enabled reports whether step timings are recorded.
func Enabled() bool { return enabled.Load() }

// SetEnabled turns step timing on or off.
func SetEnabled(e bool) { enabled.Store(e) }

// Step accumulates the durations of one pipeline step. Safe for
// concurrent use.
type Step struct {
	name  string
	count atomic.Int64
	total atomic.Int64 // ns
	max   atomic.Int64 // ns
}

// Name is the step's label in reports and scrapes.
func (s *Step) Name() string { return s.name }

// Record adds one measurement.
func (s *Step) Record(d time.Duration) {
	if !enabled.Load() {
		return
	}
	ns := d.Nanoseconds()
	s.count.Add(1)
	s.total.Add(ns)
	for cur := s.max.Load(); ns > cur; cur = s.max.Load() {
		if s.max.CompareAndSwap(cur, ns) {
			break
		}
	}
}

// StepStats is a point-in-time view of a Step, in milliseconds.
type StepStats struct {
	Name    string  `json:"name"`
	Count   int64   `json:"count"`
	TotalMs float64 `json:"total_ms"`
	AvgMs   float64 `json:"avg_ms"`
	MaxMs   float64 `json:"max_ms"`
}

// Stats reads the step. Concurrent Records may land between the loads.
func (s *Step) Stats() StepStats {
	st := StepStats{
		Name:    s.name,
		Count:   s.count.Load(),
		TotalMs: float64(s.total.Load()) / 1e6,
		MaxMs:   float64(s.max.Load()) / 1e6,
	}
	if st.Count > 0 {
		st.AvgMs = st.TotalMs / float64(st.Count)
	}
	return st
}

func (s *Step) reset() {
	s.count.Store(0)
	s.total.Store(0)
	s.max.Store(0)
}

// Timer starts timing s; call the result to record:
//
//	defer metrics.Timer(metrics.Evaluate)()
func Timer(s *Step) func() {
	if s == nil || !enabled.Load() {
		return func() {}
	}
	start := time.Now()
	return func() { s.Record(time.Since(start)) }
}

// Pipeline steps.
var (
	Fetch       = &Step{name: "fetch"}
	Evaluate    = &Step{name: "evaluate"}
	Project     = &Step{name: "project"}
	Layout      = &Step{name: "layout"}
	ChartRender = &Step{name: "chart_render"}
)

// Steps lists the pipeline steps in execution order.
func Steps() []*Step {
	return []*Step{Fetch, Evaluate, Project, Layout, ChartRender}
}

// Snapshot returns the stats of every step that has recorded anything,
// in execution order.
func Snapshot() []StepStats {
	var out []StepStats
	for _, s := range Steps() {
		if st := s.Stats(); st.Count > 0 {
			out = append(out, st)
		}
	}
	return out
}

// Reset clears every step.
func Reset() {
	for _, s := range Steps() {
		s.reset()
	}
}
