package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStepRecord(t *testing.T) {
	s := &Step{name: "test"}
	s.Record(2 * time.Millisecond)
	s.Record(4 * time.Millisecond)

	st := s.Stats()
	if st.Count != 2 || st.TotalMs != 6 || st.AvgMs != 3 || st.MaxMs != 4 {
		t.Fatalf("stats = %+v", st)
	}

	s.reset()
	if st := s.Stats(); st.Count != 0 || st.AvgMs != 0 || st.MaxMs != 0 {
		t.Errorf("reset left %+v", st)
	}
}

func TestTimerDisabled(t *testing.T) {
	SetEnabled(false)
	defer SetEnabled(true)

	s := &Step{name: "off"}
	Timer(s)()
	if s.Stats().Count != 0 {
		t.Error("disabled timer should not record")
	}
	Timer(nil)()
}

func TestSnapshotSkipsIdleSteps(t *testing.T) {
	Reset()
	defer Reset()

	Layout.Record(time.Millisecond)
	Evaluate.Record(time.Millisecond)
	stats := Snapshot()
	if len(stats) != 2 || stats[0].Name != "evaluate" || stats[1].Name != "layout" {
		t.Errorf("snapshot = %+v, want evaluate then layout", stats)
	}
}

func TestCollectorCounters(t *testing.T) {
	c := NewCollector()
	c.ObserveApply(2, map[string]int{"1": 3, "2": 0})
	c.ObserveApply(2, nil)
	c.ObserveApply(3, nil)
	c.ObserveStale()
	c.ObserveFetchError()

	if got := testutil.ToFloat64(c.applies.WithLabelValues("2")); got != 2 {
		t.Errorf("level 2 applies = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.stale); got != 1 {
		t.Errorf("stale = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.fetchErrors); got != 1 {
		t.Errorf("fetch errors = %v, want 1", got)
	}
}

func TestCollectorNilSafe(t *testing.T) {
	var c *Collector
	c.ObserveApply(1, nil)
	c.ObserveStale()
	c.ObserveFetchError()
	c.ObserveStep("evaluate", 0.1)
}

func TestCollectorHandlerServesTimings(t *testing.T) {
	Reset()
	defer Reset()
	Project.Record(time.Millisecond)

	c := NewCollector()
	c.ObserveStep("project", 0.001)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`rolepattern_timing_count{name="project"} 1`,
		`rolepattern_step_duration_seconds_count{step="project"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
}
