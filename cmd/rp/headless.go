package main

import (
	"context"
	"fmt"
	"io"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/rolepattern/pkg/debug"
	"github.com/vanderheijden86/rolepattern/pkg/export"
	"github.com/vanderheijden86/rolepattern/pkg/hooks"
	"github.com/vanderheijden86/rolepattern/pkg/metrics"
	"github.com/vanderheijden86/rolepattern/pkg/model"
	"github.com/vanderheijden86/rolepattern/pkg/session"
)

// versionCount is one row of the JSON report.
type versionCount struct {
	Version model.Version `json:"version"`
	Count   int           `json:"count"`
}

// report is the --json output of one apply.
type report struct {
	RequestID  string         `json:"request_id"`
	Source     string         `json:"source"`
	Pattern    string         `json:"pattern"`
	Level      int            `json:"level"`
	Results    []versionCount `json:"results"`
	Total      int            `json:"total"`
	Visible    visibleCounts  `json:"visible"`
	FetchError string         `json:"fetch_error,omitempty"`
	Chart      string         `json:"chart,omitempty"`
	Snapshot   string         `json:"snapshot,omitempty"`
	Hooks      string         `json:"hooks,omitempty"`
	// Timings are cumulative over the process, so a watch run reports
	// every apply so far.
	Timings []metrics.StepStats `json:"timings,omitempty"`
}

type visibleCounts struct {
	Nodes  int `json:"nodes"`
	Edges  int `json:"edges"`
	Hidden int `json:"hidden"`
}

func newReport(a *app, opts cliOptions, out session.Outcome) report {
	r := report{
		RequestID: out.RequestID,
		Source:    a.ds.Path,
		Pattern:   out.Pattern.String(),
		Level:     out.Pattern.Level,
		Results:   make([]versionCount, 0, len(out.Results)),
		Visible:   visibleCounts{Hidden: out.Projection.Hidden},
		Chart:     opts.chartPath,
		Snapshot:  opts.snapshotPath,
		Timings:   metrics.Snapshot(),
	}
	visible := a.scene.VisibleElements()
	r.Visible.Nodes = len(visible.Nodes)
	r.Visible.Edges = len(visible.Edges)
	for _, res := range out.Results {
		r.Results = append(r.Results, versionCount{Version: res.Version, Count: res.Count})
		r.Total += res.Count
	}
	if out.FetchErr != nil {
		r.FetchError = out.FetchErr.Error()
	}
	return r
}

// runHeadless applies the configured pattern once, writes the requested
// outputs and, in watch mode, repeats on every data change until ctx ends.
func runHeadless(ctx context.Context, a *app, opts cliOptions, w io.Writer) error {
	if err := applyOnce(ctx, a, opts, w); err != nil {
		return err
	}
	if !a.cfg.Watch.Enabled {
		return nil
	}

	fw, err := a.newWatcher()
	if err != nil {
		return fmt.Errorf("watch %s: %w", a.ds.Path, err)
	}
	defer fw.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-fw.Changed():
			debug.Log("watch: %s changed at %s", ev.Path, ev.At.Format("15:04:05"))
			if err := a.session.RefreshRoles(ctx); err != nil {
				debug.Log("watch: %v", err)
			}
			if err := applyOnce(ctx, a, opts, w); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (o cliOptions) exports() bool {
	return o.chartPath != "" || o.snapshotPath != ""
}

// applyOnce runs one apply. When it writes files, pre-export hooks run
// first and may cancel it; post-export hooks run once the files exist.
func applyOnce(ctx context.Context, a *app, opts cliOptions, w io.Writer) error {
	var hx *hooks.Executor
	if opts.exports() {
		var err error
		hx, err = hooks.RunHooks(".", hooks.ExportContext{
			ChartPath:    opts.chartPath,
			SnapshotPath: opts.snapshotPath,
			Pattern:      a.session.State().Snapshot().String(),
			Timestamp:    time.Now(),
		}, opts.noHooks)
		if err != nil {
			return err
		}
		if hx != nil {
			if err := hx.RunPreExport(); err != nil {
				return err
			}
		}
	}

	out, err := a.session.Apply(ctx)
	if err != nil {
		return err
	}

	if opts.snapshotPath != "" {
		err := export.SaveSceneSnapshot(export.SceneSnapshotOptions{
			Path:    opts.snapshotPath,
			Format:  chartFormat(opts.snapshotPath, a.cfg.Chart.Format),
			Title:   a.ds.Path,
			Pattern: out.Pattern.String(),
			Scene:   a.scene,
			Layout:  a.layout,
		})
		if err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
	}

	rep := newReport(a, opts, out)
	var hookErr error
	if hx != nil {
		hx.SetMatchTotal(rep.Total)
		hookErr = hx.RunPostExport()
		rep.Hooks = hx.Summary()
	}

	if opts.jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return hookErr
	}
	writeText(w, rep)
	return hookErr
}

func writeText(w io.Writer, r report) {
	fmt.Fprintf(w, "Pattern: %s (level %d)\n", r.Pattern, r.Level)
	if r.FetchError != "" {
		fmt.Fprintf(w, "Warning: data unavailable, showing empty results: %s\n", r.FetchError)
	}
	if len(r.Results) == 0 {
		fmt.Fprintln(w, "No versions.")
	}
	width := len("Version")
	for _, res := range r.Results {
		if n := len(res.Version); n > width {
			width = n
		}
	}
	if len(r.Results) > 0 {
		fmt.Fprintf(w, "%-*s  %s\n", width, "Version", "Count")
		for _, res := range r.Results {
			fmt.Fprintf(w, "%-*s  %d\n", width, res.Version, res.Count)
		}
	}
	fmt.Fprintf(w, "Total: %d across %d versions\n", r.Total, len(r.Results))
	fmt.Fprintf(w, "Visible: %d nodes, %d edges (%d hidden)\n", r.Visible.Nodes, r.Visible.Edges, r.Visible.Hidden)
	if r.Chart != "" {
		fmt.Fprintf(w, "Chart: %s\n", r.Chart)
	}
	if r.Snapshot != "" {
		fmt.Fprintf(w, "Snapshot: %s\n", r.Snapshot)
	}
	if r.Hooks != "" {
		fmt.Fprint(w, r.Hooks)
	}
}
