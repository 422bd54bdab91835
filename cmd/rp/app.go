package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/rolepattern/internal/datasource"
	"github.com/vanderheijden86/rolepattern/pkg/chart"
	"github.com/vanderheijden86/rolepattern/pkg/config"
	"github.com/vanderheijden86/rolepattern/pkg/debug"
	"github.com/vanderheijden86/rolepattern/pkg/metrics"
	"github.com/vanderheijden86/rolepattern/pkg/model"
	"github.com/vanderheijden86/rolepattern/pkg/pattern"
	"github.com/vanderheijden86/rolepattern/pkg/recipe"
	"github.com/vanderheijden86/rolepattern/pkg/render"
	"github.com/vanderheijden86/rolepattern/pkg/session"
	"github.com/vanderheijden86/rolepattern/pkg/ui"
	"github.com/vanderheijden86/rolepattern/pkg/watcher"
)

// app is the wired selector: source, scene, chart and session.
type app struct {
	cfg       config.Config
	ds        datasource.DataSource
	source    datasource.Source
	scene     *render.Scene
	layout    render.LayoutOptions
	renderer  *chart.Renderer
	theme     ui.Theme
	text      *ui.TextChart
	collector *metrics.Collector
	session   *session.Session
}

// newApp opens the configured source and builds the session around it.
// The scene shows the latest version. interactive adds the terminal
// chart to the renderer.
func newApp(ctx context.Context, cfg config.Config, opts cliOptions, interactive bool) (*app, error) {
	src, ds, err := datasource.Open(ctx, cfg.Source.Type, cfg.Source.Path, ".")
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, ds: ds, source: src, collector: metrics.NewCollector()}

	elems, err := src.Elements(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	versions, err := src.Versions(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	state := pattern.NewState(elems.Roles())
	var recipes *recipe.Loader
	if opts.recipe != "" {
		if recipes, err = recipe.LoadDefault(); err != nil {
			a.Close()
			return nil, err
		}
	}
	p, ok, err := resolvePattern(opts, &a.cfg, recipes, state.Roles())
	if err != nil {
		a.Close()
		return nil, err
	}
	if ok {
		if err := state.Apply(p); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.scene = render.NewScene(latestElements(elems, versions))
	a.layout = layoutOptions(cfg)
	projector := render.NewProjector(a.scene, a.layout)

	var factories []chart.Factory
	if interactive {
		a.theme = ui.DefaultTheme(lipgloss.DefaultRenderer())
		a.text = ui.NewTextChart(a.theme)
		factories = append(factories, a.text.Factory())
	}
	if opts.chartPath != "" {
		f, err := chart.FileFactory(chartFormat(opts.chartPath, cfg.Chart.Format), opts.chartPath)
		if err != nil {
			a.Close()
			return nil, err
		}
		factories = append(factories, f)
	}
	if len(factories) > 0 {
		copts := chart.DefaultOptions()
		copts.Width = cfg.Chart.Width
		copts.Height = cfg.Chart.Height
		a.renderer = chart.NewRenderer(chart.Multi(factories...), copts)
	}

	a.session = session.New(state, src, projector, a.renderer, session.Options{
		ResetOnOpen: a.cfg.Pattern.ResetOnOpen,
		Evaluate:    pattern.EvaluateOptions{DedupCount: a.cfg.Pattern.DedupCount},
		Collector:   a.collector,
	})
	return a, nil
}

// Close releases the chart and the source.
func (a *app) Close() {
	if a.renderer != nil {
		a.renderer.Close()
	}
	if a.source != nil {
		if err := a.source.Close(); err != nil {
			debug.Log("close source: %v", err)
		}
	}
}

// newWatcher watches the data file, including SQLite's sidecar files.
func (a *app) newWatcher() (*watcher.Watcher, error) {
	opts := []watcher.Option{
		watcher.WithDebounceDuration(time.Duration(a.cfg.Watch.DebounceMs) * time.Millisecond),
		watcher.WithOnError(func(err error) { debug.Log("watcher: %v", err) }),
	}
	if a.ds.Type == datasource.SourceTypeSQLite {
		opts = append(opts, watcher.WithCompanions(watcher.SQLiteCompanions...))
	}
	w, err := watcher.NewWatcher(a.ds.Path, opts...)
	if err != nil {
		return nil, err
	}
	if err := w.Start(); err != nil {
		return nil, err
	}
	return w, nil
}

// buildPattern turns --roles and --level into a pattern. Levels beyond
// the given role sets select every role.
func buildPattern(roles string, level int, universe []string) (pattern.Pattern, error) {
	return recipe.Recipe{Roles: roles, Level: level}.Pattern(universe)
}

// resolvePattern picks the starting pattern: --roles and --level win over
// --recipe. ok is false when none was given. A recipe may override the
// configured level-3 counting.
func resolvePattern(opts cliOptions, cfg *config.Config, recipes *recipe.Loader, universe []string) (p pattern.Pattern, ok bool, err error) {
	if opts.roles != "" || opts.level > 0 {
		p, err = buildPattern(opts.roles, opts.level, universe)
		return p, err == nil, err
	}
	if opts.recipe == "" {
		return pattern.Pattern{}, false, nil
	}
	r := recipes.Get(opts.recipe)
	if r == nil {
		return pattern.Pattern{}, false, fmt.Errorf("unknown recipe %q (available: %s)", opts.recipe, strings.Join(recipes.Names(), ", "))
	}
	if r.DedupCount != nil {
		cfg.Pattern.DedupCount = *r.DedupCount
	}
	p, err = r.Pattern(universe)
	return p, err == nil, err
}

// latestElements returns the elements of the last version, or everything
// when the source lists no versions.
func latestElements(elems model.Elements, versions []model.Version) model.Elements {
	if len(versions) == 0 {
		return elems
	}
	return elems.ForVersion(versions[len(versions)-1])
}

func layoutOptions(cfg config.Config) render.LayoutOptions {
	opts := render.DefaultLayoutOptions()
	if cfg.Layout.Name != "" {
		opts.Name = cfg.Layout.Name
	}
	if cfg.Layout.Padding > 0 {
		opts.Padding = cfg.Layout.Padding
	}
	if cfg.Layout.Spacing > 0 {
		opts.Spacing = cfg.Layout.Spacing
	}
	return opts
}

// chartFormat lets an explicit file extension win over the configured
// format.
func chartFormat(path, configured string) string {
	if filepath.Ext(path) != "" {
		return ""
	}
	return configured
}

// serveMetrics starts the Prometheus endpoint when addr is set. The
// returned func shuts it down.
func serveMetrics(addr string, c *metrics.Collector, stderr io.Writer) (func(), error) {
	if addr == "" {
		return func() {}, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(stderr, "metrics server: %v\n", err)
		}
	}()
	debug.Log("metrics: serving on http://%s/metrics", ln.Addr())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
