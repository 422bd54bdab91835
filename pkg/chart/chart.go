// Package chart draws the per-version match counts as a line chart.
//
// The chart configuration is fixed: full width, a fixed height, no x grid
// or x labels, a y grid with labels, and a label above every point. A
// point with no value is labelled "0" rather than left blank.
package chart

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/vanderheijden86/rolepattern/pkg/debug"
	"github.com/vanderheijden86/rolepattern/pkg/metrics"
	"github.com/vanderheijden86/rolepattern/pkg/pattern"
)

// Common errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported chart format")
	ErrDestroyed         = errors.New("chart widget destroyed")
)

// Value is one data point. Undefined points break the line and are
// labelled by the gap-fill label.
type Value struct {
	N       float64
	Defined bool
}

// V returns a defined value.
func V(n float64) Value {
	return Value{N: n, Defined: true}
}

// Data is the chart input: one label per x position and one or more
// series of values aligned to the labels.
type Data struct {
	Labels []string
	Series [][]Value
}

// FromResults builds a single-series chart from evaluation results, one
// point per version in result order.
func FromResults(results []pattern.MatchResult) Data {
	d := Data{
		Labels: make([]string, len(results)),
		Series: [][]Value{make([]Value, len(results))},
	}
	for i, r := range results {
		d.Labels[i] = string(r.Version)
		d.Series[0][i] = V(float64(r.Count))
	}
	return d
}

// Empty reports whether there is nothing to plot.
func (d Data) Empty() bool {
	return len(d.Labels) == 0
}

// Max returns the largest defined value, or 0.
func (d Data) Max() float64 {
	var m float64
	for _, s := range d.Series {
		for _, v := range s {
			if v.Defined && v.N > m {
				m = v.N
			}
		}
	}
	return m
}

// Axis toggles an axis' grid lines and tick labels.
type Axis struct {
	ShowGrid  bool
	ShowLabel bool
}

// Padding is the space kept around the plot area.
type Padding struct {
	Top, Right, Bottom, Left float64
}

// PointLabels configures the label drawn at each point.
type PointLabels struct {
	// TextAnchor is "start", "middle" or "end".
	TextAnchor string
	// Interpolate formats a value. Nil uses PointLabel.
	Interpolate func(Value) string
}

// Options is the chart configuration.
type Options struct {
	// FullWidth stretches the series so the last point sits on the right
	// edge of the plot area.
	FullWidth   bool
	Width       int
	Height      int
	AxisX       Axis
	AxisY       Axis
	Padding     Padding
	PointLabels PointLabels
}

// DefaultOptions returns the fixed chart configuration.
func DefaultOptions() Options {
	return Options{
		FullWidth:   true,
		Width:       800,
		Height:      250,
		AxisX:       Axis{ShowGrid: false, ShowLabel: false},
		AxisY:       Axis{ShowGrid: true, ShowLabel: true},
		Padding:     Padding{Top: 30, Left: 0, Right: 30, Bottom: 5},
		PointLabels: PointLabels{TextAnchor: "middle", Interpolate: PointLabel},
	}
}

// PointLabel is the gap-filling label: "0" for an undefined value, the
// number otherwise.
func PointLabel(v Value) string {
	if !v.Defined {
		return "0"
	}
	return strconv.FormatFloat(v.N, 'f', -1, 64)
}

// Label formats v with the configured interpolation.
func (o Options) Label(v Value) string {
	if o.PointLabels.Interpolate != nil {
		return o.PointLabels.Interpolate(v)
	}
	return PointLabel(v)
}

// Widget is a drawn chart. A widget is rendered once and then destroyed
// when a newer chart replaces it.
type Widget interface {
	Render(d Data, opts Options) error
	Destroy()
}

// Factory constructs a fresh widget.
type Factory func() (Widget, error)

// Renderer keeps at most one live widget. Every draw destroys the previous
// widget before building a new one, so repeated applies never stack charts.
type Renderer struct {
	factory Factory
	opts    Options

	mu      sync.Mutex
	current Widget
	last    Data
}

// NewRenderer returns a renderer building widgets with factory.
func NewRenderer(factory Factory, opts Options) *Renderer {
	return &Renderer{factory: factory, opts: opts}
}

// Draw renders the counts in results.
func (r *Renderer) Draw(results []pattern.MatchResult) error {
	return r.DrawData(FromResults(results))
}

// DrawData replaces the current widget with a new one showing d.
func (r *Renderer) DrawData(d Data) error {
	defer metrics.Timer(metrics.ChartRender)()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		r.current.Destroy()
		r.current = nil
	}
	w, err := r.factory()
	if err != nil {
		return fmt.Errorf("create chart: %w", err)
	}
	r.current = w
	r.last = d
	debug.Log("chart: %d points", len(d.Labels))
	return w.Render(d, r.opts)
}

// Current returns the live widget, if any.
func (r *Renderer) Current() Widget {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Last returns the data of the most recent draw.
func (r *Renderer) Last() Data {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Close destroys the live widget.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		r.current.Destroy()
		r.current = nil
	}
}

// FormatOf infers "svg" or "png" from format or, when empty, from the path
// extension.
func FormatOf(format, path string) (string, error) {
	f := strings.ToLower(strings.TrimPrefix(format, "."))
	if f == "" {
		f = strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	}
	switch f {
	case "svg", "png":
		return f, nil
	default:
		return "", fmt.Errorf("%w %q (want svg or png)", ErrUnsupportedFormat, f)
	}
}

// FileFactory returns a factory writing each chart to path in the given
// format. Each new widget overwrites the file.
func FileFactory(format, path string) (Factory, error) {
	f, err := FormatOf(format, path)
	if err != nil {
		return nil, err
	}
	if f == "png" {
		return func() (Widget, error) { return NewPNGFileWidget(path), nil }, nil
	}
	return func() (Widget, error) { return NewSVGFileWidget(path), nil }, nil
}

// Multi returns a factory whose widgets draw to every widget built by
// factories. A failing factory destroys the widgets already built.
func Multi(factories ...Factory) Factory {
	return func() (Widget, error) {
		ws := make(multiWidget, 0, len(factories))
		for _, f := range factories {
			w, err := f()
			if err != nil {
				ws.Destroy()
				return nil, err
			}
			ws = append(ws, w)
		}
		return ws, nil
	}
}

type multiWidget []Widget

func (m multiWidget) Render(d Data, opts Options) error {
	var errs []error
	for _, w := range m {
		if err := w.Render(d, opts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multiWidget) Destroy() {
	for _, w := range m {
		w.Destroy()
	}
}
