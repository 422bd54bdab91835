package ui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/vanderheijden86/rolepattern/pkg/chart"
)

// TextChart is the terminal rendition of the match chart: one horizontal
// bar per version. It stays alive for the whole program while chart
// widgets come and go; Factory hands the renderer a widget bound to it.
type TextChart struct {
	theme Theme

	mu   sync.Mutex
	data chart.Data
	opts chart.Options
	live bool
}

// NewTextChart returns an empty text chart.
func NewTextChart(theme Theme) *TextChart {
	return &TextChart{theme: theme, opts: chart.DefaultOptions()}
}

// Factory returns a chart.Factory drawing into c.
func (c *TextChart) Factory() chart.Factory {
	return func() (chart.Widget, error) {
		return &textWidget{chart: c}, nil
	}
}

type textWidget struct {
	chart     *TextChart
	destroyed bool
}

func (w *textWidget) Render(d chart.Data, opts chart.Options) error {
	if w.destroyed {
		return chart.ErrDestroyed
	}
	w.chart.mu.Lock()
	defer w.chart.mu.Unlock()
	w.chart.data = d
	w.chart.opts = opts
	w.chart.live = true
	return nil
}

func (w *textWidget) Destroy() {
	if w.destroyed {
		return
	}
	w.destroyed = true
	w.chart.mu.Lock()
	w.chart.live = false
	w.chart.data = chart.Data{}
	w.chart.mu.Unlock()
}

// Live reports whether a chart is currently drawn.
func (c *TextChart) Live() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// View renders the chart within width cells.
func (c *TextChart) View(width int) string {
	c.mu.Lock()
	d, opts, live := c.data, c.opts, c.live
	c.mu.Unlock()

	if !live {
		return c.theme.MutedText.Render("(no chart: press enter to apply)")
	}
	if d.Empty() || len(d.Series) == 0 {
		return c.theme.MutedText.Render("(no versions)")
	}
	if width <= 0 {
		width = 60
	}

	labelW := 0
	for _, l := range d.Labels {
		if n := len([]rune(l)); n > labelW {
			labelW = n
		}
	}
	if labelW > 16 {
		labelW = 16
	}
	valueW := 0
	values := d.Series[0]
	for i := range d.Labels {
		var v chart.Value
		if i < len(values) {
			v = values[i]
		}
		if n := len(opts.Label(v)); n > valueW {
			valueW = n
		}
	}
	barW := width - labelW - valueW - 2
	if barW < 4 {
		barW = 4
	}

	top := d.Max()
	var sb strings.Builder
	for i, label := range d.Labels {
		var v chart.Value
		if i < len(values) {
			v = values[i]
		}
		n := 0
		if v.Defined && top > 0 {
			n = int(v.N / top * float64(barW))
		}
		var bar string
		if n == 0 {
			bar = c.theme.BarZero.Render("·")
			n = 1
		} else {
			bar = c.theme.Bar.Render(strings.Repeat("█", n))
		}
		fmt.Fprintf(&sb, "%s %s%s %s",
			padRight(truncate(label, labelW), labelW),
			bar,
			strings.Repeat(" ", barW-n),
			opts.Label(v),
		)
		if i < len(d.Labels)-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
