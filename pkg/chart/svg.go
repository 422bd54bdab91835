package chart

import (
	"bufio"
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ajstarks/svgo"
)

var (
	colorBackdrop = color.RGBA{0xff, 0xff, 0xff, 0xff}
	colorGrid     = color.RGBA{0xe0, 0xe0, 0xe0, 0xff}
	colorAxisText = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorLine     = color.RGBA{0xd7, 0x02, 0x06, 0xff}
	colorLabel    = color.RGBA{0x11, 0x11, 0x11, 0xff}
)

// seriesColors cycles for charts with more than one series.
var seriesColors = []color.RGBA{
	colorLine,
	{0xf0, 0x5b, 0x4f, 0xff},
	{0xf4, 0xc6, 0x3d, 0xff},
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func tickLabel(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SVGWidget draws the chart as SVG, either to a writer or to a file it
// owns.
type SVGWidget struct {
	w         io.Writer
	path      string
	destroyed bool
}

// NewSVGWidget returns a widget writing to w.
func NewSVGWidget(w io.Writer) *SVGWidget {
	return &SVGWidget{w: w}
}

// NewSVGFileWidget returns a widget writing to path, creating parent
// directories as needed.
func NewSVGFileWidget(path string) *SVGWidget {
	return &SVGWidget{path: path}
}

func (s *SVGWidget) Render(d Data, opts Options) error {
	if s.destroyed {
		return ErrDestroyed
	}
	if s.path == "" {
		return renderSVG(s.w, d, opts)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	f, err := os.Create(s.path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := renderSVG(bw, d, opts); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Destroy marks the widget dead. The written output is left in place.
func (s *SVGWidget) Destroy() {
	s.destroyed = true
}

func renderSVG(w io.Writer, d Data, opts Options) error {
	p := layoutPlot(d, opts)

	canvas := svg.New(w)
	canvas.Start(p.Width, p.Height)
	canvas.Rect(0, 0, p.Width, p.Height, fmt.Sprintf("fill:%s", css(colorBackdrop)))

	for _, t := range p.Ticks {
		y := int(p.y(t))
		if opts.AxisY.ShowGrid {
			canvas.Line(int(p.Left), y, int(p.Right), y, fmt.Sprintf("stroke:%s;stroke-width:1;stroke-dasharray:2", css(colorGrid)))
		}
		if opts.AxisY.ShowLabel {
			canvas.Text(int(p.Left)-6, y+4, tickLabel(t),
				fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace;text-anchor:end", css(colorAxisText)))
		}
	}

	textAnchor := opts.PointLabels.TextAnchor
	if textAnchor == "" {
		textAnchor = "middle"
	}
	for si, pts := range p.Series {
		c := seriesColors[si%len(seriesColors)]
		for _, seg := range segments(pts) {
			xs := make([]int, len(seg))
			ys := make([]int, len(seg))
			for i, pt := range seg {
				xs[i], ys[i] = int(pt.X), int(pt.Y)
			}
			if len(seg) > 1 {
				canvas.Polyline(xs, ys, fmt.Sprintf("fill:none;stroke:%s;stroke-width:3", css(c)))
			}
		}
		for i, pt := range pts {
			if pt.Value.Defined {
				canvas.Circle(int(pt.X), int(pt.Y), int(pointRadius), fmt.Sprintf("fill:%s", css(c)))
			}
			if opts.AxisX.ShowLabel && si == 0 && i < len(d.Labels) {
				canvas.Text(int(pt.X), int(p.Bottom)+16, d.Labels[i],
					fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace;text-anchor:middle", css(colorAxisText)))
			}
			canvas.Text(int(pt.X), int(pt.Y-labelOffset), opts.Label(pt.Value),
				fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace;text-anchor:%s", css(colorLabel), textAnchor))
		}
	}

	canvas.End()
	return nil
}
