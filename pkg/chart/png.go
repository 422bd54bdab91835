package chart

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"git.sr.ht/~sbinet/gg"
	"golang.org/x/image/font/basicfont"
)

// PNGWidget rasterizes the chart, either to a writer or to a file.
type PNGWidget struct {
	w         io.Writer
	path      string
	destroyed bool
}

// NewPNGWidget returns a widget encoding to w.
func NewPNGWidget(w io.Writer) *PNGWidget {
	return &PNGWidget{w: w}
}

// NewPNGFileWidget returns a widget writing to path.
func NewPNGFileWidget(path string) *PNGWidget {
	return &PNGWidget{path: path}
}

func (pw *PNGWidget) Render(d Data, opts Options) error {
	if pw.destroyed {
		return ErrDestroyed
	}
	dc := drawPNG(d, opts)
	if pw.path == "" {
		return dc.EncodePNG(pw.w)
	}
	if err := os.MkdirAll(filepath.Dir(pw.path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	return dc.SavePNG(pw.path)
}

func (pw *PNGWidget) Destroy() {
	pw.destroyed = true
}

func drawPNG(d Data, opts Options) *gg.Context {
	p := layoutPlot(d, opts)

	dc := gg.NewContext(p.Width, p.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	for _, t := range p.Ticks {
		y := p.y(t)
		if opts.AxisY.ShowGrid {
			dc.SetColor(colorGrid)
			dc.SetLineWidth(1)
			dc.SetDash(2)
			dc.DrawLine(p.Left, y, p.Right, y)
			dc.Stroke()
			dc.SetDash()
		}
		if opts.AxisY.ShowLabel {
			dc.SetColor(colorAxisText)
			dc.DrawStringAnchored(tickLabel(t), p.Left-6, y, 1, 0.5)
		}
	}

	ax := anchor(opts.PointLabels.TextAnchor)
	for si, pts := range p.Series {
		c := seriesColors[si%len(seriesColors)]
		dc.SetColor(c)
		dc.SetLineWidth(3)
		for _, seg := range segments(pts) {
			for i, pt := range seg {
				if i == 0 {
					dc.MoveTo(pt.X, pt.Y)
				} else {
					dc.LineTo(pt.X, pt.Y)
				}
			}
			dc.Stroke()
		}
		for i, pt := range pts {
			if pt.Value.Defined {
				dc.SetColor(c)
				dc.DrawCircle(pt.X, pt.Y, pointRadius)
				dc.Fill()
			}
			if opts.AxisX.ShowLabel && si == 0 && i < len(d.Labels) {
				dc.SetColor(colorAxisText)
				dc.DrawStringAnchored(d.Labels[i], pt.X, p.Bottom+12, 0.5, 0.5)
			}
			dc.SetColor(colorLabel)
			dc.DrawStringAnchored(opts.Label(pt.Value), pt.X, pt.Y-labelOffset, ax, 0.5)
		}
	}
	return dc
}
