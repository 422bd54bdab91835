package chart

import (
	"math"
)

const (
	yLabelWidth = 40.0
	tickCount   = 4
	pointRadius = 4.0
	labelOffset = 10.0
)

// point is a plotted value. For undefined values Y sits on the zero line
// so the gap-fill label has somewhere to go.
type point struct {
	X, Y  float64
	Value Value
}

// plot is the resolved geometry shared by every output format.
type plot struct {
	Width, Height int
	// plot area
	Left, Top, Right, Bottom float64
	YMax                     float64
	Ticks                    []float64
	Series                   [][]point
}

func (p plot) y(v float64) float64 {
	if p.YMax <= 0 {
		return p.Bottom
	}
	return p.Bottom - (v/p.YMax)*(p.Bottom-p.Top)
}

// niceStep rounds raw up to 1, 2 or 5 times a power of ten.
func niceStep(raw float64) float64 {
	if raw <= 0 {
		return 1
	}
	exp := math.Pow(10, math.Floor(math.Log10(raw)))
	switch f := raw / exp; {
	case f <= 1:
		return exp
	case f <= 2:
		return 2 * exp
	case f <= 5:
		return 5 * exp
	default:
		return 10 * exp
	}
}

func layoutPlot(d Data, o Options) plot {
	width, height := o.Width, o.Height
	if width <= 0 {
		width = DefaultOptions().Width
	}
	if height <= 0 {
		height = DefaultOptions().Height
	}

	p := plot{
		Width:  width,
		Height: height,
		Left:   o.Padding.Left,
		Top:    o.Padding.Top,
		Right:  float64(width) - o.Padding.Right,
		Bottom: float64(height) - o.Padding.Bottom,
	}
	if o.AxisY.ShowLabel {
		p.Left += yLabelWidth
	}
	if o.AxisX.ShowLabel {
		p.Bottom -= 20
	}

	step := niceStep(d.Max() / tickCount)
	p.YMax = step * math.Max(1, math.Ceil(d.Max()/step))
	for v := 0.0; v <= p.YMax+step/2; v += step {
		p.Ticks = append(p.Ticks, v)
	}

	n := len(d.Labels)
	if n == 0 {
		return p
	}
	span := p.Right - p.Left
	var dx float64
	switch {
	case o.FullWidth && n > 1:
		dx = span / float64(n-1)
	case !o.FullWidth:
		dx = span / float64(n)
	}

	for _, s := range d.Series {
		pts := make([]point, 0, n)
		for i := 0; i < n; i++ {
			var v Value
			if i < len(s) {
				v = s[i]
			}
			y := p.y(0)
			if v.Defined {
				y = p.y(v.N)
			}
			pts = append(pts, point{X: p.Left + float64(i)*dx, Y: y, Value: v})
		}
		p.Series = append(p.Series, pts)
	}
	return p
}

// segments splits a series into runs of defined points.
func segments(pts []point) [][]point {
	var out [][]point
	var cur []point
	for _, pt := range pts {
		if !pt.Value.Defined {
			if len(cur) > 0 {
				out = append(out, cur)
			}
			cur = nil
			continue
		}
		cur = append(cur, pt)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// anchor maps a text anchor to gg's horizontal alignment factor.
func anchor(a string) float64 {
	switch a {
	case "start":
		return 0
	case "end":
		return 1
	default:
		return 0.5
	}
}
