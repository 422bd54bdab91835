// Package export writes artifacts derived from a pattern session: static
// snapshots of the highlighted scene and the configuration produced by the
// setup wizard.
package export

import (
	"errors"
	"fmt"
	"hash/fnv"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/rolepattern/pkg/chart"
	"github.com/vanderheijden86/rolepattern/pkg/render"
)

// ErrEmptyScene is returned when no element survives the current pattern.
var ErrEmptyScene = errors.New("no visible elements to export")

// SceneSnapshotOptions controls scene snapshot export behaviour.
type SceneSnapshotOptions struct {
	Path    string // Output path; format inferred from extension when Format empty
	Format  string // "svg" or "png" (case-insensitive)
	Title   string // Optional title rendered in the summary block
	Pattern string // Pattern description for the summary block
	Scene   *render.Scene
	// Layout is run when a visible node has no position yet.
	Layout render.LayoutOptions
}

// SaveSceneSnapshot renders the visible part of the scene (SVG or PNG)
// with a summary block naming the pattern that produced it.
func SaveSceneSnapshot(opts SceneSnapshotOptions) error {
	if opts.Scene == nil {
		return fmt.Errorf("scene is required for snapshot export")
	}
	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}
	format, err := chart.FormatOf(opts.Format, opts.Path)
	if err != nil {
		return err
	}

	layout, err := buildSceneLayout(opts)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	switch format {
	case "png":
		return renderScenePNG(opts.Path, layout)
	default:
		file, err := os.Create(opts.Path)
		if err != nil {
			return err
		}
		defer file.Close()
		return renderSceneSVG(file, layout)
	}
}

// WriteSceneSVG writes the SVG snapshot to w.
func WriteSceneSVG(w io.Writer, opts SceneSnapshotOptions) error {
	if opts.Scene == nil {
		return fmt.Errorf("scene is required for snapshot export")
	}
	layout, err := buildSceneLayout(opts)
	if err != nil {
		return err
	}
	return renderSceneSVG(w, layout)
}

// --- layout computation ----------------------------------------------------

const (
	nodeW        = 110.0
	nodeH        = 36.0
	scale        = 2.5 // layout units to pixels
	padding      = 36.0
	headerHeight = 100.0
)

type snapNode struct {
	ID    string
	Label string
	Role  string
	X, Y  float64 // top-left corner
}

type snapEdge struct {
	From, To string
}

type snapLayout struct {
	Nodes   []snapNode
	Edges   []snapEdge
	Roles   []string
	Width   int
	Height  int
	Title   string
	Pattern string
}

func buildSceneLayout(opts SceneSnapshotOptions) (snapLayout, error) {
	visible := opts.Scene.VisibleElements()
	if len(visible.Nodes) == 0 {
		return snapLayout{}, ErrEmptyScene
	}

	for _, n := range visible.Nodes {
		if _, ok := opts.Scene.Position(n.ID); !ok {
			lo := opts.Layout
			if lo.Name == "" {
				lo = render.DefaultLayoutOptions()
			}
			if err := opts.Scene.RunLayout(lo); err != nil {
				return snapLayout{}, err
			}
			break
		}
	}

	var nodes []snapNode
	roleSeen := make(map[string]bool)
	var roles []string
	maxX, maxY := 0.0, 0.0
	for _, n := range visible.Nodes {
		p, _ := opts.Scene.Position(n.ID)
		label := n.Label
		if label == "" {
			label = n.ID
		}
		sn := snapNode{
			ID:    n.ID,
			Label: truncate(label, 14),
			Role:  n.Role,
			X:     padding + p.X*scale,
			Y:     padding + headerHeight + p.Y*scale,
		}
		nodes = append(nodes, sn)
		if sn.X > maxX {
			maxX = sn.X
		}
		if sn.Y > maxY {
			maxY = sn.Y
		}
		if !roleSeen[n.Role] {
			roleSeen[n.Role] = true
			roles = append(roles, n.Role)
		}
	}
	sort.Strings(roles)

	present := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		present[n.ID] = true
	}
	var edges []snapEdge
	for _, e := range visible.Edges {
		if present[e.Source] && present[e.Target] {
			edges = append(edges, snapEdge{From: e.Source, To: e.Target})
		}
	}

	width := int(maxX + nodeW + padding)
	if width < 640 {
		width = 640
	}
	height := int(maxY + nodeH + padding)
	if height < 320 {
		height = 320
	}

	title := opts.Title
	if strings.TrimSpace(title) == "" {
		title = "Pattern Snapshot"
	}
	return snapLayout{
		Nodes:   nodes,
		Edges:   edges,
		Roles:   roles,
		Width:   width,
		Height:  height,
		Title:   title,
		Pattern: opts.Pattern,
	}, nil
}

// --- rendering -------------------------------------------------------------

var (
	colorStroke   = color.RGBA{0x22, 0x22, 0x22, 0xff}
	colorEdge     = color.RGBA{0x6b, 0x80, 0xbf, 0xff}
	colorText     = color.RGBA{0x11, 0x11, 0x11, 0xff}
	colorSubtle   = color.RGBA{0x66, 0x66, 0x66, 0xff}
	colorBackdrop = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	colorHeaderBG = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}

	rolePalette = []color.RGBA{
		{0xc8, 0xe6, 0xc9, 0xff},
		{0xbb, 0xde, 0xfb, 0xff},
		{0xff, 0xf3, 0xe0, 0xff},
		{0xe1, 0xbe, 0xe7, 0xff},
		{0xff, 0xcd, 0xd2, 0xff},
		{0xcf, 0xd8, 0xdc, 0xff},
	}
)

// roleColor picks a stable fill per role name.
func roleColor(role string) color.RGBA {
	h := fnv.New32a()
	h.Write([]byte(role))
	return rolePalette[h.Sum32()%uint32(len(rolePalette))]
}

func (l snapLayout) positions() map[string]snapNode {
	pos := make(map[string]snapNode, len(l.Nodes))
	for _, n := range l.Nodes {
		pos[n.ID] = n
	}
	return pos
}

func (l snapLayout) summary() []string {
	lines := []string{fmt.Sprintf("nodes: %d  edges: %d", len(l.Nodes), len(l.Edges))}
	if l.Pattern != "" {
		lines = append([]string{"pattern: " + l.Pattern}, lines...)
	}
	return lines
}

func renderScenePNG(path string, l snapLayout) error {
	dc := gg.NewContext(l.Width, l.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()

	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(16, 16, float64(l.Width)-32, headerHeight-24, 10)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(colorText)
	dc.DrawStringAnchored(l.Title, 32, 40, 0, 0.5)
	dc.SetColor(colorSubtle)
	for i, line := range l.summary() {
		dc.DrawStringAnchored(line, 32, 60+float64(i)*18, 0, 0.5)
	}

	pos := l.positions()
	dc.SetColor(colorEdge)
	dc.SetLineWidth(2)
	for _, e := range l.Edges {
		from, to := pos[e.From], pos[e.To]
		dc.DrawLine(from.X+nodeW/2, from.Y+nodeH, to.X+nodeW/2, to.Y)
		dc.Stroke()
	}

	for _, n := range l.Nodes {
		dc.SetColor(roleColor(n.Role))
		dc.DrawRoundedRectangle(n.X, n.Y, nodeW, nodeH, 8)
		dc.Fill()
		dc.SetColor(colorStroke)
		dc.SetLineWidth(1.2)
		dc.DrawRoundedRectangle(n.X, n.Y, nodeW, nodeH, 8)
		dc.Stroke()
		dc.SetColor(colorText)
		dc.DrawStringAnchored(n.Label, n.X+8, n.Y+12, 0, 0.5)
		dc.SetColor(colorSubtle)
		dc.DrawStringAnchored(n.Role, n.X+8, n.Y+26, 0, 0.5)
	}

	return dc.SavePNG(path)
}

func renderSceneSVG(w io.Writer, l snapLayout) error {
	canvas := svg.New(w)
	canvas.Start(l.Width, l.Height)
	canvas.Rect(0, 0, l.Width, l.Height, fmt.Sprintf("fill:%s", css(colorBackdrop)))
	canvas.Roundrect(16, 16, l.Width-32, int(headerHeight-24), 10, 10, fmt.Sprintf("fill:%s", css(colorHeaderBG)))
	canvas.Text(32, 44, l.Title, fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(colorText)))
	for i, line := range l.summary() {
		canvas.Text(32, 64+i*18, line, fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", css(colorSubtle)))
	}

	pos := l.positions()
	for _, e := range l.Edges {
		from, to := pos[e.From], pos[e.To]
		x1, y1 := int(from.X+nodeW/2), int(from.Y+nodeH)
		x2, y2 := int(to.X+nodeW/2), int(to.Y)
		canvas.Line(x1, y1, x2, y2, fmt.Sprintf("stroke:%s;stroke-width:2", css(colorEdge)))
	}

	for _, n := range l.Nodes {
		x, y := int(n.X), int(n.Y)
		canvas.Roundrect(x, y, int(nodeW), int(nodeH), 8, 8,
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1.2", css(roleColor(n.Role)), css(colorStroke)))
		canvas.Text(x+8, y+15, n.Label, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace;font-weight:bold", css(colorText)))
		canvas.Text(x+8, y+30, n.Role, fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", css(colorSubtle)))
	}

	canvas.End()
	return nil
}

// --- helpers ---------------------------------------------------------------

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func css(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
