package render

import (
	"context"
	"io"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/GESkunkworks/dependr"
)

// SunburstTitle is the title Traffic gives sunburst diagrams.
const SunburstTitle = "Application Flow Sunburst Diagram"

// SunburstChart draws a tree as concentric rings. The root is not drawn:
// its children form the inner ring.
type SunburstChart struct {
	Width  int
	Height int

	tree *dependr.Tree
}

// NewSunburst returns a sunburst figure of tree, titled with the root label.
func NewSunburst(tree *dependr.Tree) *SunburstChart {
	return &SunburstChart{tree: tree}
}

// Title returns the label of the tree root.
func (s *SunburstChart) Title() string { return s.tree.Label }

// Encode renders the sunburst as a Plotly page or a go-chart image.
func (s *SunburstChart) Encode(ctx context.Context, format Format) ([]byte, error) {
	return encode(ctx, s, format)
}

func (s *SunburstChart) empty() bool {
	return s.tree == nil || len(s.tree.Children) == 0 || s.tree.Value == 0
}

func (s *SunburstChart) plotly() plotlyFigure {
	return plotlyFigure{
		Data:   []interface{}{newHierarchyTrace("sunburst", s.tree)},
		Layout: plotlyLayout{Title: plotlyTitle{Text: s.tree.Label}},
	}
}

func (s *SunburstChart) render(rp chart.RendererProvider, w io.Writer) error {
	width, height := sizeOr(s.Width, s.Height)
	return paint(rp, w, width, height, s.draw)
}

func (s *SunburstChart) draw(r chart.Renderer, width, height int) {
	drawTitle(r, s.tree.Label, width)

	center := point{x: float64(width) / 2, y: (float64(height) + titleHeight) / 2}
	radius := math.Min(float64(width), float64(height)-titleHeight)/2 - 10
	ring := radius / float64(depth(s.tree)-1)

	var wedge func(node *dependr.Tree, level int, a0, a1 float64, base drawing.Color)
	wedge = func(node *dependr.Tree, level int, a0, a1 float64, base drawing.Color) {
		inner, outer := ring*float64(level-1), ring*float64(level)
		fill := lighten(base, 0.3*float64(level-1))
		pts := append(arc(center, outer, a0, a1), arc(center, inner, a1, a0)...)
		fillPolygon(r, pts, fill, borderColor)

		mid := (a0 + a1) / 2
		room := (a1 - a0) * (inner + outer) / 2
		if level == 1 && len(s.tree.Children) == 1 {
			room = 2 * outer
		}
		if label := fitText(r, node.Label, math.Min(room, ring)-4, labelFontSize); label != "" {
			at := polar(center, (inner+outer)/2, mid)
			drawTextCentered(r, label, at.x, at.y, labelFontSize)
		}

		start := a0
		for _, c := range node.Children {
			span := (a1 - a0) * float64(c.Value) / float64(node.Value)
			wedge(c, level+1, start, start+span, base)
			start += span
		}
	}

	start := 0.0
	for i, c := range s.tree.Children {
		span := 2 * math.Pi * float64(c.Value) / float64(s.tree.Value)
		wedge(c, 1, start, start+span, paletteColor(i))
		start += span
	}
}

// depth counts the levels of t including the root.
func depth(t *dependr.Tree) int {
	d := 0
	for _, c := range t.Children {
		if cd := depth(c); cd > d {
			d = cd
		}
	}
	return d + 1
}
