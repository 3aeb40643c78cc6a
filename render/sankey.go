package render

import (
	"context"
	"io"
	"sort"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/GESkunkworks/dependr"
)

// SankeyTitle is the title Traffic gives Sankey diagrams.
const SankeyTitle = "Application Flow Sankey Diagram"

// SankeyChart draws application group flows as a two column Sankey diagram:
// sources on the left, destinations on the right, ribbons sized by flow
// count.
type SankeyChart struct {
	Width  int
	Height int

	title string
	conns *dependr.Connections
}

// NewSankey returns a Sankey figure of conns.
func NewSankey(conns *dependr.Connections, title string) *SankeyChart {
	return &SankeyChart{title: title, conns: conns}
}

// Title returns the diagram title.
func (s *SankeyChart) Title() string { return s.title }

// Encode renders the diagram as a Plotly page or a go-chart image.
func (s *SankeyChart) Encode(ctx context.Context, format Format) ([]byte, error) {
	return encode(ctx, s, format)
}

func (s *SankeyChart) empty() bool {
	return s.conns == nil || s.conns.Len() == 0
}

func (s *SankeyChart) plotly() plotlyFigure {
	tr := sankeyTrace{
		Type: "sankey",
		Node: sankeyNode{
			Pad:       15,
			Thickness: 20,
			Line:      sankeyLine{Color: "black", Width: 0.5},
			Label:     s.conns.Nodes(),
			Color:     "blue",
		},
	}
	for _, e := range s.conns.Edges() {
		src, _ := s.conns.Index(e.Source)
		dst, _ := s.conns.Index(e.Target)
		tr.Link.Source = append(tr.Link.Source, src)
		tr.Link.Target = append(tr.Link.Target, dst)
		tr.Link.Value = append(tr.Link.Value, e.Weight)
	}
	return plotlyFigure{
		Data:   []interface{}{tr},
		Layout: plotlyLayout{Title: plotlyTitle{Text: s.title}, Font: &plotlyFont{Size: 10}},
	}
}

// sankeyColumn is the vertical position of each node in one column.
type sankeyColumn struct {
	order []string
	y     map[string]float64
	h     map[string]float64
	used  map[string]float64
}

func newSankeyColumn(weights map[string]int, top, scale, gap float64) *sankeyColumn {
	c := &sankeyColumn{
		y:    map[string]float64{},
		h:    map[string]float64{},
		used: map[string]float64{},
	}
	for node := range weights {
		c.order = append(c.order, node)
	}
	sort.Slice(c.order, func(i, j int) bool {
		a, b := c.order[i], c.order[j]
		if weights[a] != weights[b] {
			return weights[a] > weights[b]
		}
		return a < b
	})
	y := top
	for _, node := range c.order {
		c.y[node] = y
		c.h[node] = float64(weights[node]) * scale
		y += c.h[node] + gap
	}
	return c
}

// take reserves h pixels of node for one ribbon and returns its top.
func (c *sankeyColumn) take(node string, h float64) float64 {
	y := c.y[node] + c.used[node]
	c.used[node] += h
	return y
}

func (s *SankeyChart) render(rp chart.RendererProvider, w io.Writer) error {
	width, height := sizeOr(s.Width, s.Height)
	return paint(rp, w, width, height, s.draw)
}

func (s *SankeyChart) draw(r chart.Renderer, width, height int) {
	const (
		nodeWidth = 18.0
		maxGap    = 12.0
		margin    = 20.0
	)
	drawTitle(r, s.title, width)

	out, in := s.conns.Outflow(), s.conns.Inflow()
	n := len(out)
	if len(in) > n {
		n = len(in)
	}
	top := float64(titleHeight)
	avail := float64(height) - top - margin
	gap := maxGap
	if n > 1 && gap*float64(n-1) > avail*0.3 {
		gap = avail * 0.3 / float64(n-1)
	}
	scale := (avail - gap*float64(n-1)) / float64(s.conns.Total())

	labelWidth := float64(width) / 4
	leftX := labelWidth
	rightX := float64(width) - labelWidth - nodeWidth
	left := newSankeyColumn(out, top, scale, gap)
	right := newSankeyColumn(in, top, scale, gap)

	colors := map[string]int{}
	for i, node := range left.order {
		colors[node] = i
	}

	x0, x1 := leftX+nodeWidth, rightX
	mid := (x0 + x1) / 2
	for _, e := range s.conns.Edges() {
		h := float64(e.Weight) * scale
		ya := left.take(e.Source, h)
		yb := right.take(e.Target, h)
		upper := bezier(point{x0, ya}, point{mid, ya}, point{mid, yb}, point{x1, yb}, 32)
		lower := bezier(point{x1, yb + h}, point{mid, yb + h}, point{mid, ya + h}, point{x0, ya + h}, 32)
		fill := paletteColor(colors[e.Source]).WithAlpha(110)
		fillPolygon(r, append(upper, lower...), fill, fill)
	}

	for _, node := range left.order {
		fillRect(r, leftX, left.y[node], nodeWidth, left.h[node], paletteColor(colors[node]), borderColor)
		label := fitText(r, node, labelWidth-margin, labelFontSize)
		drawTextRight(r, label, leftX-6, left.y[node]+left.h[node]/2, labelFontSize)
	}
	for _, node := range right.order {
		fillRect(r, rightX, right.y[node], nodeWidth, right.h[node], textColor, borderColor)
		label := fitText(r, node, labelWidth-margin, labelFontSize)
		drawText(r, label, rightX+nodeWidth+6, right.y[node]+right.h[node]/2, labelFontSize)
	}
}
