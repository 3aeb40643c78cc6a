package render

import (
	"context"
	"io"
	"math"
	"strconv"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/GESkunkworks/dependr"
)

// TreemapChart draws a tree as nested rectangles sized by value.
type TreemapChart struct {
	Width  int
	Height int

	title    string
	tree     *dependr.Tree
	textInfo string
}

// Plotly textinfo settings for treemap tiles.
const (
	textLabelValue        = "label+value"
	textLabelValuePercent = "label+value+percent parent"
)

// NewTreemap returns a treemap figure of tree.
func NewTreemap(title string, tree *dependr.Tree) *TreemapChart {
	return &TreemapChart{title: title, tree: tree, textInfo: textLabelValue}
}

// Title returns the chart title.
func (t *TreemapChart) Title() string { return t.title }

// Tree returns the hierarchy the treemap draws.
func (t *TreemapChart) Tree() *dependr.Tree { return t.tree }

// Encode renders the treemap as a Plotly page or a go-chart image.
func (t *TreemapChart) Encode(ctx context.Context, format Format) ([]byte, error) {
	return encode(ctx, t, format)
}

func (t *TreemapChart) empty() bool {
	return t.tree == nil || len(t.tree.Children) == 0 || t.tree.Value == 0
}

func (t *TreemapChart) plotly() plotlyFigure {
	tr := newHierarchyTrace("treemap", t.tree)
	tr.TextInfo = t.textInfo
	return plotlyFigure{
		Data:   []interface{}{tr},
		Layout: plotlyLayout{Title: plotlyTitle{Text: t.title}},
	}
}

func (t *TreemapChart) render(rp chart.RendererProvider, w io.Writer) error {
	width, height := sizeOr(t.Width, t.Height)
	return paint(rp, w, width, height, t.draw)
}

func (t *TreemapChart) draw(r chart.Renderer, width, height int) {
	const margin = 10.0
	drawTitle(r, t.title, width)
	area := rect{x: margin, y: titleHeight, w: float64(width) - 2*margin, h: float64(height) - titleHeight - margin}
	for i, box := range squarify(values(t.tree.Children), area) {
		t.drawNode(r, t.tree.Children[i], box, 0, paletteColor(i))
	}
}

func (t *TreemapChart) drawNode(r chart.Renderer, node *dependr.Tree, box rect, level int, base drawing.Color) {
	const (
		header  = 18.0
		padding = 3.0
	)
	if box.w < 1 || box.h < 1 {
		return
	}
	fillRect(r, box.x, box.y, box.w, box.h, lighten(base, 0.25*float64(level)), borderColor)

	if len(node.Children) == 0 || box.h < 3*header {
		t.drawLabel(r, node, box)
		return
	}
	if label := fitText(r, node.Label, box.w-2*padding, labelFontSize); label != "" {
		drawText(r, label, box.x+padding, box.y+header/2, labelFontSize)
	}
	inner := rect{x: box.x + padding, y: box.y + header, w: box.w - 2*padding, h: box.h - header - padding}
	for i, child := range squarify(values(node.Children), inner) {
		t.drawNode(r, node.Children[i], child, level+1, base)
	}
}

// drawLabel writes the label and value of a leaf in its top left corner.
func (t *TreemapChart) drawLabel(r chart.Renderer, node *dependr.Tree, box rect) {
	const padding = 4.0
	lineHeight := labelFontSize + 4
	if box.h < lineHeight+padding {
		return
	}
	label := fitText(r, node.Label, box.w-2*padding, labelFontSize)
	if label == "" {
		return
	}
	drawText(r, label, box.x+padding, box.y+padding+lineHeight/2, labelFontSize)
	if box.h >= 2*lineHeight+padding {
		value := fitText(r, strconv.Itoa(node.Value), box.w-2*padding, labelFontSize)
		drawText(r, value, box.x+padding, box.y+padding+lineHeight*1.5, labelFontSize)
	}
}

type rect struct {
	x, y, w, h float64
}

func values(nodes []*dependr.Tree) []float64 {
	v := make([]float64, len(nodes))
	for i, n := range nodes {
		v[i] = float64(n.Value)
	}
	return v
}

// squarify lays vals out inside area as rectangles with areas proportional
// to vals, keeping aspect ratios close to square. vals must be sorted in
// descending order.
func squarify(vals []float64, area rect) []rect {
	out := make([]rect, len(vals))
	total := 0.0
	for _, v := range vals {
		total += v
	}
	if total <= 0 || area.w <= 0 || area.h <= 0 {
		return out
	}
	scale := area.w * area.h / total
	sizes := make([]float64, len(vals))
	for i, v := range vals {
		sizes[i] = v * scale
	}

	for i := 0; i < len(sizes); {
		side := math.Min(area.w, area.h)
		j := i + 1
		for j < len(sizes) && worst(sizes[i:j+1], side) <= worst(sizes[i:j], side) {
			j++
		}
		row := sizes[i:j]
		sum := 0.0
		for _, s := range row {
			sum += s
		}
		if sum <= 0 {
			i = j
			continue
		}
		if area.w >= area.h {
			colW := sum / area.h
			y := area.y
			for k, s := range row {
				h := s / colW
				out[i+k] = rect{x: area.x, y: y, w: colW, h: h}
				y += h
			}
			area.x += colW
			area.w -= colW
		} else {
			rowH := sum / area.w
			x := area.x
			for k, s := range row {
				w := s / rowH
				out[i+k] = rect{x: x, y: area.y, w: w, h: rowH}
				x += w
			}
			area.y += rowH
			area.h -= rowH
		}
		i = j
	}
	return out
}

// worst is the largest aspect ratio in row when laid along side.
func worst(row []float64, side float64) float64 {
	sum, hi, lo := 0.0, 0.0, math.Inf(1)
	for _, s := range row {
		sum += s
		hi = math.Max(hi, s)
		lo = math.Min(lo, s)
	}
	if sum == 0 || lo == 0 {
		return math.Inf(1)
	}
	return math.Max(side*side*hi/(sum*sum), sum*sum/(side*side*lo))
}
