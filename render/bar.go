package render

import (
	"context"
	"io"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/GESkunkworks/dependr"
)

// BarChart shows value counts as vertical bars, one per value.
type BarChart struct {
	Width  int
	Height int

	title  string
	xLabel string
	counts []dependr.Count
}

// NewBar returns a bar figure of counts. xLabel names the counted column.
func NewBar(title, xLabel string, counts []dependr.Count) *BarChart {
	return &BarChart{title: title, xLabel: xLabel, counts: counts}
}

// Title returns the chart title.
func (b *BarChart) Title() string { return b.title }

// Counts returns the bars in display order.
func (b *BarChart) Counts() []dependr.Count { return b.counts }

// Encode renders the chart in format. Empty counts yield ErrNoData.
func (b *BarChart) Encode(ctx context.Context, format Format) ([]byte, error) {
	return encode(ctx, b, format)
}

func (b *BarChart) empty() bool {
	return len(b.counts) == 0
}

func (b *BarChart) plotly() plotlyFigure {
	tr := barTrace{Type: "bar"}
	for _, c := range b.counts {
		tr.X = append(tr.X, c.Value)
		tr.Y = append(tr.Y, c.Count)
	}
	return plotlyFigure{
		Data: []interface{}{tr},
		Layout: plotlyLayout{
			Title: plotlyTitle{Text: b.title},
			// ports and addresses are labels, not numbers
			XAxis: &plotlyAxis{Title: plotlyTitle{Text: b.xLabel}, Type: "category"},
			YAxis: &plotlyAxis{Title: plotlyTitle{Text: "Count"}},
		},
	}
}

func (b *BarChart) render(rp chart.RendererProvider, w io.Writer) error {
	const padding = 40
	width, height := sizeOr(b.Width, b.Height)
	slot := (width - 6*padding) / len(b.counts)
	if slot < 3 {
		slot = 3
	}

	top := 1.0
	bars := make([]chart.Value, 0, len(b.counts))
	for i, c := range b.counts {
		if v := float64(c.Count) * 1.1; v > top {
			top = v
		}
		bars = append(bars, chart.Value{
			Label: c.Value,
			Value: float64(c.Count),
			Style: chart.Style{
				FillColor:   paletteColor(i),
				StrokeColor: paletteColor(i),
			},
		})
	}
	bc := chart.BarChart{
		Title:  b.title,
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: padding, Left: padding, Right: padding, Bottom: padding},
		},
		BarWidth:   slot * 2 / 3,
		BarSpacing: slot / 3,
		YAxis: chart.YAxis{
			Name:  "Count",
			Range: &chart.ContinuousRange{Min: 0, Max: top},
		},
		Bars: bars,
	}
	return bc.Render(rp, w)
}
