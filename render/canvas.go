package render

import (
	"io"
	"math"

	"github.com/pkg/errors"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	titleFontSize = 16.0
	labelFontSize = 10.0
	titleHeight   = 50
)

// palette is the qualitative palette Plotly uses by default.
var palette = []drawing.Color{
	drawing.ColorFromHex("636efa"),
	drawing.ColorFromHex("ef553b"),
	drawing.ColorFromHex("00cc96"),
	drawing.ColorFromHex("ab63fa"),
	drawing.ColorFromHex("ffa15a"),
	drawing.ColorFromHex("19d3f3"),
	drawing.ColorFromHex("ff6692"),
	drawing.ColorFromHex("b6e880"),
	drawing.ColorFromHex("ff97ff"),
	drawing.ColorFromHex("fecb52"),
}

var (
	textColor   = drawing.ColorFromHex("2a3f5f")
	borderColor = drawing.ColorWhite
)

func paletteColor(i int) drawing.Color {
	return palette[i%len(palette)]
}

// lighten mixes c with white. f is in [0, 1].
func lighten(c drawing.Color, f float64) drawing.Color {
	mix := func(v uint8) uint8 {
		return uint8(float64(v) + (255-float64(v))*f)
	}
	return drawing.Color{R: mix(c.R), G: mix(c.G), B: mix(c.B), A: c.A}
}

type point struct {
	x, y float64
}

// paint creates a canvas, lets draw fill it and writes the encoded result.
func paint(rp chart.RendererProvider, w io.Writer, width, height int, draw func(r chart.Renderer, width, height int)) error {
	r, err := rp(width, height)
	if err != nil {
		return errors.Wrap(err, "creating renderer")
	}
	font, err := chart.GetDefaultFont()
	if err != nil {
		return errors.Wrap(err, "loading font")
	}
	r.SetFont(font)
	fillRect(r, 0, 0, float64(width), float64(height), drawing.ColorWhite, drawing.ColorWhite)
	draw(r, width, height)
	return r.Save(w)
}

func fillPolygon(r chart.Renderer, pts []point, fill, stroke drawing.Color) {
	if len(pts) < 3 {
		return
	}
	r.ResetStyle()
	r.SetFillColor(fill)
	r.SetStrokeColor(stroke)
	r.SetStrokeWidth(1)
	r.MoveTo(round(pts[0].x), round(pts[0].y))
	for _, p := range pts[1:] {
		r.LineTo(round(p.x), round(p.y))
	}
	r.Close()
	r.FillStroke()
}

func fillRect(r chart.Renderer, x, y, w, h float64, fill, stroke drawing.Color) {
	fillPolygon(r, []point{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}}, fill, stroke)
}

// drawText draws s with its left edge at x, vertically centred on y.
func drawText(r chart.Renderer, s string, x, y float64, size float64) {
	r.ResetStyle()
	r.SetFontSize(size)
	r.SetFontColor(textColor)
	box := r.MeasureText(s)
	r.Text(s, round(x), round(y+float64(box.Height())/2))
}

// drawTextRight draws s ending at x.
func drawTextRight(r chart.Renderer, s string, x, y float64, size float64) {
	drawText(r, s, x-textWidth(r, s, size), y, size)
}

// drawTextCentered draws s centred on (x, y).
func drawTextCentered(r chart.Renderer, s string, x, y float64, size float64) {
	drawText(r, s, x-textWidth(r, s, size)/2, y, size)
}

func drawTitle(r chart.Renderer, title string, width int) {
	drawTextCentered(r, title, float64(width)/2, titleHeight/2, titleFontSize)
}

func textWidth(r chart.Renderer, s string, size float64) float64 {
	r.SetFontSize(size)
	return float64(r.MeasureText(s).Width())
}

// fitText shortens s with a trailing ellipsis until it is at most maxWidth
// pixels wide. An empty string means nothing fits.
func fitText(r chart.Renderer, s string, maxWidth, size float64) string {
	if textWidth(r, s, size) <= maxWidth {
		return s
	}
	runes := []rune(s)
	for n := len(runes) - 1; n > 0; n-- {
		short := string(runes[:n]) + "..."
		if textWidth(r, short, size) <= maxWidth {
			return short
		}
	}
	return ""
}

// bezier samples the cubic curve p0..p3 into steps+1 points.
func bezier(p0, p1, p2, p3 point, steps int) []point {
	pts := make([]point, 0, steps+1)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		u := 1 - t
		a, b, c, d := u*u*u, 3*u*u*t, 3*u*t*t, t*t*t
		pts = append(pts, point{
			x: a*p0.x + b*p1.x + c*p2.x + d*p3.x,
			y: a*p0.y + b*p1.y + c*p2.y + d*p3.y,
		})
	}
	return pts
}

// arc samples a circle of radius rad around c from angle a0 to a1, in
// radians measured clockwise from twelve o'clock.
func arc(c point, rad, a0, a1 float64) []point {
	steps := int(math.Ceil(math.Abs(a1-a0) / (math.Pi / 90)))
	if steps < 1 {
		steps = 1
	}
	pts := make([]point, 0, steps+1)
	for i := 0; i <= steps; i++ {
		a := a0 + (a1-a0)*float64(i)/float64(steps)
		pts = append(pts, polar(c, rad, a))
	}
	return pts
}

func polar(c point, rad, a float64) point {
	return point{x: c.x + rad*math.Sin(a), y: c.y - rad*math.Cos(a)}
}

func round(v float64) int {
	return int(math.Round(v))
}
