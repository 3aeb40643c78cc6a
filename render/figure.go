package render

import (
	"bytes"
	"context"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/pkg/errors"
	chart "github.com/wcharczuk/go-chart/v2"
)

// Canvas size used for png, jpg and svg output unless a figure overrides it.
const (
	DefaultWidth  = 1200
	DefaultHeight = 800
)

// JPEGQuality is the quality jpg output is encoded at.
var JPEGQuality = 90

// Figure is a rendered view that can be encoded in one or more formats.
type Figure interface {
	Title() string
	Encode(ctx context.Context, format Format) ([]byte, error)
}

// chartFigure is a figure drawn by this package: Plotly for html and
// go-chart for everything else.
type chartFigure interface {
	Title() string
	empty() bool
	plotly() plotlyFigure
	render(rp chart.RendererProvider, w io.Writer) error
}

func encode(ctx context.Context, f chartFigure, format Format) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.empty() {
		return nil, errors.Wrap(ErrNoData, f.Title())
	}
	switch format {
	case HTML:
		return writeHTML(f.Title(), f.plotly())
	case PNG:
		return renderBytes(f, chart.PNG)
	case SVG:
		return renderBytes(f, chart.SVG)
	case JPG:
		raw, err := renderBytes(f, chart.PNG)
		if err != nil {
			return nil, err
		}
		return toJPEG(raw)
	}
	return nil, errors.Wrapf(ErrUnsupportedFormat, "%s for %q", format, f.Title())
}

func renderBytes(f chartFigure, rp chart.RendererProvider) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.render(rp, &buf); err != nil {
		return nil, errors.Wrapf(err, "drawing %q", f.Title())
	}
	return buf.Bytes(), nil
}

func toJPEG(raw []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "decoding png")
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, errors.Wrap(err, "encoding jpeg")
	}
	return buf.Bytes(), nil
}

func sizeOr(width, height int) (int, int) {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return width, height
}
