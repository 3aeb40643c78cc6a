package render

import (
	"strings"

	"github.com/pkg/errors"
)

// Format is an output encoding for a figure.
type Format string

// Supported formats. DOT is only meaningful for graphviz figures.
const (
	HTML Format = "html"
	PNG  Format = "png"
	JPG  Format = "jpg"
	SVG  Format = "svg"
	DOT  Format = "dot"
)

// Formats lists every format in the order help text shows them.
var Formats = []Format{HTML, PNG, JPG, SVG, DOT}

var (
	// ErrUnsupportedFormat is returned for a format a figure cannot encode.
	ErrUnsupportedFormat = errors.New("unsupported output format")

	// ErrHTMLUnsupported is returned when graphviz output is requested as
	// HTML.
	ErrHTMLUnsupported = errors.New("HTML output is not supported for Graphviz diagrams")

	// ErrDOTUnsupported is returned when a chart other than a graphviz
	// diagram is requested as DOT.
	ErrDOTUnsupported = errors.New("DOT output is only supported for Graphviz diagrams")

	// ErrNoData is returned when a figure has nothing to draw.
	ErrNoData = errors.New("no data to render")
)

// ParseFormat accepts a format name case-insensitively. "jpeg" is an alias
// for jpg.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "jpeg" {
		f = JPG
	}
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", errors.Wrapf(ErrUnsupportedFormat, "%q", s)
}

// ParseChartFormat is ParseFormat for bar charts and treemaps, which have
// no DOT encoding.
func ParseChartFormat(s string) (Format, error) {
	f, err := ParseFormat(s)
	if err != nil {
		return f, err
	}
	if f == DOT {
		return "", ErrDOTUnsupported
	}
	return f, nil
}

// CheckDiagramFormat reports whether diagrams of type d can be encoded as f.
func CheckDiagramFormat(d DiagramType, f Format) error {
	switch {
	case d == Graphviz && f == HTML:
		return ErrHTMLUnsupported
	case d != Graphviz && f == DOT:
		return ErrDOTUnsupported
	}
	return nil
}

// Ext returns the file extension for the format, without the dot.
func (f Format) Ext() string {
	return string(f)
}

// ContentType returns the MIME type of the encoded output.
func (f Format) ContentType() string {
	switch f {
	case HTML:
		return "text/html; charset=utf-8"
	case PNG:
		return "image/png"
	case JPG:
		return "image/jpeg"
	case SVG:
		return "image/svg+xml"
	case DOT:
		return "text/vnd.graphviz"
	}
	return "application/octet-stream"
}

// DiagramType selects how the application group graph is drawn.
type DiagramType string

// Diagram types for Traffic.
const (
	Sankey   DiagramType = "sankey"
	Sunburst DiagramType = "sunburst"
	Graphviz DiagramType = "graphviz"
)

// DiagramTypes lists the supported diagram types.
var DiagramTypes = []DiagramType{Sankey, Sunburst, Graphviz}

// ParseDiagramType accepts a diagram type name case-insensitively.
func ParseDiagramType(s string) (DiagramType, error) {
	d := DiagramType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range DiagramTypes {
		if d == known {
			return d, nil
		}
	}
	return "", errors.Errorf("unsupported diagram type: %s", s)
}

// Direction is the rank direction of a graphviz layout.
type Direction string

// Left-to-right and top-to-bottom layouts.
const (
	LR Direction = "LR"
	TB Direction = "TB"
)

// ParseDirection returns LR or TB. Anything else falls back to LR.
func ParseDirection(s string) Direction {
	switch Direction(strings.ToUpper(strings.TrimSpace(s))) {
	case TB:
		return TB
	default:
		return LR
	}
}
