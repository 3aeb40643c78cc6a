package render

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/pkg/errors"

	"github.com/GESkunkworks/dependr"
)

// GraphTitle is the title Traffic gives graphviz diagrams.
const GraphTitle = "Application Flow Graph"

// ErrDotNotFound is returned when image output is requested from a graph
// and the graphviz dot binary is not installed.
var ErrDotNotFound = errors.New("graphviz dot executable not found in PATH")

// Graph is a hierarchical graphviz layout of application group flows.
// Images are produced by the dot binary.
type Graph struct {
	// DotPath is the dot executable. Default: "dot" looked up in PATH
	DotPath string

	title     string
	conns     *dependr.Connections
	direction Direction
}

// NewGraph returns a graphviz figure of conns laid out in direction.
func NewGraph(conns *dependr.Connections, direction Direction) *Graph {
	return &Graph{
		DotPath:   "dot",
		title:     GraphTitle,
		conns:     conns,
		direction: ParseDirection(string(direction)),
	}
}

// Title returns the graph label.
func (g *Graph) Title() string { return g.title }

// DOT returns the graph source.
func (g *Graph) DOT() string {
	var b strings.Builder
	fmt.Fprintf(&b, "strict digraph %s {\n", quoteID(g.title))
	fmt.Fprintf(&b, "\tgraph [label=%s, labelloc=t, rankdir=%s, dpi=300, fontsize=10, size=\"8,8\", ratio=fill, margin=\"0.5,0.5\"];\n",
		quoteID(g.title), g.direction)
	b.WriteString("\tnode [shape=box, style=filled, fillcolor=lightblue, fontsize=8];\n")
	b.WriteString("\tedge [fontsize=8, len=1.5];\n")
	for _, node := range g.conns.Nodes() {
		fmt.Fprintf(&b, "\t%s;\n", quoteID(node))
	}
	for _, e := range g.conns.Edges() {
		fmt.Fprintf(&b, "\t%s -> %s [weight=%d, label=\"%d\"];\n", quoteID(e.Source), quoteID(e.Target), e.Weight, e.Weight)
	}
	b.WriteString("}\n")
	return b.String()
}

// Encode returns the DOT source for DOT and runs it through DotPath for
// png, jpg and svg. HTML is rejected with ErrHTMLUnsupported.
func (g *Graph) Encode(ctx context.Context, format Format) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.conns == nil || g.conns.Len() == 0 {
		return nil, errors.Wrap(ErrNoData, g.title)
	}
	switch format {
	case DOT:
		return []byte(g.DOT()), nil
	case HTML:
		return nil, ErrHTMLUnsupported
	case PNG, SVG, JPG:
		return g.runDot(ctx, format)
	}
	return nil, errors.Wrapf(ErrUnsupportedFormat, "%s for %q", format, g.title)
}

func (g *Graph) runDot(ctx context.Context, format Format) ([]byte, error) {
	path, err := exec.LookPath(g.DotPath)
	if err != nil {
		return nil, errors.Wrap(ErrDotNotFound, err.Error())
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, "-T"+string(format))
	cmd.Stdin = strings.NewReader(g.DOT())
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, errors.Wrapf(err, "running dot: %s", strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// quoteID quotes s as a DOT identifier.
func quoteID(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}
