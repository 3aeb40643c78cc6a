package render

import (
	"bytes"
	"html/template"
	"strconv"

	"github.com/pkg/errors"

	"github.com/GESkunkworks/dependr"
)

// PlotlyURL is the script the generated HTML pages load Plotly from.
var PlotlyURL = "https://cdn.plot.ly/plotly-2.35.2.min.js"

// PlotlyJS, when set, is the plotly.js source embedded in each page in place
// of the PlotlyURL reference, so pages open without network access.
var PlotlyJS []byte

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
{{if .Inline}}<script>{{.Inline}}</script>{{else}}<script src="{{.Script}}"></script>{{end}}
</head>
<body>
<div id="figure" style="width:100%;height:95vh;"></div>
<script>
var figure = {{.Figure}};
Plotly.newPlot("figure", figure.data, figure.layout, {responsive: true});
</script>
</body>
</html>
`))

type plotlyFigure struct {
	Data   []interface{} `json:"data"`
	Layout plotlyLayout  `json:"layout"`
}

type plotlyLayout struct {
	Title plotlyTitle `json:"title"`
	Font  *plotlyFont `json:"font,omitempty"`
	XAxis *plotlyAxis `json:"xaxis,omitempty"`
	YAxis *plotlyAxis `json:"yaxis,omitempty"`
}

type plotlyTitle struct {
	Text string `json:"text"`
}

type plotlyFont struct {
	Size int `json:"size"`
}

type plotlyAxis struct {
	Title plotlyTitle `json:"title"`
	Type  string      `json:"type,omitempty"`
}

type sankeyTrace struct {
	Type string     `json:"type"`
	Node sankeyNode `json:"node"`
	Link sankeyLink `json:"link"`
}

type sankeyNode struct {
	Pad       int        `json:"pad"`
	Thickness int        `json:"thickness"`
	Line      sankeyLine `json:"line"`
	Label     []string   `json:"label"`
	Color     string     `json:"color"`
}

type sankeyLine struct {
	Color string  `json:"color"`
	Width float64 `json:"width"`
}

type sankeyLink struct {
	Source []int `json:"source"`
	Target []int `json:"target"`
	Value  []int `json:"value"`
}

// hierarchyTrace serves both sunburst and treemap traces.
type hierarchyTrace struct {
	Type         string   `json:"type"`
	IDs          []string `json:"ids"`
	Labels       []string `json:"labels"`
	Parents      []string `json:"parents"`
	Values       []int    `json:"values"`
	BranchValues string   `json:"branchvalues"`
	TextInfo     string   `json:"textinfo,omitempty"`
}

type barTrace struct {
	Type string   `json:"type"`
	X    []string `json:"x"`
	Y    []int    `json:"y"`
}

// newHierarchyTrace flattens tree below its root into plotly's
// ids/labels/parents form. Ids are positional so labels may hold any text.
func newHierarchyTrace(kind string, tree *dependr.Tree) hierarchyTrace {
	tr := hierarchyTrace{Type: kind, BranchValues: "total"}
	var add func(node *dependr.Tree, parent string)
	add = func(node *dependr.Tree, parent string) {
		id := "n" + strconv.Itoa(len(tr.IDs))
		tr.IDs = append(tr.IDs, id)
		tr.Labels = append(tr.Labels, node.Label)
		tr.Parents = append(tr.Parents, parent)
		tr.Values = append(tr.Values, node.Value)
		for _, c := range node.Children {
			add(c, id)
		}
	}
	for _, c := range tree.Children {
		add(c, "")
	}
	return tr
}

// writeHTML renders fig as a standalone page.
func writeHTML(title string, fig plotlyFigure) ([]byte, error) {
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, struct {
		Title  string
		Script string
		Inline template.JS
		Figure plotlyFigure
	}{title, PlotlyURL, template.JS(PlotlyJS), fig})
	if err != nil {
		return nil, errors.Wrap(err, "rendering html page")
	}
	return buf.Bytes(), nil
}
