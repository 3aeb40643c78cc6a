package render

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GESkunkworks/dependr"
)

var (
	pngMagic  = []byte("\x89PNG\r\n\x1a\n")
	jpegMagic = []byte{0xff, 0xd8}
)

func testConnections() *dependr.Connections {
	c := dependr.NewConnections()
	c.Add("web (prod)", "db (prod)", 2)
	c.Add("unlabeled (unlabeled)", "web (prod)", 1)
	c.Add("web (dev)", "db (prod)", 1)
	return c
}

func testTree() *dependr.Tree {
	return &dependr.Tree{Label: "IP Protocols and Most Used Ports", Value: 5, Children: []*dependr.Tree{
		{Label: "tcp", Value: 4, Children: []*dependr.Tree{
			{Label: "5432", Value: 3},
			{Label: "443", Value: 1},
		}},
		{Label: "icmp", Value: 1, Children: []*dependr.Tree{
			{Label: "0", Value: 1},
		}},
	}}
}

func testFigures() map[string]Figure {
	return map[string]Figure{
		"sankey":   NewSankey(testConnections(), SankeyTitle),
		"sunburst": NewSunburst(testConnections().Tree(SunburstTitle)),
		"treemap":  NewTreemap("IP Protocols and Most Used Ports", testTree()),
		"bar": NewBar("Top 10 Ports", "port", []dependr.Count{
			{Value: "5432", Count: 3},
			{Value: "443", Count: 2},
		}),
	}
}

func TestFiguresEncodeImages(t *testing.T) {
	ctx := context.Background()
	for name, fig := range testFigures() {
		t.Run(name, func(t *testing.T) {
			raw, err := fig.Encode(ctx, PNG)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(raw, pngMagic))

			raw, err = fig.Encode(ctx, JPG)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(raw, jpegMagic))

			raw, err = fig.Encode(ctx, SVG)
			require.NoError(t, err)
			assert.Contains(t, string(raw), "<svg")
		})
	}
}

func TestFiguresEncodeHTML(t *testing.T) {
	for name, fig := range testFigures() {
		t.Run(name, func(t *testing.T) {
			raw, err := fig.Encode(context.Background(), HTML)
			require.NoError(t, err)
			page := string(raw)
			assert.True(t, strings.HasPrefix(page, "<!DOCTYPE html>"))
			assert.Contains(t, page, PlotlyURL)
			assert.Contains(t, page, `"type":"`+name+`"`)
			assert.Contains(t, page, "<title>"+fig.Title()+"</title>")
		})
	}
}

func TestEncodeHTMLEmbedsPlotly(t *testing.T) {
	PlotlyJS = []byte("window.Plotly = {newPlot: function() {}};")
	t.Cleanup(func() { PlotlyJS = nil })

	raw, err := NewSankey(testConnections(), SankeyTitle).Encode(context.Background(), HTML)
	require.NoError(t, err)
	page := string(raw)
	assert.Contains(t, page, "<script>window.Plotly = {newPlot: function() {}};</script>")
	assert.NotContains(t, page, PlotlyURL)
}

func TestFiguresRejectDOT(t *testing.T) {
	for name, fig := range testFigures() {
		_, err := fig.Encode(context.Background(), DOT)
		assert.True(t, errors.Is(err, ErrUnsupportedFormat), name)
	}
}

func TestFiguresNoData(t *testing.T) {
	empty := dependr.NewConnections()
	for name, fig := range map[string]Figure{
		"sankey":   NewSankey(empty, SankeyTitle),
		"sunburst": NewSunburst(empty.Tree(SunburstTitle)),
		"treemap":  NewTreemap("t", &dependr.Tree{Label: "t"}),
		"bar":      NewBar("t", "port", nil),
		"graph":    NewGraph(empty, LR),
	} {
		_, err := fig.Encode(context.Background(), PNG)
		assert.True(t, errors.Is(err, ErrNoData), name)
	}
}

func TestEncodeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSankey(testConnections(), SankeyTitle).Encode(ctx, PNG)
	assert.Equal(t, context.Canceled, err)
}

func TestSankeyPlotly(t *testing.T) {
	fig := NewSankey(testConnections(), SankeyTitle).plotly()
	require.Len(t, fig.Data, 1)
	tr := fig.Data[0].(sankeyTrace)

	assert.Equal(t, []string{"web (prod)", "db (prod)", "unlabeled (unlabeled)", "web (dev)"}, tr.Node.Label)
	want := sankeyLink{
		Source: []int{0, 2, 3},
		Target: []int{1, 0, 1},
		Value:  []int{2, 1, 1},
	}
	if diff := cmp.Diff(want, tr.Link); diff != "" {
		t.Errorf("links mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, SankeyTitle, fig.Layout.Title.Text)
}

func TestHierarchyTrace(t *testing.T) {
	tr := newHierarchyTrace("treemap", testTree())
	assert.Equal(t, []string{"n0", "n1", "n2", "n3", "n4"}, tr.IDs)
	assert.Equal(t, []string{"tcp", "5432", "443", "icmp", "0"}, tr.Labels)
	assert.Equal(t, []string{"", "n0", "n0", "", "n3"}, tr.Parents)
	assert.Equal(t, []int{4, 3, 1, 1, 1}, tr.Values)
	assert.Equal(t, "total", tr.BranchValues)
}

func TestHierarchyTraceSlashLabels(t *testing.T) {
	conns := dependr.NewConnections()
	conns.Add("a", "b/c", 1)
	conns.Add("a/b", "c", 1)
	tr := newHierarchyTrace("sunburst", conns.Tree("flows"))

	seen := map[string]bool{}
	for _, id := range tr.IDs {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Equal(t, []string{"a", "b/c", "a/b", "c"}, tr.Labels)
	assert.Equal(t, []string{"", tr.IDs[0], "", tr.IDs[2]}, tr.Parents)
}

func TestBarPlotlyUsesCategoryAxis(t *testing.T) {
	fig := NewBar("Top 10 Ports", "port", []dependr.Count{{Value: "443", Count: 2}}).plotly()
	raw, err := json.Marshal(fig)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"data": [{"type": "bar", "x": ["443"], "y": [2]}],
		"layout": {
			"title": {"text": "Top 10 Ports"},
			"xaxis": {"title": {"text": "port"}, "type": "category"},
			"yaxis": {"title": {"text": "Count"}}
		}
	}`, string(raw))
}

func TestSquarify(t *testing.T) {
	area := rect{x: 10, y: 20, w: 600, h: 400}
	vals := []float64{6, 6, 4, 3, 2, 2, 1}
	boxes := squarify(vals, area)
	require.Len(t, boxes, len(vals))

	total := 0.0
	for i, b := range boxes {
		total += b.w * b.h
		assert.InDelta(t, vals[i]/24*area.w*area.h, b.w*b.h, 0.01, "box %d", i)
		assert.GreaterOrEqual(t, b.x, area.x-0.01)
		assert.GreaterOrEqual(t, b.y, area.y-0.01)
		assert.LessOrEqual(t, b.x+b.w, area.x+area.w+0.01)
		assert.LessOrEqual(t, b.y+b.h, area.y+area.h+0.01)
	}
	assert.InDelta(t, area.w*area.h, total, 0.01)

	assert.Equal(t, []rect{{}, {}}, squarify([]float64{0, 0}, area))
}

func TestTraffic(t *testing.T) {
	conns := testConnections()

	fig, err := Traffic(conns, Sankey, LR)
	require.NoError(t, err)
	assert.IsType(t, &SankeyChart{}, fig)
	assert.Equal(t, SankeyTitle, fig.Title())

	fig, err = Traffic(conns, Sunburst, LR)
	require.NoError(t, err)
	assert.Equal(t, SunburstTitle, fig.Title())

	fig, err = Traffic(conns, Graphviz, TB)
	require.NoError(t, err)
	assert.Equal(t, GraphTitle, fig.Title())

	_, err = Traffic(conns, DiagramType("chord"), LR)
	assert.Error(t, err)
}

func TestAnalysis(t *testing.T) {
	var names []string
	for _, v := range Analysis(nil, DefaultTopN) {
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{
		"top_talkers",
		"top_destinations",
		"top_ports",
		"ip_protocol_treemap",
		"top_app_group_sources",
		"top_app_group_destinations",
	}, names)
	assert.Equal(t, "Top 5 Talkers", TopTalkers(nil, 5).Title())
}

func TestTreemapTextInfo(t *testing.T) {
	rows := []dependr.Row{
		{
			SrcIP:     "10.0.0.1",
			DstIP:     "10.0.1.1",
			SrcLabels: map[string]string{"app": "web", "env": "prod"},
			DstLabels: map[string]string{"app": "db", "env": "prod"},
		},
	}
	talking, err := TopTalkingAppEnvTreemap(rows)
	require.NoError(t, err)
	receiving, err := TopReceivingAppEnvTreemap(rows)
	require.NoError(t, err)

	textInfo := func(tm *TreemapChart) string {
		return tm.plotly().Data[0].(hierarchyTrace).TextInfo
	}
	assert.Equal(t, "label+value+percent parent", textInfo(talking))
	assert.Equal(t, "label+value+percent parent", textInfo(receiving))
	assert.Equal(t, "label+value", textInfo(IPProtocolTreemap(rows)))
}

func TestAppEnvTreemapMissingColumns(t *testing.T) {
	_, err := TopTalkingAppEnvTreemap([]dependr.Row{{SrcIP: "10.0.0.1"}})
	assert.True(t, errors.Is(err, dependr.ErrMissingColumns))
}
