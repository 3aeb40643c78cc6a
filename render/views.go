package render

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/GESkunkworks/dependr"
)

// DefaultTopN is how many values the top-N bar charts show.
const DefaultTopN = 10

// Traffic draws the application group graph as the given diagram type.
func Traffic(conns *dependr.Connections, diagram DiagramType, direction Direction) (Figure, error) {
	switch diagram {
	case Sankey:
		return NewSankey(conns, SankeyTitle), nil
	case Sunburst:
		return NewSunburst(conns.Tree(SunburstTitle)), nil
	case Graphviz:
		return NewGraph(conns, direction), nil
	}
	return nil, errors.Errorf("unsupported diagram type: %s", diagram)
}

// TopTalkers charts the source addresses seen in the most flows.
func TopTalkers(rows []dependr.Row, n int) *BarChart {
	return NewBar(fmt.Sprintf("Top %d Talkers", n), "src_ip", dependr.TopN(rows, "src_ip", n))
}

// TopDestinations charts the destination addresses seen in the most flows.
func TopDestinations(rows []dependr.Row, n int) *BarChart {
	return NewBar(fmt.Sprintf("Top %d Destinations", n), "dst_ip", dependr.TopN(rows, "dst_ip", n))
}

// TopPorts charts the most used destination ports.
func TopPorts(rows []dependr.Row, n int) *BarChart {
	return NewBar(fmt.Sprintf("Top %d Ports", n), "port", dependr.TopN(rows, "port", n))
}

// TopAppGroupSources charts the application groups sending the most flows.
func TopAppGroupSources(rows []dependr.Row, n int) *BarChart {
	return NewBar(fmt.Sprintf("Top %d App Group Sources", n), "src_app_group", dependr.TopN(rows, "src_app_group", n))
}

// TopAppGroupDestinations charts the application groups receiving the most
// flows.
func TopAppGroupDestinations(rows []dependr.Row, n int) *BarChart {
	return NewBar(fmt.Sprintf("Top %d App Group Destinations", n), "dst_app_group", dependr.TopN(rows, "dst_app_group", n))
}

// IPProtocolTreemap groups flows by protocol and port.
func IPProtocolTreemap(rows []dependr.Row) *TreemapChart {
	const title = "IP Protocols and Most Used Ports"
	return NewTreemap(title, dependr.ProtocolPorts(rows, title))
}

// TopTalkingAppEnvTreemap groups flows by source environment and app.
func TopTalkingAppEnvTreemap(rows []dependr.Row) (*TreemapChart, error) {
	return appEnvTreemap(rows, dependr.SideSrc, "Top Talking App/Env Tuples")
}

// TopReceivingAppEnvTreemap groups flows by destination environment and app.
func TopReceivingAppEnvTreemap(rows []dependr.Row) (*TreemapChart, error) {
	return appEnvTreemap(rows, dependr.SideDst, "Top Receiving App/Env Tuples")
}

func appEnvTreemap(rows []dependr.Row, side, title string) (*TreemapChart, error) {
	tree, err := dependr.AppEnvTree(rows, side, title)
	if err != nil {
		return nil, err
	}
	tm := NewTreemap(title, tree)
	tm.textInfo = textLabelValuePercent
	return tm, nil
}

// View is a named figure, used to build output file names.
type View struct {
	Name   string
	Figure Figure
}

// Analysis returns the bar and treemap views the analyze command writes.
func Analysis(rows []dependr.Row, n int) []View {
	return []View{
		{Name: "top_talkers", Figure: TopTalkers(rows, n)},
		{Name: "top_destinations", Figure: TopDestinations(rows, n)},
		{Name: "top_ports", Figure: TopPorts(rows, n)},
		{Name: "ip_protocol_treemap", Figure: IPProtocolTreemap(rows)},
		{Name: "top_app_group_sources", Figure: TopAppGroupSources(rows, n)},
		{Name: "top_app_group_destinations", Figure: TopAppGroupDestinations(rows, n)},
	}
}
