package dependr

import (
	"sort"
	"strconv"
	"strings"

	"github.com/GESkunkworks/dependr/pce"
)

// Flow sides used as column prefixes.
const (
	SideSrc = "src"
	SideDst = "dst"
)

// LabelMap resolves label hrefs to their key/value pair.
type LabelMap map[string]pce.Label

// NewLabelMap indexes labels by href.
func NewLabelMap(labels []pce.Label) LabelMap {
	m := make(LabelMap, len(labels))
	for _, l := range labels {
		m[l.Href] = l
	}
	return m
}

// Href returns the href of the label key=value, mirroring the lookup the PCE
// UI offers when building rules.
func (m LabelMap) Href(key, value string) (string, bool) {
	for href, l := range m {
		if l.Key == key && l.Value == value {
			return href, true
		}
	}
	return "", false
}

// resolve turns a workload's label references into key -> value. Unknown
// hrefs are skipped.
func (m LabelMap) resolve(w *pce.Workload) map[string]string {
	out := map[string]string{}
	if w == nil {
		return out
	}
	for _, ref := range w.Labels {
		if l, ok := m[ref.Href]; ok {
			out[l.Key] = l.Value
		}
	}
	return out
}

// Row is a traffic flow flattened into named columns with the workload labels
// resolved on both sides.
type Row struct {
	SrcIP              string
	SrcHostname        string
	DstIP              string
	DstHostname        string
	Proto              int
	Port               int
	ProcessName        string
	ServiceName        string
	UserName           string
	WindowsServiceName string
	PolicyDecision     string
	FlowDirection      string
	NumConnections     int
	FirstDetected      string
	LastDetected       string

	// Label key -> value for each side, e.g. {"app": "billing", "env": "prod"}
	SrcLabels map[string]string
	DstLabels map[string]string
}

// baseColumns are present on every row, in export order.
var baseColumns = []string{
	"src_ip", "src_hostname", "dst_ip", "dst_hostname", "proto", "port",
	"process_name", "service_name", "user_name", "windows_service_name",
	"policy_decision", "flow_direction", "num_connections",
	"first_detected", "last_detected",
}

// NewRow flattens flow, resolving workload labels through labels.
func NewRow(flow *pce.TrafficFlow, labels LabelMap) Row {
	r := Row{
		SrcIP:              flow.Src.IP,
		DstIP:              flow.Dst.IP,
		Proto:              flow.Service.Proto,
		Port:               flow.Service.Port,
		ProcessName:        flow.Service.ProcessName,
		ServiceName:        flow.Service.ServiceName,
		UserName:           flow.Service.UserName,
		WindowsServiceName: flow.Service.WindowsServiceName,
		PolicyDecision:     flow.PolicyDecision,
		FlowDirection:      flow.FlowDirection,
		NumConnections:     flow.NumConnections,
		FirstDetected:      flow.TimestampRange.FirstDetected,
		LastDetected:       flow.TimestampRange.LastDetected,
		SrcLabels:          labels.resolve(flow.Src.Workload),
		DstLabels:          labels.resolve(flow.Dst.Workload),
	}
	if flow.Src.Workload != nil {
		r.SrcHostname = flow.Src.Workload.Name
	}
	if flow.Dst.Workload != nil {
		r.DstHostname = flow.Dst.Workload.Name
	}
	return r
}

// Flatten converts flows into rows.
func Flatten(flows []pce.TrafficFlow, labels LabelMap) []Row {
	rows := make([]Row, 0, len(flows))
	for i := range flows {
		rows = append(rows, NewRow(&flows[i], labels))
	}
	return rows
}

func (r *Row) labels(side string) map[string]string {
	if side == SideDst {
		return r.DstLabels
	}
	return r.SrcLabels
}

// AppGroup returns "<app> (<env>)" for side, substituting "unlabeled" for a
// missing label.
func (r *Row) AppGroup(side string) string {
	l := r.labels(side)
	return orLabel(l["app"]) + " (" + orLabel(l["env"]) + ")"
}

// Column returns the value of a named column and whether the row has it.
// Empty string fields count as absent. Besides the base columns, label
// columns are src_<key>/dst_<key> and src_app_group/dst_app_group are derived.
func (r *Row) Column(name string) (string, bool) {
	var v string
	switch name {
	case "src_ip":
		v = r.SrcIP
	case "src_hostname":
		v = r.SrcHostname
	case "dst_ip":
		v = r.DstIP
	case "dst_hostname":
		v = r.DstHostname
	case "proto":
		v = pce.ProtoName(r.Proto)
	case "port":
		v = strconv.Itoa(r.Port)
	case "process_name":
		v = r.ProcessName
	case "service_name":
		v = r.ServiceName
	case "user_name":
		v = r.UserName
	case "windows_service_name":
		v = r.WindowsServiceName
	case "policy_decision":
		v = r.PolicyDecision
	case "flow_direction":
		v = r.FlowDirection
	case "num_connections":
		v = strconv.Itoa(r.NumConnections)
	case "first_detected":
		v = r.FirstDetected
	case "last_detected":
		v = r.LastDetected
	case "src_app_group":
		return r.AppGroup(SideSrc), true
	case "dst_app_group":
		return r.AppGroup(SideDst), true
	default:
		switch {
		case strings.HasPrefix(name, SideSrc+"_"):
			v = r.SrcLabels[strings.TrimPrefix(name, SideSrc+"_")]
		case strings.HasPrefix(name, SideDst+"_"):
			v = r.DstLabels[strings.TrimPrefix(name, SideDst+"_")]
		}
	}
	return v, v != ""
}

// LabelColumns returns the sorted src_/dst_ label columns found in rows.
func LabelColumns(rows []Row) []string {
	seen := map[string]int{}
	for i := range rows {
		for k := range rows[i].SrcLabels {
			seen[SideSrc+"_"+k]++
		}
		for k := range rows[i].DstLabels {
			seen[SideDst+"_"+k]++
		}
	}
	return sortedKeys(seen)
}

// Columns lists every column present in rows: base columns first, then label
// columns.
func Columns(rows []Row) []string {
	cols := append([]string{}, baseColumns...)
	return append(cols, LabelColumns(rows)...)
}

// hasColumn reports whether any row carries a value for name.
func hasColumn(rows []Row, name string) bool {
	for i := range rows {
		if _, ok := rows[i].Column(name); ok {
			return true
		}
	}
	return false
}

// record renders the row as CSV fields for columns.
func (r *Row) record(columns []string) []string {
	rec := make([]string, len(columns))
	for i, c := range columns {
		rec[i], _ = r.Column(c)
	}
	return rec
}

// sortRows orders rows by source then destination address, for stable
// exports.
func sortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].SrcIP != rows[j].SrcIP {
			return rows[i].SrcIP < rows[j].SrcIP
		}
		return rows[i].DstIP < rows[j].DstIP
	})
}
