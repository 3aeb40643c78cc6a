package pce

import "fmt"

// Label is a single key=value label defined on the PCE, e.g. app=billing.
type Label struct {
	Href  string `json:"href"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Href is a reference to another PCE object.
type Href struct {
	Href string `json:"href"`
}

// Workload is the subset of a workload object that traffic flows embed.
type Workload struct {
	Href     string `json:"href"`
	Name     string `json:"name"`
	Hostname string `json:"hostname"`
	Labels   []Href `json:"labels"`
}

// Endpoint is one side of a traffic flow. Workload is nil for unmanaged
// addresses.
type Endpoint struct {
	IP       string    `json:"ip"`
	Workload *Workload `json:"workload,omitempty"`
}

// Service describes the destination port/protocol and, when the VEN reported
// it, the process behind it.
type Service struct {
	Port               int    `json:"port"`
	Proto              int    `json:"proto"`
	ProcessName        string `json:"process_name"`
	ServiceName        string `json:"service_name"`
	UserName           string `json:"user_name"`
	WindowsServiceName string `json:"windows_service_name"`
}

// TimestampRange holds the first and last time a flow was seen.
type TimestampRange struct {
	FirstDetected string `json:"first_detected"`
	LastDetected  string `json:"last_detected"`
}

// TrafficFlow is a single aggregated flow as returned by the async traffic
// query download.
type TrafficFlow struct {
	Src            Endpoint       `json:"src"`
	Dst            Endpoint       `json:"dst"`
	Service        Service        `json:"service"`
	NumConnections int            `json:"num_connections"`
	PolicyDecision string         `json:"policy_decision"`
	FlowDirection  string         `json:"flow_direction"`
	State          string         `json:"state"`
	Transmission   string         `json:"transmission"`
	TimestampRange TimestampRange `json:"timestamp_range"`
}

// UniqueName identifies a flow by its endpoints, service and direction.
func (f *TrafficFlow) UniqueName() string {
	return fmt.Sprintf("%s-%s_%d-%s_%s",
		f.Src.IP, f.Dst.IP, f.Service.Port, ProtoName(f.Service.Proto), f.FlowDirection)
}
