package pce

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Policy decisions accepted by the traffic query API.
const (
	DecisionAllowed            = "allowed"
	DecisionBlocked            = "blocked"
	DecisionPotentiallyBlocked = "potentially_blocked"
	DecisionUnknown            = "unknown"
)

var protoNumbers = map[string]int{
	"icmp":   1,
	"tcp":    6,
	"udp":    17,
	"icmpv6": 58,
}

// ProtoNumber converts a protocol name or number string to its IANA number.
func ProtoNumber(proto string) (int, error) {
	p := strings.ToLower(strings.TrimSpace(proto))
	if n, ok := protoNumbers[p]; ok {
		return n, nil
	}
	n, err := strconv.Atoi(p)
	if err != nil || n < 0 || n > 255 {
		return 0, errors.Errorf("unknown protocol %q", proto)
	}
	return n, nil
}

// ProtoName returns the lower case protocol name for well known protocol
// numbers and the number itself otherwise.
func ProtoName(proto int) string {
	for name, n := range protoNumbers {
		if n == proto {
			return name
		}
	}
	return strconv.Itoa(proto)
}

// Actor is a traffic query source/destination selector. Only one field is
// expected to be set.
type Actor struct {
	Label        *Href  `json:"label,omitempty"`
	Workload     *Href  `json:"workload,omitempty"`
	IPList       *Href  `json:"ip_list,omitempty"`
	IPAddress    *IP    `json:"ip_address,omitempty"`
	Transmission string `json:"transmission,omitempty"`
}

// IP wraps a literal address for Actor.
type IP struct {
	Value string `json:"value"`
}

// ActorFilter is the include/exclude pair for sources or destinations.
// Include is a list of AND-ed groups that are OR-ed together.
type ActorFilter struct {
	Include [][]Actor `json:"include"`
	Exclude []Actor   `json:"exclude"`
}

// ServicePort matches a port and/or protocol. Zero values are omitted.
type ServicePort struct {
	Port  int `json:"port,omitempty"`
	Proto int `json:"proto,omitempty"`
}

// ServiceFilter is the include/exclude pair for services.
type ServiceFilter struct {
	Include []ServicePort `json:"include"`
	Exclude []ServicePort `json:"exclude"`
}

// TrafficQuery is the request body of an async traffic flow query.
type TrafficQuery struct {
	QueryName               string        `json:"query_name"`
	StartDate               string        `json:"start_date"`
	EndDate                 string        `json:"end_date"`
	Sources                 ActorFilter   `json:"sources"`
	Destinations            ActorFilter   `json:"destinations"`
	Services                ServiceFilter `json:"services"`
	PolicyDecisions         []string      `json:"policy_decisions"`
	MaxResults              int           `json:"max_results"`
	SourcesDestinationsOper string        `json:"sources_destinations_query_op"`
}

// QueryOptions feeds BuildTrafficQuery. Dates use the YYYY-MM-DD layout.
type QueryOptions struct {
	StartDate       string
	EndDate         string
	PolicyDecisions []string
	MaxResults      int

	// Ports and protocols dropped from the results. When both are nil the
	// defaults (DNS and NetBIOS ports, all UDP) apply.
	ExcludePorts  []int
	ExcludeProtos []string

	// Destination transmission classes to drop. Defaults to broadcast and
	// multicast when nil.
	ExcludeTransmissions []string
}

// DefaultExcludePorts are ports noisy enough to drown out application traffic.
var DefaultExcludePorts = []int{53, 137, 138, 139}

// DefaultExcludeProtos excludes connectionless traffic.
var DefaultExcludeProtos = []string{"udp"}

// DefaultExcludeTransmissions drops non-unicast destinations.
var DefaultExcludeTransmissions = []string{"broadcast", "multicast"}

// BuildTrafficQuery assembles a TrafficQuery from opts, applying defaults for
// the service and destination exclusions.
func BuildTrafficQuery(opts QueryOptions) (*TrafficQuery, error) {
	if opts.StartDate == "" || opts.EndDate == "" {
		return nil, errors.New("start and end date are required")
	}
	if opts.MaxResults <= 0 {
		return nil, errors.Errorf("max results must be positive, got %d", opts.MaxResults)
	}
	decisions := opts.PolicyDecisions
	if len(decisions) == 0 {
		decisions = []string{DecisionAllowed, DecisionPotentiallyBlocked}
	}
	for _, d := range decisions {
		switch d {
		case DecisionAllowed, DecisionBlocked, DecisionPotentiallyBlocked, DecisionUnknown:
		default:
			return nil, errors.Errorf("invalid policy decision %q", d)
		}
	}

	ports, protos := opts.ExcludePorts, opts.ExcludeProtos
	if ports == nil && protos == nil {
		ports, protos = DefaultExcludePorts, DefaultExcludeProtos
	}
	excludeServices := []ServicePort{}
	for _, p := range ports {
		excludeServices = append(excludeServices, ServicePort{Port: p})
	}
	for _, p := range protos {
		n, err := ProtoNumber(p)
		if err != nil {
			return nil, err
		}
		excludeServices = append(excludeServices, ServicePort{Proto: n})
	}

	transmissions := opts.ExcludeTransmissions
	if transmissions == nil {
		transmissions = DefaultExcludeTransmissions
	}
	excludeDsts := []Actor{}
	for _, t := range transmissions {
		excludeDsts = append(excludeDsts, Actor{Transmission: t})
	}

	return &TrafficQuery{
		StartDate: opts.StartDate,
		EndDate:   opts.EndDate,
		Sources: ActorFilter{
			Include: [][]Actor{{}},
			Exclude: []Actor{},
		},
		Destinations: ActorFilter{
			Include: [][]Actor{{}},
			Exclude: excludeDsts,
		},
		Services: ServiceFilter{
			Include: []ServicePort{},
			Exclude: excludeServices,
		},
		PolicyDecisions:         decisions,
		MaxResults:              opts.MaxResults,
		SourcesDestinationsOper: "and",
	}, nil
}
