package dependr

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"

	"github.com/GESkunkworks/dependr/pce"
)

// ErrConnection is returned by Start when the PCE health check fails.
var ErrConnection = errors.New("connection to PCE failed")

// FlowSource is the traffic flow data source a Survey reads from.
// *pce.Client satisfies it.
type FlowSource interface {
	CheckConnection(ctx context.Context) (bool, error)
	Labels(ctx context.Context) ([]pce.Label, error)
	TrafficFlows(ctx context.Context, name string, q *pce.TrafficQuery) ([]pce.TrafficFlow, error)
}

// A Survey pulls the traffic flows for a date range from the PCE and
// aggregates them by application group. Create a SurveyInput and pass it
// to this package's New method to get a new Survey, then call its Start
// method. When that is complete the rows, connections and summary can be
// exported or handed to a renderer.
type Survey struct {
	// Flows are the raw traffic flows returned by the PCE.
	Flows []pce.TrafficFlow

	// Rows are the flows flattened with their workload labels resolved.
	// This property is exported so that it could be marshalled to another
	// format if the ExportRows CSV format is not ideal.
	Rows []Row

	// Connections is the application group graph built from Rows.
	Connections *Connections

	// Labels maps label hrefs to the label key and value.
	Labels LabelMap

	// Range is the resolved query window.
	Range DateRange

	client         FlowSource
	log            log15.Logger
	start          string
	end            string
	limit          int
	decisions      []string
	queryName      string
	keepSelfLoops  bool
	now            func() time.Time
	outfileRows    string
	outfileConns   string
	outfileSummary string
	summary        []string
}

// SurveyInput provides configuration inputs for starting a new Survey.
type SurveyInput struct {
	// Source of traffic flows and labels, usually a *pce.Client.
	//
	// Client is a required field
	Client FlowSource

	// Start of the query window, "YYYY-MM-DD" or "N days ago".
	// Default: "30 days ago"
	Start *string

	// End of the query window.
	// Default: "today"
	End *string

	// Maximum number of traffic flows to fetch.
	// Default: 2000
	Limit *int

	// Policy decisions to include in the query.
	// Default: allowed, potentially_blocked
	PolicyDecisions []string

	// Name the async query is registered under on the PCE.
	// Default: "all-traffic"
	QueryName *string

	// Keep flows between workloads of the same app group in the
	// connection graph.
	// Default: false
	KeepSelfLoops *bool

	// If the ExportRows method is called on the returned Survey it will
	// write all rows to OutfileRows in csv format.
	// Default: "out-rows.csv"
	OutfileRows *string

	// If the ExportConnections method is called on the returned Survey it
	// will write the connection graph edges to OutfileConnections in csv
	// format.
	// Default: "out-connections.csv"
	OutfileConnections *string

	// If the ExportSummary method is called on the returned Survey it will
	// write the summary to OutfileSummary in text format.
	// Default: "out-summary.txt"
	OutfileSummary *string

	// Survey uses log15 (https://github.com/inconshreveable/log15) for
	// logging. If no Logger is provided the Survey sets up its own
	// handler to stderr at info level.
	Logger log15.Logger

	// Clock used to resolve relative dates. Default: time.Now
	Now func() time.Time
}

// New returns a Survey whose methods can be called to pull and aggregate
// traffic flows. Any property not specified in the SurveyInput gets its
// default value.
func New(input *SurveyInput) (s *Survey, err error) {
	var sv Survey

	if input.Client == nil {
		err = errors.New("Client is required")
		return &sv, err
	}
	sv.client = input.Client

	DefaultStart := "30 days ago"
	if input.Start == nil {
		input.Start = &DefaultStart
	}
	sv.start = *input.Start

	DefaultEnd := "today"
	if input.End == nil {
		input.End = &DefaultEnd
	}
	sv.end = *input.End

	DefaultLimit := 2000
	if input.Limit == nil {
		input.Limit = &DefaultLimit
	}
	if *input.Limit <= 0 {
		err = errors.Errorf("Limit must be positive, got %d", *input.Limit)
		return &sv, err
	}
	sv.limit = *input.Limit

	if len(input.PolicyDecisions) == 0 {
		input.PolicyDecisions = []string{pce.DecisionAllowed, pce.DecisionPotentiallyBlocked}
	}
	sv.decisions = input.PolicyDecisions

	DefaultQueryName := "all-traffic"
	if input.QueryName == nil {
		input.QueryName = &DefaultQueryName
	}
	sv.queryName = *input.QueryName

	if input.KeepSelfLoops != nil {
		sv.keepSelfLoops = *input.KeepSelfLoops
	}

	DefaultOutfileRows := "out-rows.csv"
	if input.OutfileRows == nil {
		input.OutfileRows = &DefaultOutfileRows
	}
	sv.outfileRows = *input.OutfileRows

	DefaultOutfileConnections := "out-connections.csv"
	if input.OutfileConnections == nil {
		input.OutfileConnections = &DefaultOutfileConnections
	}
	sv.outfileConns = *input.OutfileConnections

	DefaultOutfileSummary := "out-summary.txt"
	if input.OutfileSummary == nil {
		input.OutfileSummary = &DefaultOutfileSummary
	}
	sv.outfileSummary = *input.OutfileSummary

	if input.Logger == nil {
		sv.setDefaultLogger()
	} else {
		sv.log = input.Logger
	}

	sv.now = time.Now
	if input.Now != nil {
		sv.now = input.Now
	}
	return &sv, err
}

// setDefaultLogger just sets up a logger for the Survey set to Info and
// stderr by default.
func (sv *Survey) setDefaultLogger() {
	sv.log, _ = NewLogger("info", os.Stderr)
}

// loadLabels fills the href -> label map from the PCE.
func (sv *Survey) loadLabels(ctx context.Context) (err error) {
	sv.log.Debug("loading labels")
	labels, err := sv.client.Labels(ctx)
	if err != nil {
		return errors.Wrap(err, "loading labels")
	}
	sv.Labels = NewLabelMap(labels)
	sv.log.Info("loaded labels", "labels", len(sv.Labels))
	return err
}

func (sv *Survey) getFlows(ctx context.Context) (err error) {
	sv.Range, err = ParseDateRange(sv.start, sv.end, sv.now())
	if err != nil {
		return err
	}
	sv.log.Debug("set date range", "start", sv.Range.StartDate(), "end", sv.Range.EndDate())
	q, err := pce.BuildTrafficQuery(pce.QueryOptions{
		StartDate:       sv.Range.StartDate(),
		EndDate:         sv.Range.EndDate(),
		PolicyDecisions: sv.decisions,
		MaxResults:      sv.limit,
	})
	if err != nil {
		return err
	}
	sv.Flows, err = sv.client.TrafficFlows(ctx, sv.queryName, q)
	if err != nil {
		return errors.Wrap(err, "querying traffic flows")
	}
	sv.log.Info("Total traffic flows", "flows", len(sv.Flows))
	if len(sv.Flows) >= sv.limit {
		sv.log.Warn("flow count reached the query limit, results are truncated", "limit", sv.limit)
	}
	return err
}

// Start kicks off the survey. After this completes the data can be
// exported or rendered.
func (sv *Survey) Start(ctx context.Context) (err error) {
	ok, err := sv.client.CheckConnection(ctx)
	if err != nil {
		return errors.Wrap(err, "checking PCE connection")
	}
	if !ok {
		sv.log.Error("connection to PCE failed")
		return ErrConnection
	}
	sv.log.Info("connection to PCE successful")

	if err = sv.loadLabels(ctx); err != nil {
		return err
	}
	if err = sv.getFlows(ctx); err != nil {
		return err
	}
	sv.Rows = Flatten(sv.Flows, sv.Labels)
	sv.log.Debug("flattened flows", "rows", len(sv.Rows))
	sv.Connections = BuildConnections(sv.Rows, ConnectionOptions{KeepSelfLoops: sv.keepSelfLoops})
	sv.log.Info("built connection graph", "edges", sv.Connections.Len(),
		"groups", len(sv.Connections.Nodes()), "self_loops_dropped", sv.Connections.Dropped())
	sv.setSummary()
	return err
}

// GetSummary returns the plain text summary of the survey, one line per
// element.
func (sv *Survey) GetSummary() (msg []string) {
	return sv.summary
}

// setSummary takes all of the information acquired during the Survey and
// sets a string slice describing it.
func (sv *Survey) setSummary() {
	var msg []string
	msg = append(msg, fmt.Sprintf(
		"Between %s and %s the PCE reported %d traffic flows (%s) "+
			"between %d application groups.\n",
		sv.Range.StartDate(), sv.Range.EndDate(), len(sv.Rows),
		strings.Join(sv.decisions, ", "), len(sv.Connections.Nodes())))

	msg = append(msg, "Flows by policy decision:")
	for _, c := range TopN(sv.Rows, "policy_decision", 0) {
		msg = append(msg, fmt.Sprintf("\t%s: %d", c.Value, c.Count))
	}

	msg = append(msg, "Busiest application group connections:")
	for i, e := range sv.Connections.Edges() {
		if i == 10 {
			break
		}
		msg = append(msg, fmt.Sprintf("\t%s -> %s: %d", e.Source, e.Target, e.Weight))
	}

	var unlabeledRows int
	for i := range sv.Rows {
		if sv.Rows[i].AppGroup(SideSrc) == unlabeled+" ("+unlabeled+")" ||
			sv.Rows[i].AppGroup(SideDst) == unlabeled+" ("+unlabeled+")" {
			unlabeledRows++
		}
	}
	if !hasColumn(sv.Rows, "src_app") && !hasColumn(sv.Rows, "dst_app") {
		msg = append(msg, "No flow carried an app label; check that workloads are labelled.")
	}
	msg = append(msg, fmt.Sprintf(
		"%d flows had an endpoint without app and env labels and were grouped as %q.",
		unlabeledRows, unlabeled))
	if !sv.keepSelfLoops {
		msg = append(msg, fmt.Sprintf(
			"%d flows stayed within a single application group and were left out of the graph.",
			sv.Connections.Dropped()))
	}
	if len(sv.Rows) >= sv.limit {
		msg = append(msg, fmt.Sprintf(
			"The query hit its limit of %d flows; raise the limit to see all traffic.", sv.limit))
	}
	sv.summary = msg
}

// ExportSummary writes the summary to the OutfileSummary file.
func (sv *Survey) ExportSummary() (err error) {
	file, err := os.Create(sv.outfileSummary)
	if err != nil {
		return err
	}
	defer file.Close()
	if err = sv.WriteSummary(file); err != nil {
		return err
	}
	sv.log.Info("wrote summary to file", "filename", sv.outfileSummary)
	return err
}

// WriteSummary writes the summary to w.
func (sv *Survey) WriteSummary(w io.Writer) (err error) {
	for _, line := range sv.GetSummary() {
		_, err = io.WriteString(w, line+"\n")
		if err != nil {
			return err
		}
	}
	return err
}

// ExportRows writes every row to the OutfileRows file as csv.
func (sv *Survey) ExportRows() (err error) {
	csvfile, err := os.Create(sv.outfileRows)
	if err != nil {
		return err
	}
	defer csvfile.Close()
	if err = sv.WriteRows(csvfile); err != nil {
		return err
	}
	sv.log.Info("wrote rows to file", "filename", sv.outfileRows)
	return err
}

// WriteRows writes the rows to w as csv. The header holds the base columns
// followed by every label column seen.
func (sv *Survey) WriteRows(w io.Writer) (err error) {
	rows := append([]Row{}, sv.Rows...)
	sortRows(rows)
	columns := Columns(rows)
	csvwriter := csv.NewWriter(w)
	if err = csvwriter.Write(columns); err != nil {
		return err
	}
	for i := range rows {
		if err = csvwriter.Write(rows[i].record(columns)); err != nil {
			return err
		}
	}
	csvwriter.Flush()
	return csvwriter.Error()
}

// ExportConnections writes the connection graph edges to the
// OutfileConnections file as csv.
func (sv *Survey) ExportConnections() (err error) {
	csvfile, err := os.Create(sv.outfileConns)
	if err != nil {
		return err
	}
	defer csvfile.Close()
	if err = sv.WriteConnections(csvfile); err != nil {
		return err
	}
	sv.log.Info("wrote connections to file", "filename", sv.outfileConns)
	return err
}

// WriteConnections writes the connection graph edges to w as csv.
func (sv *Survey) WriteConnections(w io.Writer) (err error) {
	csvwriter := csv.NewWriter(w)
	if err = csvwriter.Write([]string{"Source", "Target", "Flows"}); err != nil {
		return err
	}
	for _, e := range sv.Connections.Edges() {
		if err = csvwriter.Write([]string{e.Source, e.Target, strconv.Itoa(e.Weight)}); err != nil {
			return err
		}
	}
	csvwriter.Flush()
	return csvwriter.Error()
}
