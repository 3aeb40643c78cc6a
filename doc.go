// Package dependr maps the application dependencies of an Illumio
// segmented environment by pulling the traffic flows the Policy Compute
// Engine (PCE) has observed between workloads and aggregating them by
// application and environment labels.
//
// Application Groups
//
// Every workload managed by the PCE carries labels such as app=billing and
// env=prod. An application group is the pair "<app> (<env>)", e.g.
// "billing (prod)". Flows between workloads are counted per pair of source
// and destination application group, which yields a weighted, directed
// graph of who talks to whom. Workloads missing an app or env label (and
// unmanaged addresses, which have no workload at all) fall into the
// "unlabeled" group.
//
// This graph is what an analyst needs before writing segmentation rules:
// the busy edges are the dependencies a ruleset must allow, the quiet ones
// are worth a second look.
//
// Usage
//
// Create a dependr.Survey and call the Start() method on it. After the
// survey is complete the flattened Rows, the Connections graph and a
// plain text summary are available. The render package turns the
// Connections graph (or the counts from TopN, ProtocolPorts and
// AppEnvTree) into Sankey, sunburst, graphviz, treemap and bar chart
// figures, and the store package writes the result to disk or S3.
//
// It provides methods to export the flattened flows to CSV (ExportRows),
// the graph edges to CSV (ExportConnections) and the summary to text
// (ExportSummary).
//
// Sample
//
// Below is a sample main package you could use to run a Survey and print
// the busiest application group connections.
//
//   package main
//
//   import (
//   	"context"
//   	"fmt"
//
//   	"github.com/GESkunkworks/dependr"
//   	"github.com/GESkunkworks/dependr/pce"
//   )
//
//   func main() {
//   	client, err := pce.NewClient(pce.Config{
//   		Host:      "pce.example.com",
//   		Port:      8443,
//   		OrgID:     "1",
//   		APIKey:    "api_1234",
//   		APISecret: "secret",
//   	})
//   	if err != nil { panic(err) }
//   	start := "7 days ago"
//   	sv, err := dependr.New(&dependr.SurveyInput{
//   		Client: client,
//   		Start:  &start,
//   	})
//   	if err != nil { panic(err) }
//   	if err = sv.Start(context.Background()); err != nil { panic(err) }
//   	for _, e := range sv.Connections.Edges() {
//   		fmt.Printf("%s -> %s: %d\n", e.Source, e.Target, e.Weight)
//   	}
//   }
package dependr
