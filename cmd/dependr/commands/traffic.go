package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GESkunkworks/dependr/render"
)

func (a *App) newTrafficCommand() *cobra.Command {
	var (
		output      string
		format      string
		diagramType string
		direction   string
		exportCSV   bool
	)

	cmd := &cobra.Command{
		Use:   "traffic",
		Short: "Generate a traffic graph of application groups",
		Long: `Generate a graph of the flows between application groups, an application
group being the "app (env)" pair of a workload's labels.

Sankey and sunburst diagrams can be written as html, png, jpg or svg.
Graphviz diagrams can be written as png, jpg, svg or as dot source; image
formats need the graphviz dot binary on the PATH.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := render.ParseFormat(format)
			if err != nil {
				return err
			}
			d, err := render.ParseDiagramType(diagramType)
			if err != nil {
				return err
			}
			if err := render.CheckDiagramFormat(d, f); err != nil {
				return err
			}

			log, err := a.logger()
			if err != nil {
				return err
			}
			sink, err := a.sink(log)
			if err != nil {
				return err
			}
			sv, err := a.survey(cmd.Context(), log)
			if err != nil {
				return err
			}

			fig, err := render.Traffic(sv.Connections, d, render.ParseDirection(direction))
			if err != nil {
				return err
			}
			loc, err := a.save(cmd.Context(), sink, output, f, fig)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Traffic graph saved as %s\n", loc)

			if exportCSV {
				if err := a.saveSurvey(cmd.Context(), sink, output, sv); err != nil {
					return err
				}
			}
			fmt.Fprintln(a.out, strings.Join(sv.GetSummary(), "\n"))
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&output, "output", "traffic_graph", "Output filename (without extension)")
	flags.StringVar(&format, "format", "html", "Output format (html, png, jpg, svg, dot)")
	flags.StringVar(&diagramType, "diagram-type", "sankey", "Diagram type (sankey, sunburst, graphviz)")
	flags.StringVar(&direction, "direction", "LR", "Graph orientation (LR left-right, TB top-bottom)")
	flags.BoolVar(&exportCSV, "csv", false, "Also save the flow rows, connections and summary")
	return cmd
}
