package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GESkunkworks/dependr"
	"github.com/GESkunkworks/dependr/render"
)

// view describes a single-figure command.
type view struct {
	use   string
	short string
	topN  bool
	build func(rows []dependr.Row, n int) (render.Figure, error)
}

func bar(f func([]dependr.Row, int) *render.BarChart) func([]dependr.Row, int) (render.Figure, error) {
	return func(rows []dependr.Row, n int) (render.Figure, error) {
		return f(rows, n), nil
	}
}

func treemap(f func([]dependr.Row) (*render.TreemapChart, error)) func([]dependr.Row, int) (render.Figure, error) {
	return func(rows []dependr.Row, _ int) (render.Figure, error) {
		return f(rows)
	}
}

var viewCommands = []view{
	{use: "top-talkers", short: "Generate a graph of top talkers", topN: true, build: bar(render.TopTalkers)},
	{use: "top-destinations", short: "Generate a graph of top destinations", topN: true, build: bar(render.TopDestinations)},
	{use: "top-ports", short: "Generate a graph of top ports used in the environment", topN: true, build: bar(render.TopPorts)},
	{
		use:   "ip-protocol-treemap",
		short: "Generate a treemap for IP protocols containing the most used ports",
		build: func(rows []dependr.Row, _ int) (render.Figure, error) {
			return render.IPProtocolTreemap(rows), nil
		},
	},
	{use: "top-app-group-sources", short: "Generate a graph of top app group sources", topN: true, build: bar(render.TopAppGroupSources)},
	{use: "top-app-group-destinations", short: "Generate a graph of top app group destinations", topN: true, build: bar(render.TopAppGroupDestinations)},
	{use: "top-talking-app-env-treemap", short: "Generate a treemap of the app/env tuples talking the most", build: treemap(render.TopTalkingAppEnvTreemap)},
	{use: "top-receiving-app-env-treemap", short: "Generate a treemap of the app/env tuples receiving the most traffic", build: treemap(render.TopReceivingAppEnvTreemap)},
}

func (a *App) newViewCommands() []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(viewCommands))
	for _, v := range viewCommands {
		cmds = append(cmds, a.newViewCommand(v))
	}
	return cmds
}

func (a *App) newViewCommand(v view) *cobra.Command {
	var (
		output string
		format string
		topN   int
	)

	cmd := &cobra.Command{
		Use:   v.use,
		Short: v.short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := render.ParseChartFormat(format)
			if err != nil {
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
			fig, err := v.build(sv.Rows, topN)
			if err != nil {
				return err
			}
			loc, err := a.save(cmd.Context(), sink, output, f, fig)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Saved graph as %s\n", loc)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&output, "output", strings.ReplaceAll(v.use, "-", "_"), "Output filename (without extension)")
	flags.StringVar(&format, "format", "html", "Output format (html, png, jpg, svg)")
	if v.topN {
		flags.IntVar(&topN, "top-n", render.DefaultTopN, "Number of top items to show")
	}
	return cmd
}
