package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/GESkunkworks/dependr"
	"github.com/GESkunkworks/dependr/render"
)

// formatTable prints views as text tables instead of saving figures.
const formatTable = "table"

func (a *App) newAnalyzeCommand() *cobra.Command {
	var (
		output string
		format string
		topN   int
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Generate the top-N views and the protocol treemap",
		Long: `Generate the top talkers, top destinations, top ports, top application
group sources and destinations and the IP protocol treemap in one pass.
Each view is saved as <output>_<view>.<format>. With --format table the
views are printed as tables instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var f render.Format
			if format != formatTable {
				var err error
				if f, err = render.ParseChartFormat(format); err != nil {
					return err
				}
			}

			log, err := a.logger()
			if err != nil {
				return err
			}
			sv, err := a.survey(cmd.Context(), log)
			if err != nil {
				return err
			}
			views := render.Analysis(sv.Rows, topN)

			if format == formatTable {
				for _, v := range views {
					writeTable(a.out, v.Figure)
				}
				return nil
			}

			sink, err := a.sink(log)
			if err != nil {
				return err
			}
			for _, v := range views {
				loc, err := a.save(cmd.Context(), sink, output+"_"+v.Name, f, v.Figure)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Saved %s as %s\n", v.Name, loc)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&output, "output", "traffic_analysis", "Output filename prefix")
	flags.StringVar(&format, "format", "html", "Output format (html, png, jpg, svg, table)")
	flags.IntVar(&topN, "top-n", render.DefaultTopN, "Number of top items to show")
	return cmd
}

// writeTable prints a bar or treemap figure as a table.
func writeTable(w io.Writer, fig render.Figure) {
	table := tablewriter.NewWriter(w)

	switch f := fig.(type) {
	case *render.BarChart:
		table.SetHeader([]string{"Value", "Count"})
		for _, c := range f.Counts() {
			table.Append([]string{c.Value, strconv.Itoa(c.Count)})
		}
	case *render.TreemapChart:
		table.SetHeader([]string{"Group", "Count"})
		f.Tree().Walk(func(node *dependr.Tree, path []string) {
			if len(node.Children) > 0 || len(path) == 0 {
				return
			}
			group := append(append([]string{}, path[1:]...), node.Label)
			table.Append([]string{strings.Join(group, " / "), strconv.Itoa(node.Value)})
		})
	default:
		return
	}
	fmt.Fprintln(w, fig.Title())
	table.Render()
	fmt.Fprintln(w)
}
