// Package commands implements the dependr command line.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates the dependr command tree.
func NewRootCommand(version string, opts ...Option) *cobra.Command {
	a := newApp(opts...)

	cmd := &cobra.Command{
		Use:   "dependr",
		Short: "Illumio PCE traffic analysis and application dependency maps",
		Long: `dependr pulls observed traffic flows from an Illumio Policy Compute Engine,
groups them by the app and env labels of their workloads and draws who talks
to whom: Sankey, sunburst and graphviz maps of application groups plus top-N
bar charts and treemaps of addresses, ports and protocols.

PCE settings can come from flags or from the ILLUMIO_PCE_* environment
variables. Output goes to the current directory unless --bucket is set, in
which case it is uploaded to S3 and a presigned URL is printed.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadPlotlyJS()
		},
	}
	cmd.SetOut(a.out)
	cmd.SetErr(a.errOut)
	if err := a.bindFlags(cmd); err != nil {
		panic(err)
	}

	cmd.AddCommand(
		a.newTrafficCommand(),
		a.newAnalyzeCommand(),
		a.newServeCommand(),
		newVersionCommand(version),
	)
	cmd.AddCommand(a.newViewCommands()...)
	return cmd
}
