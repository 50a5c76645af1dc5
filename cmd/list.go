// File: cmd/list.go
package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/bridgecheck/internal/scenario"
)

func newListCommand(opts *globalOptions) *cobra.Command {
	var showSteps bool

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the built-in scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, sc := range scenario.Catalog() {
				fmt.Fprintf(tw, "%s\t%s\n", sc.Name, sc.Description)
				if !showSteps {
					continue
				}
				for _, line := range strings.Split(scenario.Describe(sc, opts.cfg.Scenario()), "\n") {
					if line != "" {
						fmt.Fprintf(tw, "\t  %s\n", line)
					}
				}
			}
			return tw.Flush()
		},
	}
	listCmd.Flags().BoolVar(&showSteps, "steps", false, "also print each scenario's steps")
	return listCmd
}
