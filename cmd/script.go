// File: cmd/script.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/bridgecheck/internal/browser/bridge"
	"github.com/xkilldash9x/bridgecheck/internal/failures"
	"github.com/xkilldash9x/bridgecheck/internal/fixtures"
	"github.com/xkilldash9x/bridgecheck/internal/scenario"
)

func newScriptCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:               "script <scenario>",
		Short:             "Print the bridge stand-in script a scenario's page is opened with",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeScenarioNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, err := scenario.Select(args[0])
			if err != nil {
				return err
			}
			sc := selected[0]

			spec := fixtures.NewSpec()
			if sc.Spec != nil {
				spec = sc.Spec(opts.cfg.Scenario())
			}
			script, err := bridge.Script(spec, bridge.OptionsFromConfig(opts.cfg.Bridge()))
			if err != nil {
				return &failures.InjectionError{Reason: "could not build the bridge script", Err: err}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), script)
			return err
		},
	}
}
