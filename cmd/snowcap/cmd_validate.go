package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nsg-ethz/snowcap-go/pkg/cli"
	"github.com/nsg-ethz/snowcap-go/pkg/ltl"
	"github.com/nsg-ethz/snowcap-go/pkg/netsim"
	"github.com/nsg-ethz/snowcap-go/pkg/scenario"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario.yaml>",
		Short: "Check that the scenario's initial state satisfies its hard policy",
		Long: `Validate builds the scenario's network, converges it, and checks the
declared policy against that single converged state — a quick sanity
check before spending a search budget on "plan", since a scenario whose
starting state is already unsafe can never produce a valid migration.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := scenario.Load(resolveScenarioPath(args[0]))
			if err != nil {
				return err
			}
			net, err := f.Build()
			if err != nil {
				return err
			}

			policy, err := f.Policy()
			if err != nil {
				return err
			}
			trace := ltl.Trace{netsim.NewForwardingState(net)}
			verdict := "safe"
			if !ltl.Holds(policy, trace) {
				verdict = "violated"
			}

			fmt.Printf("%s %s\n", cli.DotPad("policy", 20), cli.VerdictColor(verdict))
			fmt.Printf("%s %d\n", cli.DotPad("routers", 20), len(f.Routers))
			fmt.Printf("%s %d\n", cli.DotPad("target configs", 20), len(f.TargetConfigs))

			if verdict == "violated" {
				return errNoPlan
			}
			return nil
		},
	}
	return cmd
}
