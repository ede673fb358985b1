package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nsg-ethz/snowcap-go/pkg/cli"
	"github.com/nsg-ethz/snowcap-go/pkg/frrconn"
	"github.com/nsg-ethz/snowcap-go/pkg/scenario"
	"github.com/nsg-ethz/snowcap-go/pkg/synth"
)

func newApplyCmd() *cobra.Command {
	var (
		seed         int64
		user         string
		pass         string
		port         int
		hostTemplate string
		dryRun       bool
	)

	cmd := &cobra.Command{
		Use:   "apply <scenario.yaml>",
		Short: "Synthesize a migration order and push it to real FRR routers",
		Long: `Apply synthesizes a migration order exactly as "plan" does, then
replays it step by step against real routers: for each step it dials the
target router's FRR management plane over SSH and installs the
synthesized incoming/outgoing route-maps via vtysh.

Router hostnames are derived from --host-template, a fmt template taking
the router's numeric ID (default "router-%d", e.g. router-1, router-2).

  snowcap apply --user admin --pass secret topo.yaml
  snowcap apply --dry-run topo.yaml   # print the steps without connecting`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveScenarioPath(args[0])

			f, err := scenario.Load(path)
			if err != nil {
				return err
			}
			net, err := f.Build()
			if err != nil {
				return err
			}
			mods, labels, err := f.Modifiers()
			if err != nil {
				return err
			}
			if len(mods) == 0 {
				return fmt.Errorf("scenario declares no target_configs to migrate toward")
			}
			policy, err := f.Policy()
			if err != nil {
				return err
			}

			engine := synth.New(net, mods, labels, policy, seed)
			plan, err := engine.Synthesize()
			if err != nil {
				return fmt.Errorf("%w: %v", errNoPlan, err)
			}
			steps := engine.Steps(plan)

			for _, step := range steps {
				mod := mods[step.Index]
				host := fmt.Sprintf(hostTemplate, mod.Router)
				fmt.Printf("%s %s (%s)\n", cli.Bold(fmt.Sprintf("[%d]", step.Index+1)), step.Label, host)

				if dryRun {
					continue
				}

				conn, err := frrconn.Dial(mod.Router, host, user, pass, port)
				if err != nil {
					return fmt.Errorf("apply: step %d: %w", step.Index+1, err)
				}
				name := fmt.Sprintf("SNOWCAP-R%d", mod.Router)
				applyErr := conn.ApplyRouteMaps(name, mod.In, mod.Out)
				conn.Close()
				if applyErr != nil {
					return fmt.Errorf("apply: step %d: %w", step.Index+1, applyErr)
				}
			}

			fmt.Println(cli.Dim(fmt.Sprintf("applied %d step(s)", len(steps))))
			return nil
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed for candidate-order shuffling")
	cmd.Flags().StringVar(&user, "user", "admin", "SSH username for the FRR management plane")
	cmd.Flags().StringVar(&pass, "pass", "", "SSH password for the FRR management plane")
	cmd.Flags().IntVar(&port, "port", 22, "SSH port")
	cmd.Flags().StringVar(&hostTemplate, "host-template", "router-%d", "fmt template mapping a router ID to a hostname")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the synthesized steps without connecting to any router")

	return cmd
}
