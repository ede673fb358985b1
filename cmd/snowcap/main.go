package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nsg-ethz/snowcap-go/internal/telemetry"
	"github.com/nsg-ethz/snowcap-go/pkg/version"
)

var (
	verboseFlag bool
	errNoPlan   = errors.New("no policy-compliant migration order exists")
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "snowcap",
		Short: "Synthesize safe BGP/IGP migration orderings",
		Long: `Snowcap synthesizes an order to roll out a set of route-map changes
across a network such that a declarative hard policy (reachability,
absence of black holes and forwarding loops, waypoint constraints) never
breaks at any intermediate state the migration passes through.

  snowcap plan <scenario.yaml>         # synthesize a migration order
  snowcap plan --soft <scenario.yaml>  # synthesize and then optimize cost
  snowcap validate <scenario.yaml>     # check the initial state satisfies the policy
  snowcap apply <scenario.yaml>        # synthesize and push it to real FRR routers
  snowcap version                     # print build information`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verboseFlag {
				telemetry.SetLogLevel("debug")
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(
		newPlanCmd(),
		newValidateCmd(),
		newApplyCmd(),
		settingsCmd,
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Println("snowcap " + version.Info())
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errNoPlan) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
