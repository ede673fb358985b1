package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nsg-ethz/snowcap-go/pkg/cli"
	"github.com/nsg-ethz/snowcap-go/pkg/planstore"
	"github.com/nsg-ethz/snowcap-go/pkg/scenario"
	"github.com/nsg-ethz/snowcap-go/pkg/settings"
	"github.com/nsg-ethz/snowcap-go/pkg/softpolicy"
	"github.com/nsg-ethz/snowcap-go/pkg/synth"
)

// resolveScenarioPath resolves a bare filename (no directory separator)
// against the persisted default scenario directory, leaving an explicit
// relative or absolute path untouched.
func resolveScenarioPath(path string) string {
	if filepath.IsAbs(path) || strings.ContainsRune(path, filepath.Separator) {
		return path
	}
	s, err := settings.Load()
	if err != nil || s.ScenarioDir == "" {
		return path
	}
	candidate := filepath.Join(s.GetScenarioDir(), path)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return path
}

func newPlanCmd() *cobra.Command {
	var (
		seed            int64
		soft            bool
		maxNonImproving int
		jsonOutput      bool
		redisAddr       string
	)

	cmd := &cobra.Command{
		Use:   "plan <scenario.yaml>",
		Short: "Synthesize a policy-compliant migration order",
		Long: `Plan reads a scenario file describing a topology, its BGP sessions,
external advertisements, the target route-map configuration, and the hard
policy that must hold throughout the migration, then searches for a safe
order to apply the target configuration one router at a time.

  snowcap plan topo.yaml
  snowcap plan --soft --max-non-improving 25 topo.yaml
  snowcap plan --seed 7 --redis localhost:6379 topo.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveScenarioPath(args[0])

			if s, err := settings.Load(); err == nil {
				if !cmd.Flags().Changed("seed") && s.DefaultSeed != 0 {
					seed = s.DefaultSeed
				}
				if !cmd.Flags().Changed("redis") && s.PlanStoreAddr != "" {
					redisAddr = s.PlanStoreAddr
				}
			}

			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading scenario: %w", err)
			}

			var store *planstore.Store
			var key string
			if redisAddr != "" {
				store = planstore.New(redisAddr)
				defer store.Close()
				key = planstore.Key(raw, seed)
				if entry, ok, err := store.Get(key); err == nil && ok {
					printCachedPlan(entry, jsonOutput)
					return nil
				}
			}

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

			start := time.Now()
			var steps []synth.Step
			var cost float64

			if soft {
				result, err := engine.SynthesizeSoftPolicy(softpolicy.MinimizeTrafficShift, f.Prefixes(), f.RouterIDs(), maxNonImproving)
				if err != nil {
					return fmt.Errorf("%w: %v", errNoPlan, err)
				}
				steps = engine.Steps(result.Plan)
				cost = result.Cost
			} else {
				plan, err := engine.Synthesize()
				if err != nil {
					return fmt.Errorf("%w: %v", errNoPlan, err)
				}
				steps = engine.Steps(plan)
			}
			duration := time.Since(start)
			attempts := engine.Attempts()

			if store != nil {
				stepNames := make([]string, len(steps))
				for i, s := range steps {
					stepNames[i] = s.Label
				}
				_ = store.Set(key, planstore.Entry{
					Steps:      stepNames,
					Cost:       cost,
					Attempts:   attempts,
					Duration:   duration,
					ComputedAt: time.Now(),
				}, 24*time.Hour)
			}

			printPlan(steps, cost, attempts, soft, duration, jsonOutput)
			return nil
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed for candidate-order shuffling")
	cmd.Flags().BoolVar(&soft, "soft", false, "optimize for minimal traffic shift once a valid order is found")
	cmd.Flags().IntVar(&maxNonImproving, "max-non-improving", synth.DefaultMaxNonImproving, "consecutive non-improving soft-policy attempts before stopping")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "JSON output")
	cmd.Flags().StringVar(&redisAddr, "redis", "", "Redis address for plan memoization (disabled when empty)")

	return cmd
}

func printPlan(steps []synth.Step, cost float64, attempts int, soft bool, duration time.Duration, jsonMode bool) {
	if jsonMode {
		fmt.Printf("{\"steps\":%d,\"cost\":%v,\"attempts\":%d,\"duration\":%q}\n", len(steps), cost, attempts, duration)
		for _, s := range steps {
			fmt.Printf("  %d: %s\n", s.Index, s.Label)
		}
		return
	}

	fmt.Printf("%s %s\n", cli.Bold("migration plan:"), cli.Dim(duration.Round(time.Millisecond).String()))
	fmt.Printf("  %s\n", cli.AttemptSummary(attempts, synth.DefaultMaxAttempts))
	if soft {
		fmt.Printf("  %s %v\n", cli.DotPad("soft-policy cost", 20), cost)
	}
	fmt.Println()

	t := cli.NewTable("#", "STEP")
	for i, s := range steps {
		t.Row(fmt.Sprintf("%d", i+1), s.Label)
	}
	t.Flush()
}

func printCachedPlan(entry planstore.Entry, jsonMode bool) {
	if jsonMode {
		fmt.Printf("{\"steps\":%d,\"cost\":%v,\"cached\":true}\n", len(entry.Steps), entry.Cost)
		for _, s := range entry.Steps {
			fmt.Printf("  %s\n", s)
		}
		return
	}
	fmt.Println(cli.Dim("(served from cache, computed " + entry.ComputedAt.Format(time.RFC3339) + ")"))
	t := cli.NewTable("#", "STEP")
	for i, s := range entry.Steps {
		t.Row(fmt.Sprintf("%d", i+1), s)
	}
	t.Flush()
}
