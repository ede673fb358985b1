package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nsg-ethz/snowcap-go/pkg/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage persistent CLI defaults",
	Long: `Manage persistent settings stored in ~/.snowcap/settings.json.

Settings provide defaults for flags on "plan" when they are not given
explicitly:
  - seed:        default_seed, used when --seed is not specified
  - timeout:     default_time_budget_seconds, stored and shown only ("plan" has no --timeout flag)
  - redis:       plan_store_addr, used when --redis is not specified
  - scenario_dir: default directory "plan"/"validate" search for bare filenames

Examples:
  snowcap settings show
  snowcap settings set seed 7
  snowcap settings set redis localhost:6379
  snowcap settings clear`,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings.Load()
		if err != nil {
			return fmt.Errorf("loading settings: %w", err)
		}

		fmt.Printf("Settings file: %s\n\n", settings.DefaultSettingsPath())

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SETTING\tVALUE")
		fmt.Fprintln(w, "-------\t-----")

		printSetting := func(name, value string) {
			if value == "" {
				value = "(not set)"
			}
			fmt.Fprintf(w, "%s\t%s\n", name, value)
		}

		printSetting("scenario_dir", s.ScenarioDir)
		if s.DefaultSeed != 0 {
			printSetting("seed", strconv.FormatInt(s.DefaultSeed, 10))
		} else {
			printSetting("seed", "")
		}
		if s.DefaultTimeBudgetSeconds != 0 {
			printSetting("timeout_seconds", strconv.Itoa(s.DefaultTimeBudgetSeconds))
		} else {
			printSetting("timeout_seconds", "")
		}
		printSetting("redis", s.PlanStoreAddr)

		w.Flush()
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <setting> <value>",
	Short: "Set a setting value",
	Long: `Available settings:
  scenario_dir - default directory "plan"/"validate" search for bare filenames
  seed         - default --seed value
  timeout      - synthesis wall-clock budget, in seconds (stored only; "plan" does not read it)
  redis        - default --redis address for plan memoization`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		setting := args[0]
		value := args[1]

		s, err := settings.Load()
		if err != nil {
			s = &settings.Settings{}
		}

		switch setting {
		case "scenario_dir":
			s.ScenarioDir = value
			fmt.Printf("Default scenario directory set to: %s\n", value)
		case "seed":
			seed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("seed must be an integer: %w", err)
			}
			s.DefaultSeed = seed
			fmt.Printf("Default seed set to: %d\n", seed)
		case "timeout":
			secs, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("timeout must be an integer number of seconds: %w", err)
			}
			s.DefaultTimeBudgetSeconds = secs
			fmt.Printf("Default synthesis timeout set to: %ds\n", secs)
		case "redis":
			s.PlanStoreAddr = value
			fmt.Printf("Default Redis plan-store address set to: %s\n", value)
		default:
			return fmt.Errorf("unknown setting: %s (valid: scenario_dir, seed, timeout, redis)", setting)
		}

		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		return nil
	},
}

var settingsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := &settings.Settings{}
		if err := s.Save(); err != nil {
			return fmt.Errorf("saving settings: %w", err)
		}
		fmt.Println("All settings cleared.")
		return nil
	},
}

var settingsPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show settings file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(settings.DefaultSettingsPath())
	},
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsClearCmd)
	settingsCmd.AddCommand(settingsPathCmd)
}
