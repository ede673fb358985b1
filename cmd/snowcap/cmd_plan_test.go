package main

import (
	"os"
	"path/filepath"
	"testing"
)

const planScenario = `
routers:
  - id: 100
    as: 65000
    external: true
  - id: 1
    as: 1
sessions:
  - a: 100
    b: 1
    kind: ebgp
  - a: 1
    b: 100
    kind: ebgp
advertise:
  - router: 100
    prefix: 1
    as_path: [65000]
target_configs:
  - router: 1
    label: "tighten inbound policy at r1"
    in:
      - order: 1
        match:
          - community: 100
        deny: true
policy:
  - routers: [1]
    prefix: 1
    kind: reachable
`

func TestPlanCmdFindsAnOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	if err := os.WriteFile(path, []byte(planScenario), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cmd := newPlanCmd()
	cmd.SetArgs([]string{"--seed", "1", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("plan: %v", err)
	}
}

func TestPlanCmdRequiresExactlyOneArg(t *testing.T) {
	cmd := newPlanCmd()
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error with no scenario argument")
	}
}

func TestResolveScenarioPathLeavesAbsoluteAndRelativePathsAlone(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "scenario.yaml")
	if got := resolveScenarioPath(abs); got != abs {
		t.Fatalf("expected absolute path untouched, got %q", got)
	}

	rel := filepath.Join("subdir", "scenario.yaml")
	if got := resolveScenarioPath(rel); got != rel {
		t.Fatalf("expected path containing a separator untouched, got %q", got)
	}
}

func TestResolveScenarioPathUsesConfiguredScenarioDirForBareNames(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "scenario.yaml"), []byte(planScenario), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cmd := settingsSetCmd
	cmd.SetArgs([]string{"scenario_dir", dir})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("settings set: %v", err)
	}

	got := resolveScenarioPath("scenario.yaml")
	want := filepath.Join(dir, "scenario.yaml")
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
