package main

import (
	"os"
	"path/filepath"
	"testing"
)

const validScenario = `
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
policy:
  - routers: [1]
    prefix: 1
    kind: reachable
`

func TestValidateCmdReportsSafe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	if err := os.WriteFile(path, []byte(validScenario), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cmd := newValidateCmd()
	cmd.SetArgs([]string{path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateCmdMissingFileErrors(t *testing.T) {
	cmd := newValidateCmd()
	cmd.SetArgs([]string{"/nonexistent/scenario.yaml"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error for a missing scenario file")
	}
}
