package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nsg-ethz/snowcap-go/pkg/ltl"
	"github.com/nsg-ethz/snowcap-go/pkg/netsim"
	"github.com/nsg-ethz/snowcap-go/pkg/synth"
)

const sampleGML = `
graph [
  directed 0
  node [
    id 0
    label "Sunnyvale"
  ]
  node [
    id 1
    label "Denver"
  ]
  node [
    id 2
    label "KansasCity"
  ]
  edge [
    source 0
    target 1
  ]
  edge [
    source 1
    target 2
  ]
]
`

func writeSampleGML(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.gml")
	if err := os.WriteFile(path, []byte(sampleGML), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestTopozooCaseBuildsASynthesizableNetwork(t *testing.T) {
	path := writeSampleGML(t)
	net, mods, labels, routers, err := topozooCase(path)
	if err != nil {
		t.Fatalf("topozooCase: %v", err)
	}
	if len(routers) != 3 {
		t.Fatalf("expected 3 routers, got %d", len(routers))
	}
	if len(mods) != 2 {
		t.Fatalf("expected 2 modifiers (every node but the root), got %d", len(mods))
	}

	policy := reachabilityPolicy(routers)
	trace := ltl.Trace{netsim.NewForwardingState(net)}
	if !ltl.Holds(policy, trace) {
		t.Fatal("expected the initial converged topozoo network to satisfy reachability")
	}

	engine := synth.New(net, mods, labels, policy, 1)
	if _, err := engine.Synthesize(); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
}

func TestTopozooCaseRejectsTinyGraphs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.gml")
	if err := os.WriteFile(path, []byte("graph [\n  node [ id 0 ]\n]\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, _, _, _, err := topozooCase(path); err == nil {
		t.Fatal("expected an error for a graph with fewer than 2 nodes")
	}
}
