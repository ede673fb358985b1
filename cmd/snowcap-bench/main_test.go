package main

import (
	"testing"

	"github.com/nsg-ethz/snowcap-go/pkg/ltl"
	"github.com/nsg-ethz/snowcap-go/pkg/netsim"
	"github.com/nsg-ethz/snowcap-go/pkg/synth"
)

func TestRouterRange(t *testing.T) {
	got := routerRange(1, 4)
	if len(got) != 4 || got[0] != 1 || got[3] != 4 {
		t.Fatalf("unexpected range: %v", got)
	}
}

func TestChainCaseSynthesizesAValidOrder(t *testing.T) {
	build := cases["chain"]
	net, mods, labels, routers, err := build(5, 1)
	if err != nil {
		t.Fatalf("chain case: %v", err)
	}

	policy := reachabilityPolicy(routers)
	trace := ltl.Trace{netsim.NewForwardingState(net)}
	if !ltl.Holds(policy, trace) {
		t.Fatal("expected the chain gadget's initial state to satisfy reachability")
	}

	engine := synth.New(net, mods, labels, policy, 1)
	plan, err := engine.Synthesize()
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(plan.Order) != len(mods) {
		t.Fatalf("expected a full-length order, got %d of %d steps", len(plan.Order), len(mods))
	}
}

func TestUnknownCaseIsRejected(t *testing.T) {
	if _, ok := cases["not-a-real-case"]; ok {
		t.Fatal("expected lookup of an unregistered case to miss")
	}
}
