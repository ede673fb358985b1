package synth

import (
	"testing"

	"github.com/nsg-ethz/snowcap-go/pkg/condition"
	"github.com/nsg-ethz/snowcap-go/pkg/ids"
	"github.com/nsg-ethz/snowcap-go/pkg/ltl"
	"github.com/nsg-ethz/snowcap-go/pkg/netsim"
	"github.com/nsg-ethz/snowcap-go/pkg/rib"
	"github.com/nsg-ethz/snowcap-go/pkg/router"
	"github.com/nsg-ethz/snowcap-go/pkg/routemap"
	"github.com/nsg-ethz/snowcap-go/pkg/scenario/gadgets"
)

// buildTwoRouterNet builds a trivial e -- r1 -- r2 chain where r1 and r2
// both have a route to prefix 1 once e's advertisement has propagated,
// with two independent Modifiers (harmless route-map installs on r1 and
// r2) that the search must order.
func buildTwoRouterNet(t *testing.T) (*netsim.Network, []netsim.Modifier, []string) {
	t.Helper()
	n := netsim.New()

	e := router.New(100, 65000)
	e.IsRoot = true
	r1 := router.New(1, 1)
	r2 := router.New(2, 1)

	e.AddNeighbor(router.Neighbor{Router: 1, Session: ids.EBgp})
	r1.AddNeighbor(router.Neighbor{Router: 100, Session: ids.EBgp})
	r1.AddNeighbor(router.Neighbor{Router: 2, Session: ids.IBgpPeer})
	r2.AddNeighbor(router.Neighbor{Router: 1, Session: ids.IBgpPeer})

	n.AddRouter(e)
	n.AddRouter(r1)
	n.AddRouter(r2)
	n.AddLink(1, 2, 1)
	n.RecomputeIGP()

	n.Advertise(100, rib.Route{Prefix: 1, NextHop: 100})
	if err := n.Converge(); err != nil {
		t.Fatalf("Converge: %v", err)
	}

	allowAll := routemap.NewList(nil)
	mods := []netsim.Modifier{
		{Router: 1, In: allowAll},
		{Router: 2, In: allowAll},
	}
	return n, mods, []string{"install r1 route-map", "install r2 route-map"}
}

func TestSynthesizeFindsValidOrder(t *testing.T) {
	n, mods, labels := buildTwoRouterNet(t)
	policy := ltl.Globally(ltl.Prop(condition.Reachable(2, 1)))

	eng := New(n, mods, labels, policy, 1)
	plan, err := eng.Synthesize()
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(plan.Order) != 2 {
		t.Fatalf("expected a 2-step plan, got %d", len(plan.Order))
	}
	seen := map[int]bool{}
	for _, idx := range plan.Order {
		seen[idx] = true
	}
	if !seen[0] || !seen[1] {
		t.Fatalf("expected both modifiers scheduled exactly once, got %v", plan.Order)
	}
}

func TestSynthesizeRejectsAlreadyViolatingInitialState(t *testing.T) {
	n, mods, labels := buildTwoRouterNet(t)
	// router 3 does not exist: Reachable(3, 1) is a permanent black hole.
	policy := ltl.Globally(ltl.Prop(condition.Reachable(3, 1)))
	eng := New(n, mods, labels, policy, 1)
	if _, err := eng.Synthesize(); err == nil {
		t.Fatal("expected an error for a policy the initial state already violates")
	}
}

// TestSynthesizeChainGadgetUniqueOrder exercises the session-swap Chain
// gadget: two egress border routers and a migration that tears down the
// old BGP session only after the new one is up, one router at a time
// starting from the tail. Any schedule that retires a router's upstream
// link before every router still relying on that link has its own
// replacement session strands part of the chain, so the plan search must
// always respect that dependency regardless of which candidate order it
// happens to try first.
func TestSynthesizeChainGadgetUniqueOrder(t *testing.T) {
	const n = 5
	net, mods, labels, err := gadgets.Chain(n)
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	policy := ltl.Globally(ltl.Prop(condition.Reachable(0, 1)))

	eng := New(net, mods, labels, policy, 3)
	plan, err := eng.Synthesize()
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(plan.Order) != len(mods) {
		t.Fatalf("expected %d steps, got %d", len(mods), len(plan.Order))
	}

	// gadgets.Chain appends (establish r_i's b1 session, retire r_i's
	// upstream link) pairs for i = n-1 down to 0, so modifier-slice index
	// 2*(n-1-i) is router i's establish step and 2*(n-1-i)+1 its retire.
	establishIdx := make(map[int]int, n)
	retireIdx := make(map[int]int, n)
	for i := n - 1; i >= 0; i-- {
		pos := 2 * (n - 1 - i)
		establishIdx[i] = pos
		retireIdx[i] = pos + 1
	}

	position := make(map[int]int, len(plan.Order))
	for pos, idx := range plan.Order {
		position[idx] = pos
	}

	for i := 0; i < n; i++ {
		if position[establishIdx[i]] >= position[retireIdx[i]] {
			t.Fatalf("router %d: its own b1 session must be established before its upstream link is retired", i)
		}
		for j := i + 1; j < n; j++ {
			if position[retireIdx[i]] < position[establishIdx[j]] {
				t.Fatalf("router %d's upstream link was retired before router %d (which relays through it) had its own b1 session", i, j)
			}
		}
	}
}

// TestEngineLearnsDependencyGroup exercises the Reduction/Solving halves
// of the TRTA learning loop directly: it stages a candidate that fails in
// total isolation (retiring a router's only link before it has any
// alternate route) and confirms Reduction correctly minimizes the
// responsible context down to empty, and that a later group recorded
// against a non-trivial applied context still reflects exactly the
// modifiers the replay needed, not the ones in the original search path
// that were irrelevant to the failure.
func TestEngineLearnsDependencyGroup(t *testing.T) {
	const n = 3
	net, mods, labels, err := gadgets.Chain(n)
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	policy := ltl.Globally(ltl.Prop(condition.Reachable(2, 1)))
	eng := New(net, mods, labels, policy, 0)
	eng.baseMark = eng.Net.UndoDepth()

	// mods[1] retires r2's link toward r1 without r2 having its own b1
	// session yet (mods[0]); in total isolation this black-holes r2.
	if _, failed := eng.trySequence(nil, 1); !failed {
		t.Fatal("expected retiring r2's only link, with nothing else applied, to violate the policy")
	}

	minimal := eng.reduce(nil, 1)
	if len(minimal) != 0 {
		t.Fatalf("expected the minimal failing context to be empty, got %v", minimal)
	}

	// Giving r2 its own session first (mods[0]) removes the dependency:
	// replaying just that plus the candidate must no longer fail.
	if _, stillFails := eng.trySequence([]int{0}, 1); stillFails {
		t.Fatal("expected establishing r2's own session to rescue the candidate")
	}

	eng.learn(nil, 1)
	appliedSet := map[int]bool{0: true}
	if !eng.groupBlocks(appliedSet, 1) {
		t.Fatal("expected the learned empty group to be reported as a subset of any context")
	}
	// groupBlocks is a priority hint, not a hard prune, so the Network
	// must remain untouched by this diagnostic check.
	if got := eng.Net.UndoDepth(); got != eng.baseMark {
		t.Fatalf("expected reduce/learn to leave the Network rewound to baseMark %d, got %d", eng.baseMark, got)
	}
}

func TestStepsRendersLabels(t *testing.T) {
	n, mods, labels := buildTwoRouterNet(t)
	policy := ltl.Globally(ltl.Prop(condition.Reachable(2, 1)))
	eng := New(n, mods, labels, policy, 7)
	plan, err := eng.Synthesize()
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	steps := eng.Steps(plan)
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	for _, s := range steps {
		if s.Label == "" {
			t.Fatal("expected a non-empty label")
		}
	}
}
