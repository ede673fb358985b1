package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nsg-ethz/snowcap-go/pkg/ids"
	"github.com/nsg-ethz/snowcap-go/pkg/ltl"
	"github.com/nsg-ethz/snowcap-go/pkg/netsim"
)

const sampleYAML = `
routers:
  - id: 100
    as: 65000
    external: true
  - id: 1
    as: 1
  - id: 2
    as: 1
sessions:
  - a: 100
    b: 1
    kind: ebgp
  - a: 1
    b: 100
    kind: ebgp
  - a: 1
    b: 2
    kind: ibgp-peer
  - a: 2
    b: 1
    kind: ibgp-peer
links:
  - a: 1
    b: 2
    weight: 1
advertise:
  - router: 100
    prefix: 1
    as_path: [65000]
    local_pref: 100
target_configs:
  - router: 1
    label: "deny everything inbound at r1"
    in:
      - order: 1
        deny: true
policy:
  - routers: [1, 2]
    prefix: 1
    kind: reachable
  - routers: [1]
    prefix: 1
    kind: no_loop
`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadAndBuild(t *testing.T) {
	path := writeSample(t)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(f.Routers) != 3 {
		t.Fatalf("expected 3 routers, got %d", len(f.Routers))
	}

	n, err := f.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	r1 := n.Routers[1]
	if nh, ok := r1.NextHop(1); !ok || nh != 100 {
		t.Fatalf("expected r1's next hop for prefix 1 to be 100, got %v ok=%v", nh, ok)
	}
}

func TestModifiers(t *testing.T) {
	path := writeSample(t)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	mods, labels, err := f.Modifiers()
	if err != nil {
		t.Fatalf("Modifiers: %v", err)
	}
	if len(mods) != 1 || len(labels) != 1 {
		t.Fatalf("expected 1 modifier, got %d", len(mods))
	}
	if mods[0].Router != ids.RouterID(1) {
		t.Fatalf("expected modifier targeting router 1, got %v", mods[0].Router)
	}
	if labels[0] != "deny everything inbound at r1" {
		t.Fatalf("unexpected label %q", labels[0])
	}
}

func TestPolicyHoldsOnConvergedNetwork(t *testing.T) {
	path := writeSample(t)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	n, err := f.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	policy, err := f.Policy()
	if err != nil {
		t.Fatalf("Policy: %v", err)
	}
	trace := ltl.Trace{netsim.NewForwardingState(n)}
	if !ltl.Holds(policy, trace) {
		t.Fatal("expected initial converged state to satisfy the declared policy")
	}
}

func TestPolicyPathWaypointsMatchesExpectedRoute(t *testing.T) {
	path := writeSample(t)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	n, err := f.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	f.PolicyClauses = append(f.PolicyClauses, PolicySpec{
		Routers:   []int{1},
		Prefix:    1,
		Kind:      "path",
		Waypoints: "1,100",
	})
	policy, err := f.Policy()
	if err != nil {
		t.Fatalf("Policy: %v", err)
	}
	trace := ltl.Trace{netsim.NewForwardingState(n)}
	if !ltl.Holds(policy, trace) {
		t.Fatal("expected r1's actual route to 100 to match the declared waypoint path")
	}

	f.PolicyClauses[len(f.PolicyClauses)-1].Waypoints = "2,100"
	badPolicy, err := f.Policy()
	if err != nil {
		t.Fatalf("Policy: %v", err)
	}
	if ltl.Holds(badPolicy, trace) {
		t.Fatal("expected a waypoint path requiring the route to start at router 2 to fail for r1's state")
	}
}

func TestPolicyRejectsMalformedWaypointToken(t *testing.T) {
	path := writeSample(t)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	f.PolicyClauses = append(f.PolicyClauses, PolicySpec{
		Routers:   []int{1},
		Prefix:    1,
		Kind:      "path",
		Waypoints: "1,not-a-router",
	})
	if _, err := f.Policy(); err == nil {
		t.Fatal("expected an error for a malformed waypoint token")
	}
}

func TestLengthRangeMatchShorthand(t *testing.T) {
	m := MatchSpec{LengthRange: "1-3"}
	match, err := buildMatch(m)
	if err != nil {
		t.Fatalf("buildMatch: %v", err)
	}
	if match.LengthLo != 1 || match.LengthHi != 3 {
		t.Fatalf("expected length range [1,3], got [%d,%d]", match.LengthLo, match.LengthHi)
	}
}

func TestLengthRangeMatchRejectsInvalidSpec(t *testing.T) {
	m := MatchSpec{LengthRange: "not-a-range"}
	if _, err := buildMatch(m); err == nil {
		t.Fatal("expected an error for an invalid length_range spec")
	}
}

func TestPrefixesAndRouterIDs(t *testing.T) {
	path := writeSample(t)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	prefixes := f.Prefixes()
	if len(prefixes) != 1 || prefixes[0] != ids.Prefix(1) {
		t.Fatalf("expected [prefix 1], got %v", prefixes)
	}

	routers := f.RouterIDs()
	if len(routers) != 3 {
		t.Fatalf("expected 3 routers, got %d", len(routers))
	}
}
