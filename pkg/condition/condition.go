// Package condition evaluates the reachability and path-shape predicates
// the hard policy is built from, against one converged forwarding state,
// and provides the CNF rewriting used to split a waypoint condition into
// position-free conjuncts the synthesis engine can check independently.
package condition

import (
	"fmt"

	"github.com/nsg-ethz/snowcap-go/pkg/ids"
	"github.com/nsg-ethz/snowcap-go/pkg/netsim"
)

// Atom enumerates the kinds of leaf condition this package evaluates.
type Atom int

const (
	// AtomReachable holds iff Router has a ValidPath to Prefix.
	AtomReachable Atom = iota
	// AtomBlackHole holds iff Router's path to Prefix is not a black hole.
	AtomBlackHole
	// AtomLoop holds iff Router's path to Prefix is not a forwarding loop.
	AtomLoop
	// AtomPath holds iff Router's path to Prefix matches Pattern.
	AtomPath
)

// Condition is a single leaf proposition over one (router, prefix) pair.
type Condition struct {
	Kind    Atom
	Router  ids.RouterID
	Prefix  ids.Prefix
	Pattern Pattern
}

// Reachable builds a reachability condition.
func Reachable(r ids.RouterID, p ids.Prefix) Condition { return Condition{Kind: AtomReachable, Router: r, Prefix: p} }

// NotBlackHole builds a black-hole-absence condition.
func NotBlackHole(r ids.RouterID, p ids.Prefix) Condition { return Condition{Kind: AtomBlackHole, Router: r, Prefix: p} }

// NotLoop builds a loop-absence condition.
func NotLoop(r ids.RouterID, p ids.Prefix) Condition { return Condition{Kind: AtomLoop, Router: r, Prefix: p} }

// PathMatches builds a waypoint condition testing the forwarding path
// from r to p against pattern.
func PathMatches(r ids.RouterID, p ids.Prefix, pattern Pattern) Condition {
	return Condition{Kind: AtomPath, Router: r, Prefix: p, Pattern: pattern}
}

// Eval tests a single condition against a forwarding state.
func Eval(c Condition, fs *netsim.ForwardingState) bool {
	res := fs.Path(c.Router, c.Prefix)
	switch c.Kind {
	case AtomReachable:
		return res.Result == ids.ValidPath
	case AtomBlackHole:
		return res.Result != ids.BlackHole
	case AtomLoop:
		return res.Result != ids.ForwardingLoop
	case AtomPath:
		return res.Result == ids.ValidPath && c.Pattern.Match(res.Path)
	default:
		return false
	}
}

func (c Condition) String() string {
	switch c.Kind {
	case AtomReachable:
		return fmt.Sprintf("reachable(%v,%v)", c.Router, c.Prefix)
	case AtomBlackHole:
		return fmt.Sprintf("!blackhole(%v,%v)", c.Router, c.Prefix)
	case AtomLoop:
		return fmt.Sprintf("!loop(%v,%v)", c.Router, c.Prefix)
	case AtomPath:
		return fmt.Sprintf("path(%v,%v)~%v", c.Router, c.Prefix, c.Pattern)
	default:
		return "?"
	}
}

// TransientAnalyzer estimates, without fully re-running convergence, how
// many routers could transiently disagree about the best path to a
// prefix while a migration step's effects are still propagating. It is
// an analysis aid for the soft-policy optimizer, not part of the hard
// policy's pass/fail decision: an implementation may conservatively
// return an upper bound.
type TransientAnalyzer interface {
	// TransientSpread estimates the number of distinct next-hops that
	// might be observed for prefix across the routers in affected while
	// the network has not yet reconverged.
	TransientSpread(affected []ids.RouterID, prefix ids.Prefix) int
}
