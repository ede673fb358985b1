// Package synth implements the dependency-group synthesis engine: given
// a network in its initial converged state, a set of candidate
// configuration Modifiers (the target state's route-maps), and a hard
// LTL policy, it searches for a total order in which the Modifiers can
// be applied one at a time such that the policy holds after every
// intermediate convergence.
//
// The search is a randomized tree search (TRTA: Try, Record, Trim,
// Advance) over candidate orders, strengthened by a three-phase learning
// loop: Reduction shrinks a failing prefix down to the minimal set of
// already-applied modifiers that reproduces the same violation when
// replayed with the candidate in isolation; Solving records that minimal
// set as a dependency group and tries that candidate last, not first,
// whenever the group recurs, since a candidate that failed once in a
// given context usually will again; Expansion keeps an exact memo of
// every (context, candidate) pair already proven to fail so it is never
// retried at all.
package synth

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/nsg-ethz/snowcap-go/internal/telemetry"
	"github.com/nsg-ethz/snowcap-go/pkg/ltl"
	"github.com/nsg-ethz/snowcap-go/pkg/netsim"
)

// DefaultMaxAttempts bounds the TRTA recursion depth an Engine will
// explore before giving up.
const DefaultMaxAttempts = 2000

// Plan is a synthesized migration: the indices into the Engine's
// Modifiers slice, in the order they should be applied.
type Plan struct {
	Order []int
}

// Step describes one applied modifier for reporting/CLI rendering.
type Step struct {
	Index int
	Label string
}

// Engine drives the search. Construct with New and call Synthesize once;
// an Engine is not safe for concurrent or repeated use since it mutates
// the bound Network in place (applying and undoing Modifiers as it
// searches).
type Engine struct {
	Net      *netsim.Network
	Mods     []netsim.Modifier
	Labels   []string
	Policy   ltl.Formula
	Prefixes []int // the set of prefixes whose forwarding state feeds the policy's propositions; see condition.Condition.Prefix

	rng *rand.Rand

	// groups records learned dependency groups: groups[i] is a list of
	// minimal modifier sets, each already proven by Reduction to make
	// candidate i fail with a specific watch-error signature when applied
	// together with i from the base state. Solving consults this before
	// speculatively applying i: if a recorded group is a subset of the
	// modifiers applied so far, i failed in that narrower context once
	// before, so it is tried last among the candidates at this node
	// rather than first. This is a priority hint, not a hard prune: a
	// modifier outside the group can still rescue i (e.g. giving some
	// other router its own alternate route before i cuts one), so a
	// group is never used to skip i outright.
	groups map[int][]map[int]bool

	// failedPrefixes memoizes (appliedSet, candidate) pairs already
	// known to violate the policy, keyed by a canonical string, so the
	// Expansion phase never repeats an attempt it already knows fails.
	failedPrefixes map[string]bool

	// baseMark is the Network's UndoDepth() when Synthesize begins,
	// i.e. the depth Reduction rewinds to before replaying a candidate
	// modifier subset in isolation.
	baseMark int

	maxAttempts int

	// attempts counts every speculative Apply tried across the whole
	// search, win or lose, for reporting.
	attempts int
}

// New builds an Engine. seed makes candidate-order shuffling
// reproducible across runs, matching the --seed flag on the CLI.
func New(net *netsim.Network, mods []netsim.Modifier, labels []string, policy ltl.Formula, seed int64) *Engine {
	return &Engine{
		Net:            net,
		Mods:           mods,
		Labels:         labels,
		Policy:         policy,
		rng:            rand.New(rand.NewSource(seed)),
		groups:         make(map[int][]map[int]bool),
		failedPrefixes: make(map[string]bool),
		maxAttempts:    DefaultMaxAttempts,
	}
}

// Synthesize runs the TRTA search and returns the first valid total
// order found, or an error if no valid order was found within the
// attempt budget.
func (e *Engine) Synthesize() (*Plan, error) {
	telemetry.Logger.WithField("modifiers", len(e.Mods)).Info("starting migration synthesis")
	e.attempts = 0
	e.baseMark = e.Net.UndoDepth()

	trace := ltl.Trace{netsim.NewForwardingState(e.Net)}
	if !ltl.Holds(e.Policy, trace) {
		return nil, fmt.Errorf("synth: initial network state already violates the hard policy")
	}

	remaining := make([]int, len(e.Mods))
	for i := range remaining {
		remaining[i] = i
	}

	order, ok := e.search(remaining, nil, trace, 0)
	if !ok {
		return nil, fmt.Errorf("synth: exhausted %d attempts without finding a policy-compliant order", e.maxAttempts)
	}
	telemetry.Logger.WithField("steps", len(order)).Info("synthesis found a policy-compliant order")
	return &Plan{Order: order}, nil
}

// search is the TRTA recursion: try a candidate from remaining, applying
// it speculatively; if the resulting trace still satisfies the policy,
// recurse on what's left, otherwise undo and try the next candidate in
// the shuffled order.
func (e *Engine) search(remaining []int, applied []int, trace ltl.Trace, depth int) ([]int, bool) {
	if depth > e.maxAttempts {
		return nil, false
	}
	if len(remaining) == 0 {
		return append([]int(nil), applied...), true
	}

	appliedSet := make(map[int]bool, len(applied))
	for _, a := range applied {
		appliedSet[a] = true
	}

	// Solving reorders candidates rather than eliminating them: a learned
	// group being satisfied means candidate is *likely* to fail from this
	// context, but groups are reductions of one specific observed failure
	// and are not safe to treat as a universal law (a later modifier not
	// in the group can still rescue an earlier one, e.g. giving a router
	// its own alternate route before an upstream link is cut). Demoting
	// blocked candidates to the back of the try order captures the
	// informative part of Solving without risking a false prune that
	// could make an existing valid order undiscoverable.
	candidates := e.shuffled(remaining)
	ordered := make([]int, 0, len(candidates))
	var deferred []int
	for _, cand := range candidates {
		if e.groupBlocks(appliedSet, cand) {
			deferred = append(deferred, cand)
			continue
		}
		ordered = append(ordered, cand)
	}
	ordered = append(ordered, deferred...)

	for _, cand := range ordered {
		key := e.memoKey(applied, cand)
		if e.failedPrefixes[key] {
			continue // Expansion: a previously learned exact failure, skip without re-simulating
		}

		e.attempts++
		mark := e.Net.UndoDepth()
		if err := e.Net.Apply(e.Mods[cand]); err != nil {
			e.Net.Undo()
			continue
		}
		fs := netsim.NewForwardingState(e.Net)
		nextTrace := append(append(ltl.Trace(nil), trace...), fs)

		if !ltl.Holds(e.Policy, nextTrace) {
			e.learn(applied, cand)
			e.failedPrefixes[key] = true
			// learn's Reduction phase replays from the Engine's base
			// state and leaves the Network rewound there; restore the
			// depth-`mark` state search's caller expects (applied, but
			// not cand) before trying the next candidate.
			for e.Net.UndoDepth() > e.baseMark {
				e.Net.Undo()
			}
			e.replayApplied(applied)
			continue
		}

		nextRemaining := removeValue(remaining, cand)
		nextApplied := append(append([]int(nil), applied...), cand)
		if order, ok := e.search(nextRemaining, nextApplied, nextTrace, depth+1); ok {
			return order, true
		}

		for e.Net.UndoDepth() > mark {
			e.Net.Undo()
		}
	}
	return nil, false
}

// shuffled returns xs in a fresh randomized order. It does not consult
// learned dependency groups; search moves candidates blocked by a group
// to the back of this order afterwards.
func (e *Engine) shuffled(xs []int) []int {
	out := append([]int(nil), xs...)
	e.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// learn records, via the Reduction phase, the minimal subset of applied
// modifiers that are jointly responsible for candidate failing right now,
// compared across attempts by watch-error-set equality so a minimization
// step is only accepted when it reproduces the exact same violation.
// Solving then stores that subset as a dependency group for candidate,
// used by future search nodes to try candidate later rather than first
// whenever every member of the group is already applied; see groups.
func (e *Engine) learn(applied []int, candidate int) {
	minimal := e.reduce(applied, candidate)
	group := make(map[int]bool, len(minimal))
	for _, m := range minimal {
		group[m] = true
	}
	e.groups[candidate] = append(e.groups[candidate], group)
}

// groupBlocks reports whether any dependency group learned for candidate
// is already fully satisfied by appliedSet, meaning candidate failed once
// before in a context no larger than this one. search uses this only to
// order candidate selection, never to skip a candidate outright.
func (e *Engine) groupBlocks(appliedSet map[int]bool, candidate int) bool {
	for _, group := range e.groups[candidate] {
		if isSubset(group, appliedSet) {
			return true
		}
	}
	return false
}

func isSubset(group map[int]bool, set map[int]bool) bool {
	for m := range group {
		if !set[m] {
			return false
		}
	}
	return true
}

// reduce shrinks applied down to a minimal subset still sufficient to
// reproduce candidate's exact watch-error signature, using delta-
// debugging (ddmin) style bisection: it replays the Network from its
// pre-synthesis base state for each candidate subset, so the result does
// not depend on the live Network's current undo depth.
func (e *Engine) reduce(applied []int, candidate int) []int {
	target, ok := e.trySequence(applied, candidate)
	if !ok {
		// The exact context that was just observed to fail must itself
		// reproduce on replay; if it doesn't (e.g. a nondeterministic
		// convergence budget edge case), there is nothing sound to
		// minimize, so record the full context unreduced.
		return append([]int(nil), applied...)
	}
	return e.ddmin(applied, candidate, target)
}

// ddmin repeatedly tries to remove ever-smaller chunks of seq, keeping
// any removal that still reproduces target when seq (minus the chunk)
// followed by candidate is replayed.
func (e *Engine) ddmin(seq []int, candidate int, target string) []int {
	current := append([]int(nil), seq...)
	n := 2
	for len(current) >= 1 && n <= len(current) {
		chunkSize := (len(current) + n - 1) / n
		if chunkSize == 0 {
			break
		}
		reducedThisRound := false
		for start := 0; start < len(current); start += chunkSize {
			end := start + chunkSize
			if end > len(current) {
				end = len(current)
			}
			complement := append(append([]int(nil), current[:start]...), current[end:]...)
			if sig, ok := e.trySequence(complement, candidate); ok && sig == target {
				current = complement
				if n > 2 {
					n--
				}
				reducedThisRound = true
				break
			}
		}
		if !reducedThisRound {
			if n >= len(current) {
				break
			}
			n *= 2
		}
	}
	return current
}

// trySequence replays seq (in order) followed by candidate from the
// Engine's pre-synthesis base state, leaving the Network exactly as it
// was found (rewound to baseMark) before returning. It reports the
// canonical signature of the resulting watch-error set and true if
// applying the sequence produced any violation at all; false if seq+
// candidate converges cleanly (nothing to minimize toward) or if any
// modifier in the sequence failed to apply outright.
func (e *Engine) trySequence(seq []int, candidate int) (string, bool) {
	for e.Net.UndoDepth() > e.baseMark {
		e.Net.Undo()
	}

	ev := ltl.NewEvaluator(e.Policy)
	ev.Step(netsim.NewForwardingState(e.Net))

	ok := true
	for _, idx := range append(append([]int(nil), seq...), candidate) {
		if err := e.Net.Apply(e.Mods[idx]); err != nil {
			ok = false
			break
		}
		ev.Step(netsim.NewForwardingState(e.Net))
	}

	var sig string
	found := false
	if ok && !ev.Check() {
		sig = watchErrorSignature(ev.GetWatchErrors())
		found = true
	}

	for e.Net.UndoDepth() > e.baseMark {
		e.Net.Undo()
	}
	return sig, found
}

// watchErrorSignature renders a watch-error set as an order-independent
// string, so two replays that violate the same clauses for the same
// reason compare equal regardless of map iteration order.
func watchErrorSignature(errs []ltl.WatchError) string {
	parts := make([]string, len(errs))
	for i, we := range errs {
		kind := ltl.PolicyErrorKind(-1)
		router, prefix := 0, 0
		if we.Err != nil {
			kind = we.Err.Kind
			router = int(we.Err.Router)
			prefix = int(we.Err.Prefix)
		}
		parts[i] = fmt.Sprintf("%d:%v:%d:%d", we.ClauseIndex, kind, router, prefix)
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

func (e *Engine) memoKey(applied []int, candidate int) string {
	sorted := append([]int(nil), applied...)
	sort.Ints(sorted)
	b := strings.Builder{}
	fmt.Fprintf(&b, "%v->%d", sorted, candidate)
	return b.String()
}

// replayApplied re-applies each modifier in applied, in order, against
// the Network as it currently stands. Callers use this to restore the
// depth-len(applied) state after a Reduction replay (trySequence/ddmin)
// has rewound the Network to the Engine's base state; every modifier in
// applied already succeeded once during search, so an error here would
// indicate a non-deterministic Apply and is intentionally ignored.
func (e *Engine) replayApplied(applied []int) {
	for _, idx := range applied {
		e.Net.Apply(e.Mods[idx])
	}
}

func removeValue(xs []int, v int) []int {
	out := make([]int, 0, len(xs)-1)
	for _, x := range xs {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

// Attempts returns how many speculative Applies the most recent
// Synthesize call tried, successful or not.
func (e *Engine) Attempts() int {
	return e.attempts
}

// Steps renders a Plan as human-readable steps for the CLI.
func (e *Engine) Steps(p *Plan) []Step {
	steps := make([]Step, len(p.Order))
	for i, idx := range p.Order {
		label := e.Labels[idx]
		steps[i] = Step{Index: idx, Label: label}
	}
	return steps
}
